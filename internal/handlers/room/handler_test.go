package room_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"roombook/infras/otel/mocks"
	roomMocks "roombook/internal/domains/room/mocks"
	"roombook/internal/domains/room/model/dto"
	"roombook/internal/handlers/room"
	"roombook/shared/failure"
)

func newRouter(t *testing.T) (*roomMocks.MockRoomService, http.Handler) {
	t.Helper()

	ctrl := gomock.NewController(t)
	mockService := roomMocks.NewMockRoomService(ctrl)

	handler := room.New(mockService, mocks.NewOtel())

	router := chi.NewRouter()
	router.Route("/v1", handler.Router)

	return mockService, router
}

func TestHandler_CreateRoom(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		mockService, router := newRouter(t)

		mockService.EXPECT().
			Create(gomock.Any(), dto.CreateRoomRequest{Name: "Garden Suite"}).
			Return(dto.RoomResponse{ID: "7", Name: "Garden Suite"}, nil)

		req := httptest.NewRequest(http.MethodPost, "/v1/rooms", strings.NewReader(`{"name":"Garden Suite"}`))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"name":"Garden Suite"`)
	})

	t.Run("name is required", func(t *testing.T) {
		_, router := newRouter(t)

		req := httptest.NewRequest(http.MethodPost, "/v1/rooms", strings.NewReader(`{"description":"no name"}`))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_GetRooms(t *testing.T) {
	mockService, router := newRouter(t)

	mockService.EXPECT().
		GetAll(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(dto.GetRoomsResponse{TotalData: 0}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/rooms?name=garden", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_GetRoomByID(t *testing.T) {
	mockService, router := newRouter(t)

	mockService.EXPECT().Get(gomock.Any(), "missing").Return(dto.RoomResponse{}, failure.NotFound("room"))

	req := httptest.NewRequest(http.MethodGet, "/v1/rooms/missing", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

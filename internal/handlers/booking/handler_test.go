package booking_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"roombook/infras/otel/mocks"
	bookingMocks "roombook/internal/domains/booking/mocks"
	"roombook/internal/domains/booking/model"
	"roombook/internal/domains/booking/model/dto"
	"roombook/internal/handlers/booking"
)

const validBody = `{
	"room_id": "7",
	"start_date": "2024-06-01",
	"end_date": "2024-06-03",
	"guest_name": "Ana",
	"amount": 15000,
	"currency": "usd",
	"payment_method": "pm_card_visa"
}`

type errorBody struct {
	Error     string `json:"error"`
	Reason    string `json:"reason"`
	Retryable *bool  `json:"retryable"`
}

func newRouter(t *testing.T) (*bookingMocks.MockBookingService, http.Handler) {
	t.Helper()

	ctrl := gomock.NewController(t)
	mockService := bookingMocks.NewMockBookingService(ctrl)

	handler := booking.New(mockService, mocks.NewOtel())

	router := chi.NewRouter()
	router.Route("/v1", handler.Router)

	return mockService, router
}

func confirmed(replayed bool) dto.CreateBookingResponse {
	res := dto.CreateBookingResponse{State: string(model.StateConfirmed), Replayed: replayed}
	res.ID = "bk_1"
	res.RoomID = "7"
	res.PaymentStatus = model.PaymentStatusCaptured
	res.PaymentReference = "ch_1"

	return res
}

func TestHandler_CreateBooking(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		setupMock     func(m *bookingMocks.MockBookingService)
		wantStatus    int
		wantReason    string
		wantRetryable *bool
	}{
		{
			name: "confirmed",
			body: validBody,
			setupMock: func(m *bookingMocks.MockBookingService) {
				m.EXPECT().Create(gomock.Any(), gomock.Any()).Return(confirmed(false), nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "replay",
			body: validBody,
			setupMock: func(m *bookingMocks.MockBookingService) {
				m.EXPECT().Create(gomock.Any(), gomock.Any()).Return(confirmed(true), nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing guest name",
			body:       strings.Replace(validBody, `"Ana"`, `""`, 1),
			setupMock:  func(*bookingMocks.MockBookingService) {},
			wantStatus: http.StatusBadRequest,
			wantReason: string(model.ErrorKindValidation),
		},
		{
			name:       "unknown currency",
			body:       strings.Replace(validBody, `"usd"`, `"dollars"`, 1),
			setupMock:  func(*bookingMocks.MockBookingService) {},
			wantStatus: http.StatusBadRequest,
			wantReason: string(model.ErrorKindValidation),
		},
		{
			name:       "malformed body",
			body:       `{"room_id":`,
			setupMock:  func(*bookingMocks.MockBookingService) {},
			wantStatus: http.StatusBadRequest,
			wantReason: string(model.ErrorKindValidation),
		},
		{
			name: "declined",
			body: validBody,
			setupMock: func(m *bookingMocks.MockBookingService) {
				m.EXPECT().Create(gomock.Any(), gomock.Any()).Return(dto.CreateBookingResponse{}, model.PaymentDeclined("insufficient funds"))
			},
			wantStatus:    http.StatusPaymentRequired,
			wantReason:    string(model.ErrorKindPaymentDeclined),
			wantRetryable: boolPtr(false),
		},
		{
			name: "room not found",
			body: validBody,
			setupMock: func(m *bookingMocks.MockBookingService) {
				m.EXPECT().Create(gomock.Any(), gomock.Any()).Return(dto.CreateBookingResponse{}, model.RoomNotFound("7"))
			},
			wantStatus: http.StatusNotFound,
			wantReason: string(model.ErrorKindRoomNotFound),
		},
		{
			name: "slot conflict",
			body: validBody,
			setupMock: func(m *bookingMocks.MockBookingService) {
				m.EXPECT().Create(gomock.Any(), gomock.Any()).Return(dto.CreateBookingResponse{}, model.SlotConflict())
			},
			wantStatus:    http.StatusConflict,
			wantReason:    string(model.ErrorKindSlotConflict),
			wantRetryable: boolPtr(false),
		},
		{
			name: "processor unavailable",
			body: validBody,
			setupMock: func(m *bookingMocks.MockBookingService) {
				m.EXPECT().Create(gomock.Any(), gomock.Any()).Return(dto.CreateBookingResponse{}, model.ProcessorUnavailable(errors.New("timeout")))
			},
			wantStatus:    http.StatusServiceUnavailable,
			wantReason:    string(model.ErrorKindProcessor),
			wantRetryable: boolPtr(true),
		},
		{
			name: "reconciliation failure",
			body: validBody,
			setupMock: func(m *bookingMocks.MockBookingService) {
				m.EXPECT().Create(gomock.Any(), gomock.Any()).Return(dto.CreateBookingResponse{}, model.ReconciliationFailure("rec_1", errors.New("gateway down")))
			},
			wantStatus:    http.StatusInternalServerError,
			wantReason:    string(model.ErrorKindReconciliation),
			wantRetryable: boolPtr(false),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService, router := newRouter(t)
			tt.setupMock(mockService)

			req := httptest.NewRequest(http.MethodPost, "/v1/bookings", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantStatus < http.StatusBadRequest {
				return
			}

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.wantReason, body.Reason)

			if tt.wantRetryable != nil {
				require.NotNil(t, body.Retryable)
				assert.Equal(t, *tt.wantRetryable, *body.Retryable)
			}
		})
	}
}

func TestHandler_CreateBookingHidesCause(t *testing.T) {
	mockService, router := newRouter(t)

	mockService.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		Return(dto.CreateBookingResponse{}, model.ReconciliationFailure("rec_1", errors.New("sk_live_secret rejected")))

	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", strings.NewReader(validBody))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.NotContains(t, rec.Body.String(), "sk_live_secret")
}

func TestHandler_GetBookings(t *testing.T) {
	t.Run("filters are passed through", func(t *testing.T) {
		mockService, router := newRouter(t)

		want := dto.ListFilter{RoomID: "7", PaymentStatus: model.PaymentStatusCaptured}.ToFilterGroup()

		mockService.EXPECT().
			GetAll(gomock.Any(), gomock.Any(), want).
			Return(dto.GetBookingsResponse{TotalData: 1, TotalPage: 1}, nil)

		req := httptest.NewRequest(http.MethodGet, "/v1/bookings?room_id=7&payment_status=CAPTURED", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown payment status", func(t *testing.T) {
		_, router := newRouter(t)

		req := httptest.NewRequest(http.MethodGet, "/v1/bookings?payment_status=PAID", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_GetBookingByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mockService, router := newRouter(t)

		mockService.EXPECT().Get(gomock.Any(), "bk_1").Return(dto.BookingResponse{ID: "bk_1"}, nil)

		req := httptest.NewRequest(http.MethodGet, "/v1/bookings/bk_1", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"id":"bk_1"`)
	})

	t.Run("not found", func(t *testing.T) {
		mockService, router := newRouter(t)

		mockService.EXPECT().Get(gomock.Any(), "missing").Return(dto.BookingResponse{}, model.BookingNotFound("missing"))

		req := httptest.NewRequest(http.MethodGet, "/v1/bookings/missing", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func boolPtr(b bool) *bool {
	return &b
}

package shared_test

import (
	"context"
	"errors"
	"roombook/shared"
	"roombook/shared/cache/mocks"
	"roombook/shared/constant"
	"roombook/shared/dto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestCalculateTotalPage(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		limit    int
		expected int
	}{
		{name: "zero total returns 1", total: 0, limit: 10, expected: 1},
		{name: "zero limit returns 1", total: 100, limit: 0, expected: 1},
		{name: "negative limit returns 1", total: 100, limit: -5, expected: 1},
		{name: "exact division", total: 100, limit: 10, expected: 10},
		{name: "remainder rounds up", total: 101, limit: 10, expected: 11},
		{name: "total smaller than limit", total: 3, limit: 10, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, shared.CalculateTotalPage(tt.total, tt.limit))
		})
	}
}

func TestTransformFields(t *testing.T) {
	type resolveFields struct {
		Status  string  `db:"status"`
		Note    string  `db:"resolution_note"`
		Skipped string  `db:"-"`
		NoTag   string
		Attempt *int    `db:"attempts"`
		Empty   *string `db:"last_error"`
	}

	zero := 0
	result := shared.TransformFields(resolveFields{
		Status:  "RESOLVED_MANUALLY",
		Note:    "refunded from dashboard",
		Skipped: "ignored",
		NoTag:   "ignored",
		Attempt: &zero,
	}, "ops")

	assert.Equal(t, "RESOLVED_MANUALLY", result["status"])
	assert.Equal(t, "refunded from dashboard", result["resolution_note"])
	assert.Equal(t, &zero, result["attempts"])
	assert.NotContains(t, result, "-")
	assert.NotContains(t, result, "last_error")
	assert.Equal(t, "ops", result[constant.FieldModifiedBy])
	assert.IsType(t, time.Time{}, result[constant.FieldModifiedAt])
	assert.Len(t, result, 5)
}

func TestFilterByID(t *testing.T) {
	group := shared.FilterByID("550e8400-e29b-41d4-a716-446655440000", "id", "rooms")

	where, args := group.GetWhereClause()

	assert.Equal(t, "(rooms.id = :id)", where)
	assert.Equal(t, map[string]any{"id": "550e8400-e29b-41d4-a716-446655440000"}, args)
}

func TestBuildCacheKey(t *testing.T) {
	assert.Equal(t, "room:get", shared.BuildCacheKey("room:get"))
	assert.Equal(t, "room:get:42", shared.BuildCacheKey("room:get", "42"))
	assert.Equal(t, "a:b:c", shared.BuildCacheKey("a", "b", "c"))
}

func TestBuildCacheKeyWithQuery(t *testing.T) {
	params := dto.QueryParams{Page: 1, Limit: 10}
	byRoom := shared.FilterByID("room-1", "room_id", "bookings")

	first := shared.BuildCacheKeyWithQuery("booking:gets", params, byRoom)
	second := shared.BuildCacheKeyWithQuery("booking:gets", params, byRoom)
	otherPage := shared.BuildCacheKeyWithQuery("booking:gets", dto.QueryParams{Page: 2, Limit: 10}, byRoom)
	otherRoom := shared.BuildCacheKeyWithQuery("booking:gets", params, shared.FilterByID("room-2", "room_id", "bookings"))

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, otherPage)
	assert.NotEqual(t, first, otherRoom)
	assert.True(t, strings.HasPrefix(first, "booking:gets:"))
}

func TestInvalidateCaches(t *testing.T) {
	ctrl := gomock.NewController(t)
	redisCache := mocks.NewMockRedisCache(ctrl)

	redisCache.EXPECT().Clear(gomock.Any(), "room:gets*").Return(nil)
	redisCache.EXPECT().Clear(gomock.Any(), "room:count*").Return(errors.New("redis down"))

	shared.InvalidateCaches(context.Background(), redisCache, "room:gets")
	shared.InvalidateCaches(context.Background(), redisCache, "room:count")
}

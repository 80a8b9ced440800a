package timezone_test

import (
	"roombook/shared/timezone"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNowUsesAppLocation(t *testing.T) {
	now := timezone.Now()

	assert.False(t, now.IsZero())
	assert.Equal(t, timezone.GetLocation(), now.Location())
}

func TestParseDate(t *testing.T) {
	start, err := timezone.ParseDate("2024-06-01")
	require.NoError(t, err)

	end, err := timezone.ParseDate("2024-06-03")
	require.NoError(t, err)

	assert.Equal(t, time.UTC, start.Location())
	assert.Equal(t, 48*time.Hour, end.Sub(start))
	assert.Equal(t, "2024-06-01", timezone.FormatDate(start))

	_, err = timezone.ParseDate("2024-13-01")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	testTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.NotEmpty(t, timezone.Format(testTime, time.RFC3339))

	parsed, err := timezone.Parse(time.DateOnly, "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, timezone.GetLocation(), parsed.Location())
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRoundTrip(t *testing.T) {
	d, err := ParseDate("2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", d.String())
	assert.Equal(t, "2026-03-02", d.Add(1).String())
	assert.Equal(t, "2026-02-28", d.Add(-1).String())
}

func TestParseDateInvalid(t *testing.T) {
	_, err := ParseDate("01.03.2026")
	assert.Error(t, err)
}

func TestDateOf(t *testing.T) {
	// Same calendar day regardless of time of day.
	morning := time.Date(2026, 3, 1, 0, 30, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, DateOf(morning), DateOf(evening))
	assert.Equal(t, DateOf(morning)+1, DateOf(evening.Add(time.Hour)))
}

func TestDateTime(t *testing.T) {
	d, err := ParseDate("1970-01-02")
	require.NoError(t, err)
	assert.Equal(t, Date(1), d)
	assert.Equal(t, int64(86400), d.Time().Unix())
}

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixed_NowUTC_AlwaysReturnsConfiguredInstant(t *testing.T) {
	at := time.Date(2026, 7, 31, 12, 0, 0, 0, time.FixedZone("EST", -5*3600))
	f := NewFixed(at)
	assert.Equal(t, at.UTC(), f.NowUTC())
	assert.Equal(t, at.UTC(), f.NowUTC(), "repeated calls must not drift")
}

func TestFixed_NowIn_ConvertsSameInstantToRequestedZone(t *testing.T) {
	f := NewFixed(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))
	got, err := f.NowIn("America/New_York")
	require.NoError(t, err)
	assert.Equal(t, f.At, got.UTC())
	assert.Equal(t, "America/New_York", got.Location().String())
}

func TestFixed_NowIn_UnknownZoneErrors(t *testing.T) {
	f := NewFixed(time.Now())
	_, err := f.NowIn("Not/AZone")
	assert.Error(t, err)
}

func TestSystem_NowUTC_ReturnsUTCLocation(t *testing.T) {
	s := New()
	assert.Equal(t, time.UTC, s.NowUTC().Location())
}

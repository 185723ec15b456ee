package simtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeCalendar(t *testing.T) {
	cases := []struct {
		t    Time
		want string
	}{
		{0, "Spring 1, 1084"},
		{FromDays(31), "Summer 2, 1084"},
		{FromDays(DaysPerYear + 95), "Winter 6, 1085"},
		{FromDays(29.9), "Spring 30, 1084"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.t.String())
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, days := range []float64{0, 1, 31, 119, 120, 400} {
		tm := FromDays(days)
		got, err := Parse(tm.String())
		require.NoError(t, err)
		assert.Equal(t, tm, got)
	}
}

func TestParseAcceptsFallAndISO(t *testing.T) {
	got, err := Parse("fall 1, 1084")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Season())

	_, err = Parse("2026-01-02T03:04:05Z")
	require.NoError(t, err)

	_, err = Parse("Summer 31, 1084")
	require.Error(t, err)
	_, err = Parse("yesterday")
	require.Error(t, err)
}

func TestSeasonAndHour(t *testing.T) {
	tm := FromDays(65).Add(13 * Hour)
	assert.Equal(t, 2, tm.Season())
	assert.Equal(t, 13, tm.HourOfDay())
	assert.Equal(t, 65, tm.Day())
}

func TestManualClockMonotonic(t *testing.T) {
	c := NewManualClock(10)
	c.Advance(-5)
	assert.Equal(t, Time(10), c.Now())
	c.Set(3)
	assert.Equal(t, Time(10), c.Now())
	c.Advance(Day)
	assert.Equal(t, Time(34), c.Now())
}

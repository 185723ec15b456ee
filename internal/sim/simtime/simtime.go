// Package simtime is the campaign clock shared by the world, the engine and the logs.
//
// Time is measured in campaign hours since the campaign epoch. A campaign year has four seasons
// of SeasonDays days each.
package simtime

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	HoursPerDay    = 24
	SeasonDays     = 30
	SeasonsPerYear = 4
	DaysPerYear    = SeasonDays * SeasonsPerYear
	EpochYear      = 1084
)

var seasonNames = [SeasonsPerYear]string{"Spring", "Summer", "Autumn", "Winter"}

// Time is a point on the campaign clock, in hours since the epoch.
type Time float64

// Duration is an elapsed span of campaign hours.
type Duration float64

const (
	Hour Duration = 1
	Day  Duration = HoursPerDay
)

func FromDays(days float64) Time { return Time(days * HoursPerDay) }

func (t Time) Hours() float64 { return float64(t) }

func (t Time) Days() float64 { return float64(t) / HoursPerDay }

func (t Time) Add(d Duration) Time { return t + Time(d) }

func (t Time) Sub(u Time) Duration { return Duration(t - u) }

func (t Time) Before(u Time) bool { return t < u }

// Day returns the whole campaign day index (0-based).
func (t Time) Day() int { return int(math.Floor(t.Days())) }

// Season returns 0..3 (Spring..Winter).
func (t Time) Season() int {
	d := t.Day() % DaysPerYear
	if d < 0 {
		d += DaysPerYear
	}
	return d / SeasonDays
}

func (t Time) Year() int { return EpochYear + floorDiv(t.Day(), DaysPerYear) }

// HourOfDay returns 0..23.
func (t Time) HourOfDay() int {
	h := int(math.Floor(float64(t))) % HoursPerDay
	if h < 0 {
		h += HoursPerDay
	}
	return h
}

// String renders the calendar form used in the logs, e.g. "Summer 2, 1084".
func (t Time) String() string {
	d := t.Day() % DaysPerYear
	if d < 0 {
		d += DaysPerYear
	}
	return fmt.Sprintf("%s %d, %d", seasonNames[d/SeasonDays], d%SeasonDays+1, t.Year())
}

func (d Duration) Hours() float64 { return float64(d) }

var calendarRe = regexp.MustCompile(`^(?i)(spring|summer|autumn|fall|winter)\s+(\d+),\s*(\d+)$`)

// Parse accepts the calendar form produced by Time.String and, for logs written by other tools,
// RFC3339 timestamps (interpreted as hours since the Unix epoch).
func Parse(s string) (Time, error) {
	s = strings.TrimSpace(s)
	if m := calendarRe.FindStringSubmatch(s); m != nil {
		season := 0
		switch strings.ToLower(m[1]) {
		case "spring":
			season = 0
		case "summer":
			season = 1
		case "autumn", "fall":
			season = 2
		case "winter":
			season = 3
		}
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if day < 1 || day > SeasonDays {
			return 0, fmt.Errorf("invalid calendar day %d in %q", day, s)
		}
		days := (year-EpochYear)*DaysPerYear + season*SeasonDays + day - 1
		return FromDays(float64(days)), nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	return Time(float64(ts.Unix()) / 3600), nil
}

// Clock supplies the current campaign time. It must be monotonically non-decreasing.
type Clock interface {
	Now() Time
}

// ManualClock is advanced explicitly by its owner.
type ManualClock struct {
	mu  sync.Mutex
	now Time
}

func NewManualClock(start Time) *ManualClock { return &ManualClock{now: start} }

func (c *ManualClock) Now() Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward; negative durations are ignored.
func (c *ManualClock) Advance(d Duration) Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return c.now
}

// Set moves the clock to t if t is not in the past.
func (c *ManualClock) Set(t Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t > c.now {
		c.now = t
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b < 0 {
		q--
	}
	return q
}

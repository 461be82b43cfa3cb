// internal/engine/schedule/calculator_test.go
package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreach-engine/internal/models"
)

func newTestCalculator(t *testing.T, seed int64) *Calculator {
	calc, err := New(models.SchedulePolicy{
		Timezone:      "America/New_York",
		WorkStartHour: 9,
		WorkEndHour:   17,
		WeekdaysOnly:  true,
		SkipHolidays:  true,
		CountryCode:   "US",
	}, seed)
	require.NoError(t, err)
	return calc
}

func TestCanSendNow(t *testing.T) {
	calc := newTestCalculator(t, 1)
	ny, _ := time.LoadLocation("America/New_York")

	tests := []struct {
		name       string
		at         time.Time
		want       bool
		wantReason string
	}{
		{
			name: "tuesday mid-morning",
			at:   time.Date(2025, 3, 11, 10, 30, 0, 0, ny),
			want: true,
		},
		{
			name:       "saturday",
			at:         time.Date(2025, 3, 15, 10, 30, 0, 0, ny),
			want:       false,
			wantReason: "weekend",
		},
		{
			name:       "before window",
			at:         time.Date(2025, 3, 11, 8, 59, 0, 0, ny),
			want:       false,
			wantReason: "outside business hours (08:00)",
		},
		{
			name:       "at window close",
			at:         time.Date(2025, 3, 11, 17, 0, 0, 0, ny),
			want:       false,
			wantReason: "outside business hours (17:00)",
		},
		{
			name:       "independence day",
			at:         time.Date(2025, 7, 4, 11, 0, 0, 0, ny),
			want:       false,
			wantReason: "holiday 2025-07-04",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := calc.CanSendNow(tt.at)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestNextSlotMonotonicAndInsideWindow(t *testing.T) {
	calc := newTestCalculator(t, 42)
	ny, _ := time.LoadLocation("America/New_York")

	prev := time.Date(2025, 3, 10, 9, 0, 0, 0, ny)
	for i := 0; i < 200; i++ {
		slot := calc.NextSlot(prev)
		require.True(t, slot.After(prev), "slot %d not after previous", i)

		ok, reason := calc.CanSendNow(slot)
		require.True(t, ok, "slot %d outside window: %s (%s)", i, reason, slot)
		prev = slot
	}
}

func TestNextSlotJitterBounds(t *testing.T) {
	calc := newTestCalculator(t, 7)
	ny, _ := time.LoadLocation("America/New_York")

	prev := time.Date(2025, 3, 10, 9, 0, 0, 0, ny)
	for i := 0; i < 50; i++ {
		slot := calc.NextSlot(prev)
		gap := slot.Sub(prev)
		// Gaps grow past the jitter ceiling only when the slot rolled
		// over a window boundary.
		if sameDay(slot, prev, ny) {
			assert.GreaterOrEqual(t, gap, 20*time.Minute)
			assert.LessOrEqual(t, gap, 45*time.Minute)
		}
		prev = slot
	}
}

func TestNextSlotDeterministicPerSeed(t *testing.T) {
	ny, _ := time.LoadLocation("America/New_York")
	anchor := time.Date(2025, 3, 10, 9, 0, 0, 0, ny)

	run := func(seed int64) []time.Time {
		calc := newTestCalculator(t, seed)
		var slots []time.Time
		prev := anchor
		for i := 0; i < 30; i++ {
			prev = calc.NextSlot(prev)
			slots = append(slots, prev)
		}
		return slots
	}

	assert.Equal(t, run(99), run(99))
	assert.NotEqual(t, run(99), run(100))
}

func TestNextSlotRollsOverWeekend(t *testing.T) {
	calc := newTestCalculator(t, 3)
	ny, _ := time.LoadLocation("America/New_York")

	// Friday 16:55: the jittered gap lands past close, so the slot must
	// move to Monday morning.
	friday := time.Date(2025, 3, 14, 16, 55, 0, 0, ny)
	slot := calc.NextSlot(friday)

	assert.Equal(t, time.Monday, slot.In(ny).Weekday())
	assert.Equal(t, 17, slot.In(ny).Day())
	assert.Equal(t, 9, slot.In(ny).Hour())
}

func TestNextWorkdayStartSkipsHoliday(t *testing.T) {
	calc := newTestCalculator(t, 1)
	ny, _ := time.LoadLocation("America/New_York")

	// 2 days after Wednesday 2025-07-02 is Friday July 4th; the opening
	// must move past the holiday and the weekend to Monday the 7th.
	base := time.Date(2025, 7, 2, 10, 0, 0, 0, ny)
	next := calc.NextWorkdayStart(base, 2)

	assert.Equal(t, time.Date(2025, 7, 7, 9, 0, 0, 0, ny), next)
}

func TestUnknownCountryFallsBackToInternational(t *testing.T) {
	berlin, _ := time.LoadLocation("Europe/Berlin")

	// German Unity Day is only a holiday on the DE calendar.
	unityDay := time.Date(2025, 10, 3, 12, 0, 0, 0, berlin)
	assert.True(t, IsHoliday(unityDay, "DE"))
	assert.False(t, IsHoliday(unityDay, "XX"))

	christmas := time.Date(2025, 12, 25, 12, 0, 0, 0, berlin)
	assert.True(t, IsHoliday(christmas, "XX"))
}

func TestStartOfWeek(t *testing.T) {
	ny, _ := time.LoadLocation("America/New_York")

	tests := []struct {
		name      string
		at        time.Time
		weekStart time.Weekday
		want      time.Time
	}{
		{
			name:      "wednesday with monday weeks",
			at:        time.Date(2025, 3, 12, 15, 0, 0, 0, ny),
			weekStart: time.Monday,
			want:      time.Date(2025, 3, 10, 0, 0, 0, 0, ny),
		},
		{
			name:      "monday is its own week start",
			at:        time.Date(2025, 3, 10, 0, 30, 0, 0, ny),
			weekStart: time.Monday,
			want:      time.Date(2025, 3, 10, 0, 0, 0, 0, ny),
		},
		{
			name:      "sunday weeks",
			at:        time.Date(2025, 3, 12, 15, 0, 0, 0, ny),
			weekStart: time.Sunday,
			want:      time.Date(2025, 3, 9, 0, 0, 0, 0, ny),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StartOfWeek(tt.at, ny, tt.weekStart))
		})
	}
}

func TestInvalidPolicy(t *testing.T) {
	_, err := New(models.SchedulePolicy{
		Timezone:         "America/New_York",
		JitterMinMinutes: 50,
		JitterMaxMinutes: 10,
	}, 1)
	assert.Error(t, err)

	_, err = New(models.SchedulePolicy{Timezone: "Not/AZone"}, 1)
	assert.Error(t, err)
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	al, bl := a.In(loc), b.In(loc)
	return al.Year() == bl.Year() && al.YearDay() == bl.YearDay()
}

// internal/engine/schedule/calculator.go

// Package schedule computes send slots for outreach sequences. The
// calculator is pure: given a policy, a seed, and an anchor time it
// always produces the same slots, which keeps queue building testable
// and rebuilds reproducible.
package schedule

import (
	"fmt"
	"math/rand"
	"time"

	"outreach-engine/internal/models"
)

// Calculator places sends inside a policy's business window with
// randomized spacing between consecutive slots on one account.
type Calculator struct {
	policy models.SchedulePolicy
	loc    *time.Location
	rng    *rand.Rand
}

// New builds a calculator for the policy. The seed drives the jitter
// stream; two calculators with the same policy and seed produce
// identical slot sequences.
func New(policy models.SchedulePolicy, seed int64) (*Calculator, error) {
	policy = policy.Normalized()
	if policy.JitterMinMinutes > policy.JitterMaxMinutes {
		return nil, fmt.Errorf("jitter window inverted: min %d > max %d",
			policy.JitterMinMinutes, policy.JitterMaxMinutes)
	}

	loc, err := time.LoadLocation(policy.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", policy.Timezone, err)
	}

	return &Calculator{
		policy: policy,
		loc:    loc,
		rng:    rand.New(rand.NewSource(seed)),
	}, nil
}

func (c *Calculator) Policy() models.SchedulePolicy {
	return c.policy
}

// CanSendNow reports whether t falls inside the policy's window, with a
// human-readable reason when it does not.
func (c *Calculator) CanSendNow(t time.Time) (bool, string) {
	local := t.In(c.loc)

	if c.policy.WeekdaysOnly && isWeekend(local) {
		return false, "weekend"
	}
	if c.policy.SkipHolidays && IsHoliday(local, c.policy.CountryCode) {
		return false, "holiday " + local.Format("2006-01-02")
	}
	hour := local.Hour()
	if hour < c.policy.WorkStartHour || hour >= c.policy.WorkEndHour {
		return false, fmt.Sprintf("outside business hours (%02d:00)", hour)
	}
	return true, ""
}

// NextSlot returns the next valid send time strictly after prev: prev
// plus a jittered gap, normalized forward into the policy window. Slots
// are monotonic, so chaining NextSlot over a contact list yields a
// spaced queue.
func (c *Calculator) NextSlot(prev time.Time) time.Time {
	gap := c.policy.JitterMinMinutes
	if span := c.policy.JitterMaxMinutes - c.policy.JitterMinMinutes; span > 0 {
		gap += c.rng.Intn(span + 1)
	}
	return c.normalize(prev.In(c.loc).Add(time.Duration(gap) * time.Minute))
}

// WindowOpen returns the first valid send time at or after t.
func (c *Calculator) WindowOpen(t time.Time) time.Time {
	return c.normalize(t.In(c.loc))
}

// NextWorkdayStart returns the opening of the first valid window at
// least days calendar days after t. Used for step gaps ("5 days after
// the previous step") and failure cooldowns.
func (c *Calculator) NextWorkdayStart(t time.Time, days int) time.Time {
	local := t.In(c.loc).AddDate(0, 0, days)
	opening := time.Date(local.Year(), local.Month(), local.Day(),
		c.policy.WorkStartHour, 0, 0, 0, c.loc)
	return c.normalize(opening)
}

// normalize advances t forward until it sits inside the policy window.
func (c *Calculator) normalize(t time.Time) time.Time {
	for {
		if c.policy.WeekdaysOnly && isWeekend(t) {
			t = c.nextDayOpening(t)
			continue
		}
		if c.policy.SkipHolidays && IsHoliday(t, c.policy.CountryCode) {
			t = c.nextDayOpening(t)
			continue
		}
		if t.Hour() < c.policy.WorkStartHour {
			t = time.Date(t.Year(), t.Month(), t.Day(),
				c.policy.WorkStartHour, t.Minute(), t.Second(), 0, c.loc)
			continue
		}
		if t.Hour() >= c.policy.WorkEndHour {
			t = c.nextDayOpening(t)
			continue
		}
		return t
	}
}

// nextDayOpening moves to the next calendar day at the window start,
// keeping the minute offset so chained slots do not pile up at :00.
func (c *Calculator) nextDayOpening(t time.Time) time.Time {
	next := t.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(),
		c.policy.WorkStartHour, t.Minute(), t.Second(), 0, c.loc)
}

// DayBounds returns the local calendar day [start, end) containing t,
// in the policy timezone.
func (c *Calculator) DayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(c.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	return start, start.AddDate(0, 0, 1)
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// StartOfDay returns local midnight of the day containing t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// StartOfWeek returns local midnight of the most recent weekStart day
// at or before t in loc. Quota weeks roll over at this boundary.
func StartOfWeek(t time.Time, loc *time.Location, weekStart time.Weekday) time.Time {
	day := StartOfDay(t, loc)
	offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
	return day.AddDate(0, 0, -offset)
}

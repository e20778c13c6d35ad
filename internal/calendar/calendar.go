// Package calendar computes the day counter and the next 100-day milestone.
//
// Every computation works on civil dates in one fixed zone: two instants on
// the same local day are zero days apart regardless of the hour, and the
// host's local zone is never consulted.
package calendar

import (
	"fmt"
	"time"
)

// MilestoneStep is the distance between two milestones, in days.
const MilestoneStep = 100

// DefaultDateLayout renders dates in labels and journal entries.
const DefaultDateLayout = "2006-01-02"

// Milestone is the next round-number anniversary.
type Milestone struct {
	Days          int       // e.g. 200
	Date          time.Time // midnight of the milestone day in the calendar zone
	DaysRemaining int       // civil days from today until Date, always >= 1
	Label         string
}

// DaysTogether returns the number of civil days between start and now,
// both read in start's location. includeToday adds one, so the start day
// itself counts as day 1.
func DaysTogether(start, now time.Time, includeToday bool) int {
	days := civilDays(start, now.In(start.Location()))
	if includeToday {
		days++
	}
	return days
}

// NextMilestone returns the first multiple of MilestoneStep days after start
// that falls strictly after now. Dates are formatted with layout.
func NextMilestone(start, now time.Time, layout string) Milestone {
	loc := start.Location()
	now = now.In(loc)

	elapsed := civilDays(start, now)
	periods := floorDiv(elapsed, MilestoneStep)
	next := (periods + 1) * MilestoneStep

	y, m, d := start.Date()
	date := time.Date(y, m, d+next, 0, 0, 0, 0, loc)

	if layout == "" {
		layout = DefaultDateLayout
	}
	return Milestone{
		Days:          next,
		Date:          date,
		DaysRemaining: civilDays(now, date),
		Label:         fmt.Sprintf("%d day anniversary (%s)", next, date.Format(layout)),
	}
}

// civilDays is the number of calendar days from a's date to b's date, each
// taken in its own location.
func civilDays(a, b time.Time) int {
	return int(dayNumber(b) - dayNumber(a))
}

func dayNumber(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}

// Calendar binds the relationship start date, the fixed zone and a clock.
type Calendar struct {
	start      time.Time
	loc        *time.Location
	now        func() time.Time
	dateLayout string
}

// New returns a Calendar for the civil date of start in loc. A nil clock
// means time.Now.
func New(start time.Time, loc *time.Location, clock func() time.Time, dateLayout string) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	if dateLayout == "" {
		dateLayout = DefaultDateLayout
	}
	y, m, d := start.Date()
	return &Calendar{
		start:      time.Date(y, m, d, 0, 0, 0, 0, loc),
		loc:        loc,
		now:        clock,
		dateLayout: dateLayout,
	}
}

// Now is the current instant in the calendar zone.
func (c *Calendar) Now() time.Time { return c.now().In(c.loc) }

func (c *Calendar) Start() time.Time { return c.start }

func (c *Calendar) Location() *time.Location { return c.loc }

func (c *Calendar) DateLayout() string { return c.dateLayout }

func (c *Calendar) DaysTogether(includeToday bool) int {
	return DaysTogether(c.start, c.Now(), includeToday)
}

func (c *Calendar) NextMilestone() Milestone {
	return NextMilestone(c.start, c.Now(), c.dateLayout)
}

// FormatDate renders t in the calendar zone with the configured layout.
func (c *Calendar) FormatDate(t time.Time) string { return t.In(c.loc).Format(c.dateLayout) }

// FormatTime renders the wall clock of t in the calendar zone.
func (c *Calendar) FormatTime(t time.Time) string { return t.In(c.loc).Format("15:04:05") }

package calendar

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/teambition/rrule-go"
)

// Monthly is a fixed 30 day step, not calendar month arithmetic.
var recurrenceStepDays = map[Recurrence]int{
	RecurrenceDaily:   1,
	RecurrenceWeekly:  7,
	RecurrenceMonthly: 30,
}

// Occurrence is one concrete interval produced by an event.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// NextOccurrence returns the first occurrence of the event that starts
// strictly after the given naive reference time.
//
// A non-recurring event yields its own interval only while it has not started
// yet. Recurring events are stepped forward, start and end together, until
// the start passes the reference. Unknown recurrence rules are treated like
// "none".
func (e Event) NextOccurrence(after time.Time) (Occurrence, bool) {
	base := Occurrence{Start: e.StartTime, End: e.EndTime}

	rule, ok := recurrenceRule(e.Recurrence, e.StartTime.Truncate(time.Second))
	if !ok {
		if base.Start.After(after) {
			return base, true
		}
		return Occurrence{}, false
	}

	// rules run on whole seconds, the sub-second part is added back
	fraction := e.StartTime.Sub(e.StartTime.Truncate(time.Second))
	start := rule.After(after.Add(-fraction), false)
	if start.IsZero() {
		return Occurrence{}, false
	}
	start = start.Add(fraction)
	return Occurrence{Start: start, End: start.Add(e.EndTime.Sub(e.StartTime))}, true
}

func recurrenceRule(recurrence Recurrence, dtstart time.Time) (*rrule.RRule, bool) {
	days, ok := recurrenceStepDays[recurrence]
	if !ok {
		return nil, false
	}
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.DAILY,
		Interval: days,
		Dtstart:  dtstart,
	})
	if err != nil {
		log.Errorf("could not build recurrence rule %q: %v", recurrence, err)
		return nil, false
	}
	return rule, true
}

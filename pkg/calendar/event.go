package calendar

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

// Event is a single schedulable item. StartTime and EndTime are naive
// wall-clock times (see Naive) with microsecond precision.
type Event struct {
	ID          string
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Recurrence  Recurrence
	Email       *string
}

// EventInput carries the raw fields an event is constructed from.
type EventInput struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	Recurrence  string  `json:"recurrence"`
	Email       *string `json:"email"`
}

// Record is the flat, persisted and API-facing form of an Event.
type Record struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	Recurrence  string  `json:"recurrence"`
	Email       *string `json:"email"`
}

// NewEvent validates the input and builds an Event from it. It never returns
// a partially valid event.
func NewEvent(in EventInput) (*Event, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.StartTime) == "" || strings.TrimSpace(in.EndTime) == "" {
		return nil, newValidationError("title, start time and end time are required")
	}

	start, err := ParseTime(in.StartTime)
	if err != nil {
		return nil, newValidationError("start time and end time must be valid ISO 8601 datetime strings (e.g. YYYY-MM-DDTHH:MM:SS)")
	}
	end, err := ParseTime(in.EndTime)
	if err != nil {
		return nil, newValidationError("start time and end time must be valid ISO 8601 datetime strings (e.g. YYYY-MM-DDTHH:MM:SS)")
	}
	if !start.Before(end) {
		return nil, newValidationError("start must precede end")
	}

	recurrence, err := parseRecurrence(in.Recurrence)
	if err != nil {
		return nil, err
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	return &Event{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		StartTime:   start,
		EndTime:     end,
		Recurrence:  recurrence,
		Email:       cloneString(in.Email),
	}, nil
}

func parseRecurrence(value string) (Recurrence, error) {
	if value == "" {
		return RecurrenceNone, nil
	}
	r := Recurrence(strings.ToLower(value))
	if !r.Valid() {
		return "", newValidationError("recurrence must be one of none, daily, weekly, monthly")
	}
	return r, nil
}

// Record serializes the event.
func (e Event) Record() Record {
	return Record{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		StartTime:   FormatTime(e.StartTime),
		EndTime:     FormatTime(e.EndTime),
		Recurrence:  string(e.Recurrence),
		Email:       cloneString(e.Email),
	}
}

// EventFromRecord rebuilds an event from a previously serialized record.
// Records are trusted: only the time strings are parsed again.
func EventFromRecord(r Record) (Event, error) {
	start, err := ParseTime(r.StartTime)
	if err != nil {
		return Event{}, newValidationError("stored start time is not a valid datetime: " + r.StartTime)
	}
	end, err := ParseTime(r.EndTime)
	if err != nil {
		return Event{}, newValidationError("stored end time is not a valid datetime: " + r.EndTime)
	}
	recurrence := Recurrence(r.Recurrence)
	if recurrence == "" {
		recurrence = RecurrenceNone
	}
	return Event{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		StartTime:   start,
		EndTime:     end,
		Recurrence:  recurrence,
		Email:       cloneString(r.Email),
	}, nil
}

// clone returns a copy of e that shares no memory with it.
func (e Event) clone() Event {
	e.Email = cloneString(e.Email)
	return e
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// apply returns a copy of e with the patch merged in. e itself is left alone,
// so a failed patch has no effect.
func (e Event) apply(patch EventPatch) (Event, error) {
	updated := e
	if patch.Title.Set {
		if strings.TrimSpace(patch.Title.Value) == "" {
			return Event{}, newValidationError("title cannot be empty")
		}
		updated.Title = patch.Title.Value
	}
	if patch.Description.Set {
		updated.Description = patch.Description.Value
	}
	if patch.Recurrence.Set {
		recurrence, err := parseRecurrence(patch.Recurrence.Value)
		if err != nil {
			return Event{}, err
		}
		updated.Recurrence = recurrence
	}
	if patch.Email.Set {
		updated.Email = cloneString(patch.Email.Value)
	}
	if patch.StartTime.Set && strings.TrimSpace(patch.StartTime.Value) != "" {
		start, err := ParseTime(patch.StartTime.Value)
		if err != nil {
			return Event{}, newValidationError("new start time must be a valid ISO 8601 datetime string")
		}
		updated.StartTime = start
	}
	if patch.EndTime.Set && strings.TrimSpace(patch.EndTime.Value) != "" {
		end, err := ParseTime(patch.EndTime.Value)
		if err != nil {
			return Event{}, newValidationError("new end time must be a valid ISO 8601 datetime string")
		}
		updated.EndTime = end
	}
	if !updated.StartTime.Before(updated.EndTime) {
		return Event{}, newValidationError("start must precede end")
	}
	return updated, nil
}

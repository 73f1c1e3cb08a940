package event_bus

import "time"

const (
	CalendarEventCreatedType EventType = "calendar.event.created"
	CalendarEventUpdatedType EventType = "calendar.event.updated"
	CalendarEventDeletedType EventType = "calendar.event.deleted"
)

// CalendarEventChanged is published after an event was created or updated
// and the collection was persisted.
type CalendarEventChanged struct {
	ID         string
	Title      string
	StartTime  time.Time
	EndTime    time.Time
	Recurrence string
}

// CalendarEventDeleted is published after an event was removed and the
// collection was persisted.
type CalendarEventDeleted struct {
	ID string
}

package calendar

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klokku/eventcal/internal/event_bus"
	"github.com/klokku/eventcal/internal/utils"
	log "github.com/sirupsen/logrus"
)

// Store owns the canonical, insertion ordered event collection. Every
// mutation rewrites the whole collection through the Persister while holding
// the write lock; readers always see a complete collection and get events
// that share no memory with it.
type Store struct {
	mu        sync.RWMutex
	events    []Event
	persister Persister
	clock     utils.Clock
	bus       *event_bus.EventBus
}

// NewStore loads the persisted collection once. Records that cannot be
// decoded are skipped. bus may be nil.
func NewStore(ctx context.Context, persister Persister, clock utils.Clock, bus *event_bus.EventBus) *Store {
	records := persister.LoadAll(ctx)
	events := make([]Event, 0, len(records))
	for _, record := range records {
		event, err := EventFromRecord(record)
		if err != nil {
			log.Warnf("skipping stored event %s: %v", record.ID, err)
			continue
		}
		events = append(events, event)
	}
	log.Infof("Loaded %d events", len(events))

	return &Store{
		events:    events,
		persister: persister,
		clock:     clock,
		bus:       bus,
	}
}

// Add appends the event, persists the collection and returns the event unchanged.
func (s *Store) Add(ctx context.Context, event Event) (Event, error) {
	s.mu.Lock()
	previous := s.events
	s.events = append(append(make([]Event, 0, len(previous)+1), previous...), event.clone())
	if err := s.persist(ctx); err != nil {
		s.events = previous
		s.mu.Unlock()
		return Event{}, err
	}
	s.mu.Unlock()

	s.publish(ctx, event_bus.CalendarEventCreatedType, changedPayload(event))
	return event, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return Event{}, false
	}
	return s.events[idx].clone(), true
}

// List returns the events ordered by their effective start time. A zero
// after means now.
//
// With expandRecurring, each recurring event is replaced by a copy moved to
// its next occurrence after the reference time (keeping its id) or left out
// when it has none. Non-recurring events are returned as stored.
func (s *Store) List(ctx context.Context, after time.Time, expandRecurring bool) []Event {
	if after.IsZero() {
		after = s.clock.Now()
	}
	after = Naive(after)

	s.mu.RLock()
	result := make([]Event, 0, len(s.events))
	for _, event := range s.events {
		if !expandRecurring || event.Recurrence == RecurrenceNone {
			result = append(result, event.clone())
			continue
		}
		occurrence, ok := event.NextOccurrence(after)
		if !ok {
			continue
		}
		view := event.clone()
		view.StartTime = occurrence.Start
		view.EndTime = occurrence.End
		result = append(result, view)
	}
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result
}

// Update merges the patch into the event with the given id. The boolean is
// false when no such event exists. On a ValidationError or a persistence
// failure the stored event is left exactly as it was.
func (s *Store) Update(ctx context.Context, id string, patch EventPatch) (Event, bool, error) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return Event{}, false, nil
	}

	previous := s.events[idx]
	updated, err := previous.apply(patch)
	if err != nil {
		s.mu.Unlock()
		return Event{}, true, err
	}

	s.events[idx] = updated
	if err := s.persist(ctx); err != nil {
		s.events[idx] = previous
		s.mu.Unlock()
		return Event{}, true, err
	}
	s.mu.Unlock()

	s.publish(ctx, event_bus.CalendarEventUpdatedType, changedPayload(updated))
	return updated.clone(), true, nil
}

// Delete removes the event with the given id and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	previous := s.events
	remaining := make([]Event, 0, len(previous))
	for _, event := range previous {
		if event.ID != id {
			remaining = append(remaining, event)
		}
	}
	if len(remaining) == len(previous) {
		s.mu.Unlock()
		return false, nil
	}

	s.events = remaining
	if err := s.persist(ctx); err != nil {
		s.events = previous
		s.mu.Unlock()
		return false, err
	}
	s.mu.Unlock()

	s.publish(ctx, event_bus.CalendarEventDeletedType, event_bus.CalendarEventDeleted{ID: id})
	return true, nil
}

// Search returns stored events whose title or description contains query,
// ignoring case. Recurring events are matched as stored, without expansion.
func (s *Store) Search(ctx context.Context, query string) []Event {
	query = strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Event, 0)
	for _, event := range s.events {
		if strings.Contains(strings.ToLower(event.Title), query) ||
			strings.Contains(strings.ToLower(event.Description), query) {
			result = append(result, event.clone())
		}
	}
	return result
}

// ReminderCandidates returns the events whose next occurrence starts within
// (reference, reference+window], each moved to that occurrence.
func (s *Store) ReminderCandidates(ctx context.Context, reference time.Time, window time.Duration) []Event {
	reference = Naive(reference)
	until := reference.Add(window)

	candidates := make([]Event, 0)
	for _, event := range s.List(ctx, reference, true) {
		if event.StartTime.After(reference) && !event.StartTime.After(until) {
			candidates = append(candidates, event)
		}
	}
	return candidates
}

func (s *Store) indexOf(id string) int {
	for i, event := range s.events {
		if event.ID == id {
			return i
		}
	}
	return -1
}

// persist must be called with the write lock held.
func (s *Store) persist(ctx context.Context) error {
	records := make([]Record, 0, len(s.events))
	for _, event := range s.events {
		records = append(records, event.Record())
	}
	if err := s.persister.SaveAll(ctx, records); err != nil {
		log.Errorf("failed to persist %d events: %v", len(records), err)
		return fmt.Errorf("failed to persist events: %w", err)
	}
	return nil
}

func (s *Store) publish(ctx context.Context, eventType event_bus.EventType, data any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(event_bus.NewEvent(ctx, eventType, data)); err != nil {
		log.Warnf("failed to publish %s: %v", eventType, err)
	}
}

func changedPayload(e Event) event_bus.CalendarEventChanged {
	return event_bus.CalendarEventChanged{
		ID:         e.ID,
		Title:      e.Title,
		StartTime:  e.StartTime,
		EndTime:    e.EndTime,
		Recurrence: string(e.Recurrence),
	}
}

package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/klokku/eventcal/internal/config"
	"github.com/klokku/eventcal/internal/event_bus"
	"github.com/klokku/eventcal/internal/metrics"
	"github.com/klokku/eventcal/internal/utils"
	"github.com/klokku/eventcal/pkg/calendar"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

const notifyTimeout = 30 * time.Second

// CandidateSource is implemented by *calendar.Store.
type CandidateSource interface {
	ReminderCandidates(ctx context.Context, reference time.Time, window time.Duration) []calendar.Event
}

type remindedOccurrence struct {
	eventID string
	start   time.Time
}

// Scheduler periodically looks for event occurrences starting within the
// reminder window and reminds about each occurrence at most once. The set of
// reminded occurrences lives in memory only.
type Scheduler struct {
	source   CandidateSource
	notifier Notifier
	clock    utils.Clock
	metrics  *metrics.Metrics
	window   time.Duration
	schedule string

	mu       sync.Mutex
	reminded map[string]remindedOccurrence
	inflight sync.WaitGroup
	cron     *cron.Cron
}

// NewScheduler builds a stopped scheduler. m may be nil.
func NewScheduler(source CandidateSource, notifier Notifier, clock utils.Clock, m *metrics.Metrics, cfg config.Reminders) *Scheduler {
	logger := cron.PrintfLogger(log.StandardLogger())
	return &Scheduler{
		source:   source,
		notifier: notifier,
		clock:    clock,
		metrics:  m,
		window:   cfg.Window,
		schedule: cfg.Schedule,
		reminded: make(map[string]remindedOccurrence),
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
}

// Start schedules Scan and returns immediately.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.Scan(context.Background()) }); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	log.Infof("Reminder scheduler started (schedule %q, window %s)", s.schedule, s.window)
	return nil
}

// Stop waits for a running scan and for notifications still being delivered.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.inflight.Wait()
	log.Info("Reminder scheduler stopped")
}

// Wait blocks until all notifications started so far have finished.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}

// Subscribe forgets reminded occurrences of deleted events. Updates keep
// them: a moved start time already yields a new key.
func (s *Scheduler) Subscribe(bus *event_bus.EventBus) (unsubscribe func()) {
	return event_bus.SubscribeTyped(bus, event_bus.CalendarEventDeletedType,
		func(e event_bus.EventT[event_bus.CalendarEventDeleted]) error {
			s.forget(e.Data.ID)
			return nil
		})
}

// Scan runs one reminder cycle and returns how many occurrences were reminded.
// Notification errors are logged and never returned.
func (s *Scheduler) Scan(ctx context.Context) int {
	now := calendar.Naive(s.clock.Now())
	candidates := s.source.ReminderCandidates(ctx, now, s.window)

	s.mu.Lock()
	s.prune(now)
	due := make([]calendar.Event, 0, len(candidates))
	for _, event := range candidates {
		key := reminderKey(event.ID, event.StartTime)
		if _, done := s.reminded[key]; done {
			continue
		}
		s.reminded[key] = remindedOccurrence{eventID: event.ID, start: event.StartTime}
		due = append(due, event)
	}
	s.mu.Unlock()

	for _, event := range due {
		log.Infof("REMINDER: Event '%s' is starting in %d minutes!", event.Title, int(event.StartTime.Sub(now).Minutes()))
		s.metrics.ReminderSent()
		if event.Email != nil && *event.Email != "" {
			s.dispatch(event)
		}
	}
	return len(due)
}

func (s *Scheduler) dispatch(event calendar.Event) {
	address := *event.Email
	subject := fmt.Sprintf("Reminder: %s", event.Title)
	body := fmt.Sprintf("Your event '%s' is starting at %s.", event.Title, calendar.FormatTime(event.StartTime))

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("reminder notifier panicked for event %s: %v", event.ID, r)
				s.metrics.ReminderFailed()
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, address, subject, body); err != nil {
			log.Warnf("failed to send reminder for event %s: %v", event.ID, err)
			s.metrics.ReminderFailed()
		}
	}()
}

// prune drops occurrences that have already started. Callers hold s.mu.
func (s *Scheduler) prune(now time.Time) {
	for key, occurrence := range s.reminded {
		if !occurrence.start.After(now) {
			delete(s.reminded, key)
		}
	}
}

func (s *Scheduler) forget(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, occurrence := range s.reminded {
		if occurrence.eventID == eventID {
			delete(s.reminded, key)
		}
	}
}

func (s *Scheduler) remindedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reminded)
}

func reminderKey(eventID string, start time.Time) string {
	return eventID + ":" + calendar.FormatTime(start)
}

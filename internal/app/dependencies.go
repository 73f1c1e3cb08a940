package app

import (
	"context"
	"fmt"

	"github.com/klokku/eventcal/internal/config"
	"github.com/klokku/eventcal/internal/database"
	"github.com/klokku/eventcal/internal/event_bus"
	"github.com/klokku/eventcal/internal/metrics"
	"github.com/klokku/eventcal/internal/utils"
	"github.com/klokku/eventcal/pkg/calendar"
	"github.com/klokku/eventcal/pkg/reminder"
	log "github.com/sirupsen/logrus"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock    utils.Clock
	EventBus *event_bus.EventBus
	Metrics  *metrics.Metrics

	Persister       calendar.Persister
	CalendarStore   *calendar.Store
	CalendarHandler *calendar.Handler

	Notifier          reminder.Notifier
	ReminderScheduler *reminder.Scheduler

	closers []func()
}

// BuildDependencies opens the configured storage and wires all services and
// handlers. Close releases what was opened.
func BuildDependencies(ctx context.Context, cfg config.Application) (*Dependencies, error) {
	deps := &Dependencies{}

	deps.Clock = &utils.SystemClock{}
	deps.EventBus = event_bus.NewEventBus()
	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.New()
		deps.closers = append(deps.closers, deps.Metrics.Subscribe(deps.EventBus))
	}

	persister, closePersister, err := openPersister(ctx, cfg)
	if err != nil {
		return nil, err
	}
	deps.closers = append(deps.closers, closePersister)
	deps.Persister = persister

	deps.CalendarStore = calendar.NewStore(ctx, deps.Persister, deps.Clock, deps.EventBus)
	deps.CalendarHandler = calendar.NewHandler(deps.CalendarStore)

	deps.Notifier = reminder.NewNotifier(cfg.SMTP)
	deps.ReminderScheduler = reminder.NewScheduler(deps.CalendarStore, deps.Notifier, deps.Clock, deps.Metrics, cfg.Reminders)
	deps.closers = append(deps.closers, deps.ReminderScheduler.Subscribe(deps.EventBus))

	return deps, nil
}

// Close runs the registered closers in reverse order.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func openPersister(ctx context.Context, cfg config.Application) (calendar.Persister, func(), error) {
	switch cfg.Storage.Driver {
	case config.StorageFile, "":
		log.Infof("Using file storage at %s", cfg.Storage.File)
		return calendar.NewFilePersister(cfg.Storage.File), func() {}, nil

	case config.StoragePostgres:
		if err := database.Migrate(cfg.Database); err != nil {
			return nil, nil, err
		}
		pool, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		log.Infof("Using postgres storage at %s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
		return calendar.NewPostgresPersister(pool), pool.Close, nil

	case config.StorageRedis:
		client, err := database.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		log.Infof("Using redis storage at %s (key %s)", cfg.Redis.Addr, cfg.Redis.Key)
		return calendar.NewRedisPersister(client, cfg.Redis.Key), func() {
			if err := client.Close(); err != nil {
				log.Warnf("failed to close redis client: %v", err)
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

package geofence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nandanugg/geonotify/module/geofence/domain"
	handler "github.com/nandanugg/geonotify/module/geofence/internal/handler/http"
	"github.com/nandanugg/geonotify/module/geofence/internal/handler/subscriber"
	"github.com/nandanugg/geonotify/module/geofence/internal/monitor"
	"github.com/nandanugg/geonotify/module/geofence/internal/monitor/simulated"
	"github.com/nandanugg/geonotify/module/geofence/internal/repository/database"
	"github.com/nandanugg/geonotify/module/geofence/internal/repository/database/badgerstore"
	"github.com/nandanugg/geonotify/module/geofence/internal/repository/database/sqlstore"
	mqttpub "github.com/nandanugg/geonotify/module/geofence/internal/repository/publisher/mqtt"
	"github.com/nandanugg/geonotify/module/geofence/internal/repository/publisher/rabbitmq"
	"github.com/nandanugg/geonotify/module/geofence/service"
)

type Deps struct {
	// StoreDriver is sqlite, postgres or badger. DB is used by the SQL
	// drivers, BadgerDir by badger.
	StoreDriver string
	DB          *sql.DB
	BadgerDir   string

	AMQP     *amqp.Connection
	MQTT     mqtt.Client
	DeviceID string

	DebounceInterval time.Duration
	MonitorCapacity  int
	FakerEnabled     bool
	FakerInterval    time.Duration

	Logger *zap.Logger
}

type Module struct {
	Manager  *service.Manager
	Commands *service.Commands

	platform   *simulated.Platform
	adapter    *monitor.Adapter
	worker     *service.Worker
	faker      *service.Faker
	handler    *handler.GeofenceHandler
	subscriber *subscriber.LocationSubscriber
	closeStore func() error
	logger     *zap.Logger
}

func Build(deps Deps) (*Module, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store, closeStore, err := openStore(deps, logger)
	if err != nil {
		return nil, err
	}

	transitionPub, err := rabbitmq.NewTransitionPublisher(deps.AMQP)
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("transition publisher: %w", err)
	}
	alertPub := mqttpub.NewAlertPublisher(deps.MQTT, deps.DeviceID)

	cfg := simulated.DefaultConfig()
	cfg.Capacity = deps.MonitorCapacity
	platform := simulated.New(cfg)
	adapter := monitor.NewAdapter(platform, logger)

	bridge := service.NewBridge(transitionPub, alertPub, logger)
	manager := service.NewManager(store, adapter, bridge, logger,
		service.WithDebounceInterval(deps.DebounceInterval))
	worker := service.NewWorker()
	commands := service.NewCommands(manager, worker, logger)

	m := &Module{
		Manager:    manager,
		Commands:   commands,
		platform:   platform,
		adapter:    adapter,
		worker:     worker,
		handler:    handler.NewGeofenceHandler(commands),
		subscriber: subscriber.NewLocationSubscriber(deps.MQTT, deps.DeviceID, platform, logger),
		closeStore: closeStore,
		logger:     logger,
	}
	if deps.FakerEnabled {
		m.faker = service.NewFaker(manager, deps.FakerInterval, logger)
	}
	return m, nil
}

func openStore(deps Deps, logger *zap.Logger) (database.NotificationStore, func() error, error) {
	noop := func() error { return nil }

	switch deps.StoreDriver {
	case "badger":
		s, err := badgerstore.Open(deps.BadgerDir, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("badger store: %w", err)
		}
		return s, s.Close, nil
	case "sqlite", "postgres":
		if deps.DB == nil {
			return nil, nil, fmt.Errorf("%s store: no database handle", deps.StoreDriver)
		}
		dialect, err := sqlstore.ParseDialect(deps.StoreDriver)
		if err != nil {
			return nil, nil, err
		}
		s := sqlstore.NewStore(deps.DB, dialect)
		if err := s.EnsureSchema(context.Background()); err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", deps.StoreDriver)
	}
}

func (m *Module) RegisterRoutes(r *gin.RouterGroup) {
	m.handler.Register(r)
	r.GET("/metrics", gin.WrapH(m.Manager.Metrics().Handler()))
}

func (m *Module) StartSubscribers() error {
	return m.subscriber.Start()
}

// Seed applies defs through the command queue and waits for the result.
func (m *Module) Seed(ctx context.Context, defs []domain.Definition) error {
	if len(defs) == 0 {
		return nil
	}
	if _, err := m.Commands.AddOrUpdate(defs).Wait(ctx); err != nil {
		return fmt.Errorf("seed geofences: %w", err)
	}
	m.logger.Info("geofences seeded", zap.Int("count", len(defs)))
	return nil
}

// Run pumps platform callbacks into the manager until ctx is done.
func (m *Module) Run(ctx context.Context) error {
	m.Manager.Initialize()
	if m.faker != nil {
		m.faker.Start()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.platform.Run(ctx) })
	g.Go(func() error { return m.adapter.Run(ctx, m.Manager.HandleEvent) })
	return g.Wait()
}

// Close stops background work and releases the store. It does not close
// the broker connections passed in Deps.
func (m *Module) Close() error {
	if m.faker != nil {
		m.faker.Stop()
	}
	m.worker.Stop()

	var errs []error
	if m.subscriber != nil {
		if err := m.subscriber.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribe: %w", err))
		}
	}
	if err := m.closeStore(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}

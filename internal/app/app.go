package app

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/visiblee-backend/internal/config"
	"github.com/yungbote/visiblee-backend/internal/data/db"
	"github.com/yungbote/visiblee-backend/internal/data/repos"
	"github.com/yungbote/visiblee-backend/internal/observability"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/realtime/bus"
)

// App holds the process-wide collaborators shared by the serve, worker and
// sweep commands.
type App struct {
	Log      *logger.Logger
	Cfg      *config.Config
	DB       *gorm.DB
	Redis    *goredis.Client
	Repos    *repos.Repos
	Clients  Clients
	Bus      bus.Bus
	Metrics  *observability.Metrics
	Services Services

	closers []func(context.Context) error
}

// New connects storage and clients and wires the services. Callers must Close
// the app.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Log: log, Cfg: cfg}
	a.Metrics = observability.Init(cfg.Metrics)

	shutdownOtel := observability.InitOTel(ctx, log, cfg.App, cfg.Otel)
	a.closers = append(a.closers, shutdownOtel)

	pg, err := db.NewPostgresService(cfg, log)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	a.DB = pg.DB()
	a.closers = append(a.closers, func(context.Context) error { return pg.Close() })
	a.Repos = repos.New(a.DB, log)

	clients, err := wireClients(ctx, log, cfg, a.Metrics)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Clients = clients
	a.Redis = clients.Redis
	a.closers = append(a.closers, clients.Close)

	a.Bus, err = wireBus(log, cfg, clients.Redis)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Services = wireServices(log, cfg, a.Repos, a.Clients, a.Bus, a.Metrics)
	a.closers = append(a.closers, func(context.Context) error { return a.Services.Queue.Close() })
	return a, nil
}

func wireBus(log *logger.Logger, cfg *config.Config, rdb *goredis.Client) (bus.Bus, error) {
	if rdb == nil {
		log.Warn("redis not configured; job events stay in-process")
		return bus.NewMemoryBus(), nil
	}
	b, err := bus.NewRedisBus(log, rdb, cfg.Redis.EventsChannel)
	if err != nil {
		return nil, fmt.Errorf("init job event bus: %w", err)
	}
	return b, nil
}

// Close releases everything New opened, newest first.
func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil && a.Log != nil {
		a.Log.Warn("app close", "error", err)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

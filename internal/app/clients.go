package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/visiblee-backend/internal/config"
	"github.com/yungbote/visiblee-backend/internal/engine"
	"github.com/yungbote/visiblee-backend/internal/observability"
	"github.com/yungbote/visiblee-backend/internal/pageparse"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/platform/neo4jdb"
	"github.com/yungbote/visiblee-backend/internal/platform/redisdb"
	"github.com/yungbote/visiblee-backend/internal/temporalx"
)

type Clients struct {
	Redis    *goredis.Client
	Engine   *engine.Client
	Fetcher  *pageparse.Fetcher
	Graph    *neo4jdb.Client
	Temporal temporalsdkclient.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg *config.Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	// Redis
	if strings.TrimSpace(cfg.Redis.URL) != "" || strings.TrimSpace(cfg.Redis.Addr) != "" {
		rdb, err := redisdb.Connect(ctx, cfg.Redis)
		if err != nil {
			return c, fmt.Errorf("init redis: %w", err)
		}
		c.Redis = rdb
	}

	// Engine
	eng, err := engine.NewFromConfig(cfg.Engine, metrics.ObserveEngine)
	if err != nil {
		_ = c.Close(ctx)
		return c, fmt.Errorf("init engine client: %w", err)
	}
	c.Engine = eng
	c.Fetcher = pageparse.DefaultFetcher()

	// Neo4j (optional)
	graph, err := neo4jdb.New(cfg.Neo4j, log)
	if err != nil {
		log.Warn("neo4j unavailable; graph projection disabled", "error", err)
	}
	c.Graph = graph

	// Temporal
	if cfg.Queue.Backend == config.QueueBackendTemporal {
		tc, err := temporalx.NewClient(ctx, log, cfg.Temporal)
		if err != nil {
			_ = c.Close(ctx)
			return c, fmt.Errorf("init temporal client: %w", err)
		}
		c.Temporal = tc
	}
	return c, nil
}

func (c Clients) Close(ctx context.Context) error {
	var errs []error
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Graph != nil {
		errs = append(errs, c.Graph.Close(ctx))
	}
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	return errors.Join(errs...)
}

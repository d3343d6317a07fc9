package app

import (
	"context"
	"fmt"

	apphttp "github.com/yungbote/visiblee-backend/internal/http"
	httpH "github.com/yungbote/visiblee-backend/internal/http/handlers"
	httpMW "github.com/yungbote/visiblee-backend/internal/http/middleware"
	"github.com/yungbote/visiblee-backend/internal/realtime"
)

func (a *App) routerConfig(hub *realtime.Hub) apphttp.RouterConfig {
	s := a.Services
	return apphttp.RouterConfig{
		Log:         a.Log,
		Metrics:     a.Metrics,
		CORSOrigins: a.Cfg.HTTP.CORSOrigins,
		Tracing:     a.Cfg.Otel.Enabled,

		AuthMiddleware: httpMW.NewAuthMiddleware(a.Log, s.Auth),

		HealthHandler:   httpH.NewHealthHandler(a.Log, a.Clients.Engine),
		AnalysisHandler: httpH.NewAnalysisHandler(a.Log, s.Dispatcher),
		JobHandler:      httpH.NewJobHandler(s.Jobs, s.Dispatcher),
		ContentHandler:  httpH.NewContentHandler(s.Content),
		InsightHandler:  httpH.NewInsightHandler(s.Insights),
		SearchHandler:   httpH.NewSearchHandler(s.Search),
		ChatHandler:     httpH.NewChatHandler(a.Log, s.Chat),
		RealtimeHandler: httpH.NewRealtimeHandler(a.Log, hub),
	}
}

// Serve runs the HTTP API until ctx ends. Job events published by workers are
// fanned out to connected SSE clients.
func (a *App) Serve(ctx context.Context) error {
	hub := realtime.NewHub(a.Log)
	if err := a.Bus.StartForwarder(ctx, hub.Broadcast); err != nil {
		return fmt.Errorf("start job event forwarder: %w", err)
	}

	if a.Metrics != nil {
		a.Metrics.StartServer(ctx, a.Log, a.Cfg.Metrics.Addr)
		a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
		if a.Redis != nil {
			a.Metrics.StartRedisCollector(ctx, a.Log, a.Redis)
		}
	}

	srv := apphttp.NewServer(a.routerConfig(hub))
	a.Log.Info("Starting API server", "addr", a.Cfg.HTTP.Addr)
	return srv.Run(ctx, a.Cfg.HTTP.Addr, a.Cfg.HTTP.ShutdownTimeout.Duration)
}

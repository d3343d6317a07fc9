package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/visiblee-backend/internal/http/handlers"
	httpMW "github.com/yungbote/visiblee-backend/internal/http/middleware"
	"github.com/yungbote/visiblee-backend/internal/observability"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

const serviceName = "visiblee-api"

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	CORSOrigins []string
	Tracing     bool

	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler   *httpH.HealthHandler
	AnalysisHandler *httpH.AnalysisHandler
	JobHandler      *httpH.JobHandler
	ContentHandler  *httpH.ContentHandler
	InsightHandler  *httpH.InsightHandler
	SearchHandler   *httpH.SearchHandler
	ChatHandler     *httpH.ChatHandler
	RealtimeHandler *httpH.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing {
		r.Use(otelgin.Middleware(serviceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.HealthHandler != nil {
			api.GET("/engine/health", cfg.HealthHandler.EngineHealth)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Analysis + discovery dispatch
		if cfg.AnalysisHandler != nil {
			protected.POST("/projects/:id/analysis/:jobType", cfg.AnalysisHandler.DispatchAnalysis)
			protected.POST("/projects/:id/discovery/crawl", cfg.AnalysisHandler.Crawl)
			protected.POST("/projects/:id/discovery/search", cfg.AnalysisHandler.SearchPlatforms)
			protected.POST("/projects/:id/discovery/fetch", cfg.AnalysisHandler.Fetch)
		}

		// Jobs
		if cfg.JobHandler != nil {
			protected.GET("/projects/:id/jobs", cfg.JobHandler.ListProjectJobs)
			protected.GET("/jobs/:id", cfg.JobHandler.GetJob)
			protected.POST("/jobs/:id/restart", cfg.JobHandler.RestartJob)
		}

		// Content
		if cfg.ContentHandler != nil {
			protected.GET("/projects/:id/content", cfg.ContentHandler.List)
			protected.POST("/projects/:id/content", cfg.ContentHandler.Add)
			protected.POST("/projects/:id/content/status", cfg.ContentHandler.SetStatus)
			protected.GET("/projects/:id/content/stats", cfg.ContentHandler.Stats)
		}

		// Score, briefs, suggestions
		if cfg.InsightHandler != nil {
			protected.GET("/projects/:id/score", cfg.InsightHandler.GetScore)
			protected.GET("/projects/:id/briefs", cfg.InsightHandler.ListBriefs)
			protected.PATCH("/briefs/:id", cfg.InsightHandler.UpdateBrief)
			protected.DELETE("/briefs/:id", cfg.InsightHandler.DeleteBrief)
			protected.GET("/projects/:id/suggestions", cfg.InsightHandler.ListSuggestions)
		}

		if cfg.SearchHandler != nil {
			protected.POST("/projects/:id/search", cfg.SearchHandler.Search)
		}
		if cfg.ChatHandler != nil {
			protected.POST("/projects/:id/chat", cfg.ChatHandler.Chat)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			protected.GET("/events", cfg.RealtimeHandler.JobEvents)
		}
	}

	return r
}

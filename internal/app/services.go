package app

import (
	"github.com/yungbote/visiblee-backend/internal/config"
	"github.com/yungbote/visiblee-backend/internal/data/repos"
	"github.com/yungbote/visiblee-backend/internal/jobs/queue"
	"github.com/yungbote/visiblee-backend/internal/observability"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/realtime/bus"
	"github.com/yungbote/visiblee-backend/internal/services"
)

type Services struct {
	Queue      queue.JobQueue
	Notifier   services.JobNotifier
	Auth       services.AuthService
	Dispatcher services.JobDispatcher
	Jobs       services.JobService
	Content    services.ContentService
	Insights   services.InsightService
	Search     services.SearchService
	Chat       services.ChatService
}

func wireServices(log *logger.Logger, cfg *config.Config, r *repos.Repos, c Clients, b bus.Bus, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")
	notifier := services.NewJobNotifier(log, b, metrics)
	q := wireQueue(log, cfg, c)

	return Services{
		Queue:      q,
		Notifier:   notifier,
		Auth:       services.NewAuthService(log, cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Dispatcher: services.NewJobDispatcher(log, r.Projects, r.Content, r.Scores, r.Jobs, q, notifier),
		Jobs:       services.NewJobService(log, r.Projects, r.Jobs),
		Content:    services.NewContentService(log, r.Projects, r.Content, r.Scores),
		Insights:   services.NewInsightService(log, r.Projects, r.Scores, r.Briefs, r.Suggestions),
		Search:     services.NewSearchService(log, r.Projects, r.Content, c.Engine),
		Chat:       services.NewChatService(log, r.Projects, r.Scores, r.Entities, r.Content, c.Engine),
	}
}

// wireQueue picks the delivery backend. Config validation guarantees the
// backend's client exists.
func wireQueue(log *logger.Logger, cfg *config.Config, c Clients) queue.JobQueue {
	if cfg.Queue.Backend == config.QueueBackendTemporal {
		return queue.NewTemporalQueue(log, c.Temporal, cfg.Temporal)
	}
	opt, err := queue.RedisConnOpt(cfg.Redis)
	if err != nil {
		// A malformed address surfaces again on every enqueue.
		log.Error("asynq redis options", "error", err)
	}
	return queue.NewAsynqQueue(log, opt, cfg.Queue)
}

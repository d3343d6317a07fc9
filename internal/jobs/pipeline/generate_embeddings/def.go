package generate_embeddings

import (
	"github.com/yungbote/visiblee-backend/internal/data/repos"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/modules/analysis/steps"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

type Pipeline struct {
	log         *logger.Logger
	content     repos.ContentItemRepo
	engine      steps.Engine
	concurrency int
}

func New(baseLog *logger.Logger, content repos.ContentItemRepo, engine steps.Engine, concurrency int) *Pipeline {
	return &Pipeline{
		log:         baseLog.With("job", "generate_embeddings"),
		content:     content,
		engine:      engine,
		concurrency: concurrency,
	}
}

func (p *Pipeline) Type() jobs.JobType { return jobs.TypeGenerateEmbeddings }

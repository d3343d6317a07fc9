package fetch_content

import (
	"github.com/yungbote/visiblee-backend/internal/data/repos"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/modules/discovery/steps"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

type Pipeline struct {
	log         *logger.Logger
	content     repos.ContentItemRepo
	scores      repos.ProjectScoreRepo
	engine      steps.Engine
	fetcher     steps.Fetcher
	concurrency int
}

func New(
	baseLog *logger.Logger,
	content repos.ContentItemRepo,
	scores repos.ProjectScoreRepo,
	engine steps.Engine,
	fetcher steps.Fetcher,
	concurrency int,
) *Pipeline {
	return &Pipeline{
		log:         baseLog.With("job", "fetch_content"),
		content:     content,
		scores:      scores,
		engine:      engine,
		fetcher:     fetcher,
		concurrency: concurrency,
	}
}

func (p *Pipeline) Type() jobs.JobType { return jobs.TypeFetchContent }

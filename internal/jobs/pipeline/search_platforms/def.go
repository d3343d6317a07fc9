package search_platforms

import (
	"github.com/yungbote/visiblee-backend/internal/data/repos"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/modules/discovery/steps"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

type Pipeline struct {
	log      *logger.Logger
	projects repos.ProjectRepo
	content  repos.ContentItemRepo
	scores   repos.ProjectScoreRepo
	engine   steps.Engine
}

func New(
	baseLog *logger.Logger,
	projects repos.ProjectRepo,
	content repos.ContentItemRepo,
	scores repos.ProjectScoreRepo,
	engine steps.Engine,
) *Pipeline {
	return &Pipeline{
		log:      baseLog.With("job", "search_platforms"),
		projects: projects,
		content:  content,
		scores:   scores,
		engine:   engine,
	}
}

func (p *Pipeline) Type() jobs.JobType { return jobs.TypeSearchPlatforms }

package generate_content_suggestions

import (
	"github.com/yungbote/visiblee-backend/internal/data/repos"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/modules/analysis/steps"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

type Pipeline struct {
	log         *logger.Logger
	projects    repos.ProjectRepo
	scores      repos.ProjectScoreRepo
	suggestions repos.ContentSuggestionRepo
	engine      steps.Engine
}

func New(
	baseLog *logger.Logger,
	projects repos.ProjectRepo,
	scores repos.ProjectScoreRepo,
	suggestions repos.ContentSuggestionRepo,
	engine steps.Engine,
) *Pipeline {
	return &Pipeline{
		log:         baseLog.With("job", "generate_content_suggestions"),
		projects:    projects,
		scores:      scores,
		suggestions: suggestions,
		engine:      engine,
	}
}

func (p *Pipeline) Type() jobs.JobType { return jobs.TypeGenerateContentSuggestions }

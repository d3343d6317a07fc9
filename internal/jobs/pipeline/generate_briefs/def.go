package generate_briefs

import (
	"github.com/yungbote/visiblee-backend/internal/data/repos"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

type Pipeline struct {
	log      *logger.Logger
	content  repos.ContentItemRepo
	entities repos.EntityRepo
	scores   repos.ProjectScoreRepo
	briefs   repos.ContentBriefRepo
}

func New(
	baseLog *logger.Logger,
	content repos.ContentItemRepo,
	entities repos.EntityRepo,
	scores repos.ProjectScoreRepo,
	briefs repos.ContentBriefRepo,
) *Pipeline {
	return &Pipeline{
		log:      baseLog.With("job", "generate_briefs"),
		content:  content,
		entities: entities,
		scores:   scores,
		briefs:   briefs,
	}
}

func (p *Pipeline) Type() jobs.JobType { return jobs.TypeGenerateBriefs }

package compute_score

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
}

func New(baseLog *logger.Logger, content repos.ContentItemRepo, entities repos.EntityRepo, scores repos.ProjectScoreRepo) *Pipeline {
	return &Pipeline{
		log:      baseLog.With("job", "compute_score"),
		content:  content,
		entities: entities,
		scores:   scores,
	}
}

func (p *Pipeline) Type() jobs.JobType { return jobs.TypeComputeScore }

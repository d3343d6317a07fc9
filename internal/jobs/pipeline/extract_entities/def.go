package extract_entities

import (
	"gorm.io/gorm"

	"github.com/yungbote/visiblee-backend/internal/data/repos"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/modules/analysis/steps"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/platform/neo4jdb"
)

type Pipeline struct {
	db          *gorm.DB
	log         *logger.Logger
	content     repos.ContentItemRepo
	entities    repos.EntityRepo
	engine      steps.Engine
	graph       *neo4jdb.Client
	concurrency int
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	content repos.ContentItemRepo,
	entities repos.EntityRepo,
	engine steps.Engine,
	graph *neo4jdb.Client,
	concurrency int,
) *Pipeline {
	return &Pipeline{
		db:          db,
		log:         baseLog.With("job", "extract_entities"),
		content:     content,
		entities:    entities,
		engine:      engine,
		graph:       graph,
		concurrency: concurrency,
	}
}

func (p *Pipeline) Type() jobs.JobType { return jobs.TypeExtractEntities }

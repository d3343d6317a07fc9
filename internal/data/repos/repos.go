package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/visiblee-backend/internal/data/repos/content"
	"github.com/yungbote/visiblee-backend/internal/data/repos/entities"
	"github.com/yungbote/visiblee-backend/internal/data/repos/jobs"
	"github.com/yungbote/visiblee-backend/internal/data/repos/projects"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

type ProjectRepo = projects.ProjectRepo
type ProjectScoreRepo = projects.ProjectScoreRepo
type ContentBriefRepo = projects.ContentBriefRepo
type ContentSuggestionRepo = projects.ContentSuggestionRepo

type ContentItemRepo = content.ContentItemRepo

type EntityRepo = entities.EntityRepo

type AnalysisJobRepo = jobs.AnalysisJobRepo

// Repos bundles every repository over one *gorm.DB.
type Repos struct {
	Projects    ProjectRepo
	Scores      ProjectScoreRepo
	Briefs      ContentBriefRepo
	Suggestions ContentSuggestionRepo
	Content     ContentItemRepo
	Entities    EntityRepo
	Jobs        AnalysisJobRepo
}

func New(db *gorm.DB, log *logger.Logger) *Repos {
	return &Repos{
		Projects:    projects.NewProjectRepo(db, log),
		Scores:      projects.NewProjectScoreRepo(db, log),
		Briefs:      projects.NewContentBriefRepo(db, log),
		Suggestions: projects.NewContentSuggestionRepo(db, log),
		Content:     content.NewContentItemRepo(db, log),
		Entities:    entities.NewEntityRepo(db, log),
		Jobs:        jobs.NewAnalysisJobRepo(db, log),
	}
}

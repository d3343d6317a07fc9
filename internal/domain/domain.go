package domain

import (
	"github.com/yungbote/visiblee-backend/internal/domain/content"
	"github.com/yungbote/visiblee-backend/internal/domain/entity"
	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	"github.com/yungbote/visiblee-backend/internal/domain/project"
)

type (
	Project           = project.Project
	ProjectScore      = project.ProjectScore
	ContentBrief      = project.ContentBrief
	ContentSuggestion = project.ContentSuggestion

	ContentItem = content.ContentItem

	Entity        = entity.Entity
	ContentEntity = entity.ContentEntity

	AnalysisJob = jobs.AnalysisJob
	JobType     = jobs.JobType
	JobStatus   = jobs.Status
)

// Models lists every table owned by this service, in dependency order.
func Models() []any {
	return []any{
		&Project{},
		&ContentItem{},
		&Entity{},
		&ContentEntity{},
		&AnalysisJob{},
		&ProjectScore{},
		&ContentBrief{},
		&ContentSuggestion{},
	}
}

package generate_content_suggestions

import (
	jobrt "github.com/yungbote/visiblee-backend/internal/jobs/runtime"
	"github.com/yungbote/visiblee-backend/internal/modules/analysis/steps"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	jc.Progress("suggestions", 10)
	out, err := steps.GenerateSuggestions(jc.Ctx, steps.GenerateSuggestionsDeps{
		Log:         jc.Log,
		Projects:    p.projects,
		Scores:      p.scores,
		Suggestions: p.suggestions,
		Engine:      p.engine,
	}, steps.GenerateSuggestionsInput{
		ProjectID: jc.Job.ProjectID,
		JobID:     jc.Job.ID,
	})
	if err != nil {
		jc.Fail("suggestions", err)
		return nil
	}
	jc.Succeed(out)
	return nil
}

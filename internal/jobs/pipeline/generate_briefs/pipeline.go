package generate_briefs

import (
	jobrt "github.com/yungbote/visiblee-backend/internal/jobs/runtime"
	"github.com/yungbote/visiblee-backend/internal/modules/analysis/steps"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	jc.Progress("briefs", 10)
	out, err := steps.GenerateBriefs(jc.Ctx, steps.GenerateBriefsDeps{
		Log:      jc.Log,
		Content:  p.content,
		Entities: p.entities,
		Scores:   p.scores,
		Briefs:   p.briefs,
	}, steps.GenerateBriefsInput{
		ProjectID: jc.Job.ProjectID,
		JobID:     jc.Job.ID,
	})
	if err != nil {
		jc.Fail("briefs", err)
		return nil
	}
	jc.Succeed(out)
	return nil
}

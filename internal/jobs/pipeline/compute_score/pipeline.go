package compute_score

import (
	jobrt "github.com/yungbote/visiblee-backend/internal/jobs/runtime"
	"github.com/yungbote/visiblee-backend/internal/modules/analysis/steps"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	jc.Progress("aggregate", 10)
	out, err := steps.ComputeScore(jc.Ctx, steps.ComputeScoreDeps{
		Log:      jc.Log,
		Content:  p.content,
		Entities: p.entities,
		Scores:   p.scores,
	}, steps.ComputeScoreInput{ProjectID: jc.Job.ProjectID})
	if err != nil {
		jc.Fail("score", err)
		return nil
	}
	jc.Succeed(out)
	return nil
}

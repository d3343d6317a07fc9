package extract_entities

import (
	jobrt "github.com/yungbote/visiblee-backend/internal/jobs/runtime"
	"github.com/yungbote/visiblee-backend/internal/modules/analysis/steps"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	jc.Progress("extract", 1)
	out, err := steps.ExtractEntities(jc.Ctx, steps.ExtractEntitiesDeps{
		DB:       p.db,
		Log:      jc.Log,
		Content:  p.content,
		Entities: p.entities,
		Engine:   p.engine,
		Graph:    p.graph,
	}, steps.ExtractEntitiesInput{
		ProjectID:   jc.Job.ProjectID,
		Concurrency: p.concurrency,
		Progress:    jc.StageProgress("extract", 1, 99),
	})
	if err != nil {
		jc.Fail("extract", err)
		return nil
	}
	if out.Eligible == 0 {
		jc.Fail("extract", apierr.NoEligibleContent("no approved content with text to extract"))
		return nil
	}
	jc.Succeed(out)
	return nil
}

package generate_embeddings

import (
	jobrt "github.com/yungbote/visiblee-backend/internal/jobs/runtime"
	"github.com/yungbote/visiblee-backend/internal/modules/analysis/steps"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	jc.Progress("embed", 1)
	out, err := steps.GenerateEmbeddings(jc.Ctx, steps.GenerateEmbeddingsDeps{
		Log:     jc.Log,
		Content: p.content,
		Engine:  p.engine,
	}, steps.GenerateEmbeddingsInput{
		ProjectID:   jc.Job.ProjectID,
		Concurrency: p.concurrency,
		Progress:    jc.StageProgress("embed", 1, 99),
	})
	if err != nil {
		jc.Fail("embed", err)
		return nil
	}
	if out.Eligible == 0 {
		jc.Fail("embed", apierr.NoEligibleContent("no content with text is missing an embedding"))
		return nil
	}
	jc.Succeed(out)
	return nil
}

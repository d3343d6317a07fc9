package fetch_content

import (
	"github.com/google/uuid"

	"github.com/yungbote/visiblee-backend/internal/jobs/payload"
	jobrt "github.com/yungbote/visiblee-backend/internal/jobs/runtime"
	"github.com/yungbote/visiblee-backend/internal/modules/discovery/steps"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	var ids []uuid.UUID
	if pl, ok := jc.Payload.(*payload.FetchContent); ok {
		ids = pl.ContentItemIDs
	}

	jc.Progress("fetch", 1)
	out, err := steps.FetchContent(jc.Ctx, steps.FetchContentDeps{
		Log:     jc.Log,
		Content: p.content,
		Scores:  p.scores,
		Engine:  p.engine,
		Fetcher: p.fetcher,
	}, steps.FetchContentInput{
		ProjectID:      jc.Job.ProjectID,
		ContentItemIDs: ids,
		Concurrency:    p.concurrency,
		Progress:       jc.StageProgress("fetch", 1, 99),
	})
	if err != nil {
		jc.Fail("fetch", err)
		return nil
	}
	if out.Eligible == 0 {
		jc.Fail("fetch", apierr.NoEligibleContent("no content with a url is missing its text"))
		return nil
	}
	jc.Succeed(out)
	return nil
}

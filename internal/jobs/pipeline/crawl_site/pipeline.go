package crawl_site

import (
	"fmt"

	"github.com/yungbote/visiblee-backend/internal/jobs/payload"
	jobrt "github.com/yungbote/visiblee-backend/internal/jobs/runtime"
	"github.com/yungbote/visiblee-backend/internal/modules/discovery/steps"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	in := steps.CrawlSiteInput{ProjectID: jc.Job.ProjectID}
	switch pl := jc.Payload.(type) {
	case *payload.CrawlSite:
		in.URL, in.MaxDepth, in.MaxPages, in.RateLimit = pl.URL, pl.MaxDepth, pl.MaxPages, pl.RateLimit
	case nil:
	default:
		jc.Fail("validate", fmt.Errorf("unexpected payload %T", jc.Payload))
		return nil
	}

	jc.Progress("crawl", 5)
	out, err := steps.CrawlSite(jc.Ctx, steps.CrawlSiteDeps{
		Log:      jc.Log,
		Projects: p.projects,
		Content:  p.content,
		Scores:   p.scores,
		Engine:   p.engine,
	}, in)
	if err != nil {
		jc.Fail("crawl", err)
		return nil
	}
	jc.Succeed(out)
	return nil
}

package search_platforms

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
	pl, ok := jc.Payload.(*payload.SearchPlatforms)
	if !ok {
		jc.Fail("validate", fmt.Errorf("unexpected payload %T", jc.Payload))
		return nil
	}

	jc.Progress("search", 5)
	out, err := steps.SearchPlatforms(jc.Ctx, steps.SearchPlatformsDeps{
		Log:      jc.Log,
		Projects: p.projects,
		Content:  p.content,
		Scores:   p.scores,
		Engine:   p.engine,
	}, steps.SearchPlatformsInput{
		ProjectID:             jc.Job.ProjectID,
		Brand:                 pl.Brand,
		Domain:                pl.Domain,
		Platforms:             pl.Platforms,
		MaxResultsPerPlatform: pl.MaxResultsPerPlatform,
	})
	if err != nil {
		jc.Fail("search", err)
		return nil
	}
	jc.Succeed(out)
	return nil
}

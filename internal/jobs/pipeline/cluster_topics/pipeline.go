package cluster_topics

import (
	jobrt "github.com/yungbote/visiblee-backend/internal/jobs/runtime"
	"github.com/yungbote/visiblee-backend/internal/modules/analysis/steps"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	jc.Progress("cluster", 1)
	out, err := steps.ClusterTopics(jc.Ctx, steps.ClusterTopicsDeps{
		DB:       p.db,
		Log:      jc.Log,
		Content:  p.content,
		Entities: p.entities,
		Engine:   p.engine,
		Graph:    p.graph,
	}, steps.ClusterTopicsInput{
		ProjectID: jc.Job.ProjectID,
		Progress:  jc.StageProgress("cluster", 1, 99),
	})
	if err != nil {
		jc.Fail("cluster", err)
		return nil
	}
	jc.Succeed(out)
	return nil
}

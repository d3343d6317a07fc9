package full_analysis

import (
	"fmt"

	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
	jobrt "github.com/yungbote/visiblee-backend/internal/jobs/runtime"
	"github.com/yungbote/visiblee-backend/internal/modules/analysis/steps"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
)

// Summary nests each stage's output. A stage with nothing to do reports a
// skip reason instead.
type Summary struct {
	Embeddings any                      `json:"embeddings"`
	Entities   any                      `json:"entities"`
	Topics     any                      `json:"topics"`
	Score      steps.ComputeScoreOutput `json:"score"`
}

type skipped struct {
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason"`
}

// Run chains embed, extract, cluster and score in one job.
//
// Progress is split 0-30 embed, 30-60 extract, 60-85 cluster, 85-99 score.
// Stages without eligible content are skipped; clustering is skipped below the
// embedded minimum. Only a failing stage, not an empty one, fails the job.
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	projectID := jc.Job.ProjectID
	sum := Summary{}

	jc.Progress("embed", 1)
	emb, err := steps.GenerateEmbeddings(jc.Ctx, steps.GenerateEmbeddingsDeps{
		Log:     jc.Log,
		Content: p.content,
		Engine:  p.engine,
	}, steps.GenerateEmbeddingsInput{
		ProjectID:   projectID,
		Concurrency: p.concurrency,
		Progress:    jc.StageProgress("embed", 1, 30),
	})
	if err != nil {
		jc.Fail("embed", err)
		return nil
	}
	sum.Embeddings = emb
	if emb.Eligible == 0 {
		sum.Embeddings = skipped{Skipped: true, Reason: "no content missing an embedding"}
	}

	jc.Progress("extract", 30)
	ext, err := steps.ExtractEntities(jc.Ctx, steps.ExtractEntitiesDeps{
		DB:       p.db,
		Log:      jc.Log,
		Content:  p.content,
		Entities: p.entities,
		Engine:   p.engine,
		Graph:    p.graph,
	}, steps.ExtractEntitiesInput{
		ProjectID:   projectID,
		Concurrency: p.concurrency,
		Progress:    jc.StageProgress("extract", 30, 60),
	})
	if err != nil {
		jc.Fail("extract", err)
		return nil
	}
	sum.Entities = ext
	if ext.Eligible == 0 {
		sum.Entities = skipped{Skipped: true, Reason: "no approved content with text"}
	}

	jc.Progress("cluster", 60)
	embedded, err := p.content.CountEmbedded(jc.DBC(), projectID)
	if err != nil {
		jc.Fail("cluster", err)
		return nil
	}
	if embedded < jobs.MinEmbeddedForClustering {
		sum.Topics = skipped{Skipped: true, Reason: fmt.Sprintf("%d embedded items, need %d", embedded, jobs.MinEmbeddedForClustering)}
	} else {
		top, err := steps.ClusterTopics(jc.Ctx, steps.ClusterTopicsDeps{
			DB:       p.db,
			Log:      jc.Log,
			Content:  p.content,
			Entities: p.entities,
			Engine:   p.engine,
			Graph:    p.graph,
		}, steps.ClusterTopicsInput{
			ProjectID: projectID,
			Progress:  jc.StageProgress("cluster", 60, 85),
		})
		switch {
		case apierr.Code(err) == apierr.CodeInsufficientInput:
			// Items were archived between the count and the run.
			sum.Topics = skipped{Skipped: true, Reason: apierr.From(err).Error()}
		case err != nil:
			jc.Fail("cluster", err)
			return nil
		default:
			sum.Topics = top
		}
	}

	jc.Progress("score", 85)
	score, err := steps.ComputeScore(jc.Ctx, steps.ComputeScoreDeps{
		Log:      jc.Log,
		Content:  p.content,
		Entities: p.entities,
		Scores:   p.scores,
	}, steps.ComputeScoreInput{ProjectID: projectID})
	if err != nil {
		jc.Fail("score", err)
		return nil
	}
	sum.Score = score
	jc.Succeed(sum)
	return nil
}

package jobrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// ErrTypeInvalidPayload marks activity failures that must not be retried.
const ErrTypeInvalidPayload = "InvalidJobPayload"

// Workflow executes one ledger job. The body is the encoded job payload.
//
// Retries only cover failures before the ledger row is claimed; after the claim
// the executor always records a terminal status and the activity returns nil.
func Workflow(ctx workflow.Context, body []byte) (RunResult, error) {
	if len(body) == 0 {
		return RunResult{}, fmt.Errorf("jobrun: empty payload")
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 45 * time.Minute,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        5 * time.Second,
			BackoffCoefficient:     2,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeInvalidPayload},
		},
	})

	var out RunResult
	if err := workflow.ExecuteActivity(ctx, ActivityRun, body).Get(ctx, &out); err != nil {
		return out, err
	}
	if strings.EqualFold(out.Status, "FAILED") {
		workflow.GetLogger(ctx).Info("job failed", "job_id", out.JobID, "error", out.ErrorMessage)
	}
	return out, nil
}

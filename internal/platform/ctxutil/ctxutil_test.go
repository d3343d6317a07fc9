package ctxutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTraceDataRoundTrip(t *testing.T) {
	ctx := WithTraceData(context.Background(), &TraceData{TraceID: "t", RequestID: "r"})
	td := GetTraceData(ctx)
	if assert.NotNil(t, td) {
		assert.Equal(t, "t", td.TraceID)
		assert.Equal(t, "r", td.RequestID)
	}
	assert.Nil(t, GetTraceData(context.Background()))
}

func TestTraceFieldsSkipsEmptyIDs(t *testing.T) {
	ctx := WithTraceData(context.Background(), &TraceData{RequestID: "r"})
	assert.Equal(t, []interface{}{"request_id", "r"}, TraceFields(ctx))

	ctx = WithTraceData(context.Background(), &TraceData{TraceID: "t", RequestID: "r"})
	assert.Equal(t, []interface{}{"trace_id", "t", "request_id", "r"}, TraceFields(ctx))

	assert.Empty(t, TraceFields(context.Background()))
	assert.Empty(t, TraceFields(nil))
}

func TestActorID(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, id, ActorID(WithActor(context.Background(), &Actor{UserID: id})))
	assert.Equal(t, uuid.Nil, ActorID(context.Background()))
	assert.Equal(t, uuid.Nil, ActorID(nil))
}

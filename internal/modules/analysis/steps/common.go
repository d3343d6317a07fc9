// Package steps implements the analysis stages. Each stage is a plain
// function over its deps; pipelines decide how outcomes map onto the job
// ledger.
package steps

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/yungbote/visiblee-backend/internal/engine"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
)

// Engine is the slice of the inference client the analysis stages call.
type Engine interface {
	EmbedBatch(ctx context.Context, items []engine.EmbedItem) (*engine.EmbedBatchResponse, error)
	ExtractEntities(ctx context.Context, items []engine.ExtractItem) (*engine.ExtractEntitiesResponse, error)
	AnalyzeTopics(ctx context.Context, items []engine.TopicItem) (*engine.AnalyzeTopicsResponse, error)
	Suggestions(ctx context.Context, req engine.SuggestionsRequest) ([]string, error)
}

// ProgressFunc receives the number of finished units out of total.
type ProgressFunc func(done, total int)

const (
	ExtractBatchSize = 50
	EmbedBatchSize   = 100

	// Text sent to the engine is cut client-side to what its models read.
	extractTextRunes  = 3000
	embedTextRunes    = 4000
	mentionContextLen = 120

	defaultConcurrency = 4

	txAttempts = 4
)

// txBackoff is the pause before retry n (1-based).
var txBackoff = func(n int) time.Duration { return time.Duration(n*n) * 25 * time.Millisecond }

func (f ProgressFunc) report(done, total int) {
	if f != nil {
		f(done, total)
	}
}

func concurrency(n int) int {
	if n <= 0 {
		return defaultConcurrency
	}
	return n
}

// batches splits n indexes into consecutive [start, end) windows of size.
func batches(n, size int) [][2]int {
	if size <= 0 {
		size = n
	}
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

func truncateRunes(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// inTx runs fn inside a transaction when db is set, otherwise against the
// repos' own handles.
func inTx(ctx context.Context, db *gorm.DB, fn func(dbc dbctx.Context) error) error {
	if db == nil {
		return fn(dbctx.Of(ctx))
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}

// inTxRetry is inTx that reruns fn after a deadlock or serialization
// failure. fn must not leak state from a rolled-back attempt.
func inTxRetry(ctx context.Context, db *gorm.DB, fn func(dbc dbctx.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = inTx(ctx, db, fn)
		if err == nil || !apierr.IsTxConflict(err) || attempt == txAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(txBackoff(attempt)):
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

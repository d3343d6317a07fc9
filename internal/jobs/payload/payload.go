// Package payload defines the queue message for every job type and validates
// it against a JSON Schema on both sides of the queue.
package payload

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonschema"

	"github.com/yungbote/visiblee-backend/internal/domain/jobs"
)

// ErrInvalid wraps every decode or validation failure. Workers treat it as
// non-retryable.
var ErrInvalid = errors.New("invalid job payload")

// Payload is a tagged union over the job types; the concrete type is fixed by
// Common.JobType.
type Payload interface {
	Base() Common
	isPayload()
}

type Common struct {
	JobType     jobs.JobType `json:"jobType"`
	ProjectID   uuid.UUID    `json:"projectId"`
	UserID      uuid.UUID    `json:"userId"`
	JobLedgerID uuid.UUID    `json:"jobLedgerId"`
	TraceID     string       `json:"traceId,omitempty"`
	RequestID   string       `json:"requestId,omitempty"`
}

func (c Common) Base() Common { return c }
func (Common) isPayload()     {}

// Analysis carries the seven analysis job types, which need nothing beyond
// the common fields.
type Analysis struct {
	Common
}

type CrawlSite struct {
	Common
	URL       string  `json:"url"`
	MaxDepth  int     `json:"maxDepth,omitempty"`
	MaxPages  int     `json:"maxPages,omitempty"`
	RateLimit float64 `json:"rateLimit,omitempty"`
}

type SearchPlatforms struct {
	Common
	Brand                 string   `json:"brand"`
	Domain                string   `json:"domain,omitempty"`
	Platforms             []string `json:"platforms"`
	MaxResultsPerPlatform int      `json:"maxResultsPerPlatform,omitempty"`
}

type FetchContent struct {
	Common
	ContentItemIDs []uuid.UUID `json:"contentItemIds,omitempty"`
}

// New builds the variant for jobType with only the common fields set.
func New(c Common) Payload {
	switch c.JobType {
	case jobs.TypeCrawlSite:
		return &CrawlSite{Common: c}
	case jobs.TypeSearchPlatforms:
		return &SearchPlatforms{Common: c}
	case jobs.TypeFetchContent:
		return &FetchContent{Common: c}
	default:
		return &Analysis{Common: c}
	}
}

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

func schemaFile(t jobs.JobType) string {
	switch t {
	case jobs.TypeCrawlSite:
		return "crawl_site.json"
	case jobs.TypeSearchPlatforms:
		return "search_platforms.json"
	case jobs.TypeFetchContent:
		return "fetch_content.json"
	default:
		return "analysis.json"
	}
}

func loadSchemas() (map[string]*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		entries, err := schemaFS.ReadDir("schemas")
		if err != nil {
			schemasErr = err
			return
		}
		compiler := jsonschema.NewCompiler()
		out := make(map[string]*jsonschema.Schema, len(entries))
		for _, e := range entries {
			raw, err := schemaFS.ReadFile("schemas/" + e.Name())
			if err != nil {
				schemasErr = err
				return
			}
			s, err := compiler.Compile(raw)
			if err != nil {
				schemasErr = fmt.Errorf("compile %s: %w", e.Name(), err)
				return
			}
			out[e.Name()] = s
		}
		schemas = out
	})
	return schemas, schemasErr
}

// Validate checks raw JSON against the schema of its jobType.
func Validate(raw []byte) error {
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	typ, _ := doc["jobType"].(string)
	jt := jobs.JobType(typ)
	if !jt.Valid() {
		return fmt.Errorf("%w: unknown jobType %q", ErrInvalid, typ)
	}

	all, err := loadSchemas()
	if err != nil {
		return err
	}
	schema, ok := all[schemaFile(jt)]
	if !ok {
		return fmt.Errorf("no schema for job type %s", jt)
	}

	result := schema.Validate(doc)
	if result.IsValid() {
		return nil
	}
	var msgs []string
	for field, evalErr := range result.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", field, evalErr.Error()))
	}
	sort.Strings(msgs)
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// Encode marshals p and validates the result.
func Encode(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrInvalid)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	if err := Validate(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Decode validates raw and returns the concrete variant.
func Decode(raw []byte) (Payload, error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}
	var head Common
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	p := New(head)
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return p, nil
}

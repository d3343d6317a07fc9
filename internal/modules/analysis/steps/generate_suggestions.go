package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/visiblee-backend/internal/data/repos"
	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/domain/project"
	"github.com/yungbote/visiblee-backend/internal/engine"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/scoring"
)

const maxEngineSuggestions = 5

type GenerateSuggestionsDeps struct {
	Log         *logger.Logger
	Projects    repos.ProjectRepo
	Scores      repos.ProjectScoreRepo
	Suggestions repos.ContentSuggestionRepo
	Engine      Engine
}

type GenerateSuggestionsInput struct {
	ProjectID uuid.UUID
	JobID     uuid.UUID
}

type GenerateSuggestionsOutput struct {
	SuggestionsCreated int    `json:"suggestionsCreated"`
	SuggestionsFailed  int    `json:"suggestionsFailed"`
	Source             string `json:"source"`
}

// GenerateSuggestions asks the engine for advice on the weak dimensions and
// stores one row per suggestion.
//
// The generative path is best-effort: an engine error or an empty answer
// switches to the scoring templates. Rows are inserted one by one and a failed
// insert only increments SuggestionsFailed.
func GenerateSuggestions(ctx context.Context, deps GenerateSuggestionsDeps, in GenerateSuggestionsInput) (GenerateSuggestionsOutput, error) {
	out := GenerateSuggestionsOutput{}
	if deps.Log == nil || deps.Projects == nil || deps.Scores == nil || deps.Suggestions == nil || deps.Engine == nil {
		return out, fmt.Errorf("generate_suggestions: missing deps")
	}
	if in.ProjectID == uuid.Nil {
		return out, fmt.Errorf("generate_suggestions: missing project_id")
	}

	dbc := dbctx.Of(ctx)
	score, err := deps.Scores.GetByProjectID(dbc, in.ProjectID)
	if err != nil {
		return out, fmt.Errorf("generate_suggestions: load score: %w", err)
	}
	if score == nil {
		return out, apierr.InsufficientInput("project has no score yet; run COMPUTE_SCORE first")
	}
	proj, err := deps.Projects.GetByID(dbc, in.ProjectID)
	if err != nil {
		return out, fmt.Errorf("generate_suggestions: load project: %w", err)
	}
	name := ""
	if proj != nil {
		name = proj.Brand()
	}

	dims := score.Dimensions()
	rows := generativeSuggestions(ctx, deps, name, dims)
	out.Source = string(project.SuggestionFromEngine)
	if len(rows) == 0 {
		rows = templateSuggestions(dims)
		out.Source = string(project.SuggestionFromTemplate)
	}

	var jobID *uuid.UUID
	if in.JobID != uuid.Nil {
		id := in.JobID
		jobID = &id
	}
	for i, row := range rows {
		row.ProjectID = in.ProjectID
		row.JobID = jobID
		row.Rank = i + 1
		if err := deps.Suggestions.Create(dbc, row); err != nil {
			out.SuggestionsFailed++
			deps.Log.Warn("suggestion insert failed", "project_id", in.ProjectID, "rank", row.Rank, "error", err)
			continue
		}
		out.SuggestionsCreated++
	}
	return out, nil
}

func generativeSuggestions(ctx context.Context, deps GenerateSuggestionsDeps, projectName string, dims map[string]int) []*types.ContentSuggestion {
	weak := scoring.Weak(dims)
	if len(weak) == 0 {
		return nil
	}
	req := engine.SuggestionsRequest{
		ProjectName: projectName,
		Dimensions:  make(map[string]float64, len(dims)),
	}
	for name, v := range dims {
		req.Dimensions[name] = float64(v)
	}
	for _, name := range weak {
		req.WeakDimensions = append(req.WeakDimensions, engine.WeakDimension{Name: name, Value: float64(dims[name])})
	}

	texts, err := deps.Engine.Suggestions(ctx, req)
	if err != nil {
		deps.Log.Warn("engine suggestions failed; using templates", "error", err)
		return nil
	}
	var out []*types.ContentSuggestion
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, &types.ContentSuggestion{Source: project.SuggestionFromEngine, Text: t})
		if len(out) == maxEngineSuggestions {
			break
		}
	}
	return out
}

func templateSuggestions(dims map[string]int) []*types.ContentSuggestion {
	var out []*types.ContentSuggestion
	for _, s := range scoring.Suggest(dims) {
		out = append(out, &types.ContentSuggestion{
			Source:    project.SuggestionFromTemplate,
			Dimension: s.Dimension,
			Text:      s.Text,
		})
	}
	return out
}

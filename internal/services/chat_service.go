package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/visiblee-backend/internal/data/repos"
	types "github.com/yungbote/visiblee-backend/internal/domain"
	"github.com/yungbote/visiblee-backend/internal/engine"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/platform/ctxutil"
	"github.com/yungbote/visiblee-backend/internal/platform/dbctx"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/scoring"
	"github.com/yungbote/visiblee-backend/internal/services/projectguard"
)

const (
	chatTopEntities     = 10
	chatRecentGaps      = 3
	chatRelevantContent = 5
	chatMaxHistory      = 20
	chatMaxMessage      = 4000
)

// chatDimensionKeys are the dimension names the chat prompt is written for.
var chatDimensionKeys = map[string]string{
	scoring.DimCoverage:  "copertura",
	scoring.DimDepth:     "profondita",
	scoring.DimFreshness: "freschezza",
	scoring.DimAuthority: "autorita",
	scoring.DimCoherence: "coerenza",
}

// ChatEngine is the slice of the inference client the chat uses.
type ChatEngine interface {
	QueryEmbedder
	ChatStream(ctx context.Context, req engine.ChatRequest, onToken func(token string) error) error
}

type ChatInput struct {
	Message string               `json:"message"`
	History []engine.ChatMessage `json:"history"`
}

type ChatService interface {
	// Prepare validates the request and assembles the project context. Errors
	// here happen before anything is streamed.
	Prepare(ctx context.Context, projectID uuid.UUID, in ChatInput) (*engine.ChatRequest, error)
	// Stream relays the engine's answer token by token.
	Stream(ctx context.Context, req *engine.ChatRequest, onToken func(token string) error) error
}

type chatService struct {
	log      *logger.Logger
	projects repos.ProjectRepo
	scores   repos.ProjectScoreRepo
	entities repos.EntityRepo
	content  repos.ContentItemRepo
	engine   ChatEngine
}

func NewChatService(
	baseLog *logger.Logger,
	projects repos.ProjectRepo,
	scores repos.ProjectScoreRepo,
	entities repos.EntityRepo,
	contentRepo repos.ContentItemRepo,
	eng ChatEngine,
) ChatService {
	return &chatService{
		log:      baseLog.With("service", "ChatService"),
		projects: projects,
		scores:   scores,
		entities: entities,
		content:  contentRepo,
		engine:   eng,
	}
}

func (s *chatService) Prepare(ctx context.Context, projectID uuid.UUID, in ChatInput) (*engine.ChatRequest, error) {
	dbc := dbctx.Of(ctx)
	proj, err := projectguard.Require(dbc, s.projects, projectID, ctxutil.ActorID(ctx))
	if err != nil {
		return nil, apierr.From(err)
	}
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return nil, apierr.Validation("message is required")
	}
	if len([]rune(msg)) > chatMaxMessage {
		return nil, apierr.Validation("message is longer than %d characters", chatMaxMessage)
	}

	history := make([]engine.ChatMessage, 0, len(in.History))
	for _, m := range in.History {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != "user" && role != "assistant" {
			return nil, apierr.Validation("history role must be user or assistant")
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		history = append(history, engine.ChatMessage{Role: role, Content: m.Content})
	}
	if len(history) > chatMaxHistory {
		history = history[len(history)-chatMaxHistory:]
	}

	cc, err := s.buildContext(ctx, dbc, proj, msg)
	if err != nil {
		return nil, err
	}
	return &engine.ChatRequest{Message: msg, History: history, Context: cc}, nil
}

func (s *chatService) buildContext(ctx context.Context, dbc dbctx.Context, proj *types.Project, msg string) (engine.ChatContext, error) {
	cc := engine.ChatContext{
		ProjectName:     proj.Name,
		TopEntities:     []string{},
		RecentGaps:      []string{},
		RelevantContent: []engine.RelevantContent{},
	}

	score, err := s.scores.GetByProjectID(dbc, proj.ID)
	if err != nil {
		return cc, apierr.Internal(err)
	}
	if score != nil {
		overall := float64(score.OverallScore)
		cc.OverallScore = &overall
		dims := score.Dimensions()
		cc.Dimensions = make(map[string]float64, len(dims))
		for name, v := range dims {
			cc.Dimensions[chatDimensionKeys[name]] = float64(v)
		}
		for _, sg := range scoring.Suggest(dims) {
			if len(cc.RecentGaps) == chatRecentGaps {
				break
			}
			cc.RecentGaps = append(cc.RecentGaps, sg.Text)
		}
	}

	top, err := s.entities.TopByFrequency(dbc, proj.ID, true, chatTopEntities)
	if err != nil {
		return cc, apierr.Internal(err)
	}
	for _, e := range top {
		cc.TopEntities = append(cc.TopEntities, e.Label)
	}

	// Relevant content is a nice-to-have; the chat still works without it.
	vec, err := s.engine.EmbedQuery(ctx, msg)
	if err != nil {
		s.log.Warn("chat context search skipped", "project_id", proj.ID, "error", err)
		return cc, nil
	}
	hits, err := searchSimilar(dbc, s.content, proj.ID, vec, chatRelevantContent)
	if err != nil {
		s.log.Warn("chat context search failed", "project_id", proj.ID, "error", err)
		return cc, nil
	}
	for _, h := range hits {
		cc.RelevantContent = append(cc.RelevantContent, engine.RelevantContent{
			Title:   h.Title,
			Excerpt: h.Excerpt,
			Score:   h.Score,
		})
	}
	return cc, nil
}

func (s *chatService) Stream(ctx context.Context, req *engine.ChatRequest, onToken func(token string) error) error {
	if req == nil {
		return apierr.Validation("empty chat request")
	}
	if err := s.engine.ChatStream(ctx, *req, onToken); err != nil {
		if ctx.Err() == nil {
			s.log.Warn("chat stream failed", "error", err)
		}
		return apierr.From(err)
	}
	return nil
}

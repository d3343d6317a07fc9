package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/visiblee-backend/internal/http/response"
	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
	"github.com/yungbote/visiblee-backend/internal/services"
)

type ChatHandler struct {
	log  *logger.Logger
	chat services.ChatService
}

func NewChatHandler(log *logger.Logger, chat services.ChatService) *ChatHandler {
	return &ChatHandler{log: log.With("handler", "ChatHandler"), chat: chat}
}

type chatTokenFrame struct {
	Token string `json:"token"`
}

type chatErrorFrame struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// POST /api/projects/:id/chat
//
// Validation and context errors are plain JSON responses. Once streaming has
// started, failures arrive as an "error" event followed by [DONE].
func (h *ChatHandler) Chat(c *gin.Context) {
	projectID, err := uuidParam(c, "id", "project")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	var in services.ChatInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondAPIError(c, apierr.Validation("invalid request body: %v", err))
		return
	}
	req, err := h.chat.Prepare(c.Request.Context(), projectID, in)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	err = h.chat.Stream(c.Request.Context(), req, func(token string) error {
		if err := writeSSE(w, "", chatTokenFrame{Token: token}); err != nil {
			return err
		}
		w.Flush()
		return nil
	})
	if err != nil && c.Request.Context().Err() == nil {
		ae := apierr.From(err)
		_ = writeSSE(w, "error", chatErrorFrame{Error: ae.Error(), Code: ae.Code})
	}
	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	w.Flush()
}

func writeSSE(w gin.ResponseWriter, event string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", raw)
	return err
}

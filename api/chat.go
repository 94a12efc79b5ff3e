package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/koopa0/docrag/internal/log"
)

// maxChatBodyBytes bounds the chat request body.
const maxChatBodyBytes = 64 * 1024

// Answerer produces a response for a user message. *agent.Agent satisfies it.
type Answerer interface {
	Answer(ctx context.Context, message string) (string, error)
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type chatHandler struct {
	answerer Answerer
	logger   log.Logger
}

// send handles POST /api/chat: {"message": ...} in, {"response": ...} out.
// A missing message is a 400, an agent failure a 500.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	body := http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", h.logger)
			return
		}
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "No message provided", h.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "No message provided", h.logger)
		return
	}

	answer, err := h.answerer.Answer(r.Context(), req.Message)
	if err != nil {
		h.logger.Error("chat answer failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error(), h.logger)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Response: answer}, h.logger)
}

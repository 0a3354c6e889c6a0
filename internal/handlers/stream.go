package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/loekTheDreamer/neoplay-backend/internal/middleware"
	"github.com/loekTheDreamer/neoplay-backend/internal/stream"
)

// StreamHandler exposes the two halves of the chat handoff. Setup runs
// behind bearer auth; the stream itself authenticates via the session cookie
// because EventSource cannot send an Authorization header.
type StreamHandler struct {
	controller *stream.Controller
}

func NewStreamHandler(controller *stream.Controller) *StreamHandler {
	return &StreamHandler{controller: controller}
}

func (h *StreamHandler) SetupStream(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Unauthorized", r))
		return
	}
	h.controller.Setup(w, r, userID.String())
}

func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	h.controller.Open(w, r)
}

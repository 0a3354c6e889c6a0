package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/loekTheDreamer/neoplay-backend/internal/middleware"
	"github.com/loekTheDreamer/neoplay-backend/internal/models"
	"github.com/loekTheDreamer/neoplay-backend/internal/repository"
	"github.com/loekTheDreamer/neoplay-backend/internal/services"
)

type ThreadHandler struct {
	threads  *repository.ThreadRepo
	messages *repository.MessageRepo
	games    *repository.GameRepo
}

func NewThreadHandler(threads *repository.ThreadRepo, messages *repository.MessageRepo, games *repository.GameRepo) *ThreadHandler {
	return &ThreadHandler{threads: threads, messages: messages, games: games}
}

// Create starts a fresh conversation thread on a game the caller owns.
func (h *ThreadHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	gameID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid game ID", r))
		return
	}

	game, err := h.games.GetByID(r.Context(), gameID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			handleServiceError(w, r, &services.NotFoundError{Message: "Game not found"})
			return
		}
		handleServiceError(w, r, err)
		return
	}
	if game.PublisherID != userID {
		handleServiceError(w, r, &services.ForbiddenError{Message: "You do not own this game"})
		return
	}

	thread := &models.Thread{GameID: gameID, UserID: userID}
	if err := h.threads.Create(r.Context(), thread); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, thread)
}

// Get returns a thread with its messages in replay order.
func (h *ThreadHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	threadID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid thread ID", r))
		return
	}

	thread, err := h.threads.GetByID(r.Context(), threadID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			handleServiceError(w, r, &services.NotFoundError{Message: "Thread not found"})
			return
		}
		handleServiceError(w, r, err)
		return
	}
	if thread.UserID != userID {
		handleServiceError(w, r, &services.ForbiddenError{Message: "You do not own this thread"})
		return
	}

	messages, err := h.messages.ListByThread(r.Context(), threadID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	thread.Messages = messages

	writeJSON(w, http.StatusOK, thread)
}

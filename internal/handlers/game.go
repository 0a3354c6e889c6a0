package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/loekTheDreamer/neoplay-backend/internal/middleware"
	"github.com/loekTheDreamer/neoplay-backend/internal/models"
	"github.com/loekTheDreamer/neoplay-backend/internal/repository"
	"github.com/loekTheDreamer/neoplay-backend/internal/services"
)

type GameHandler struct {
	games   *repository.GameRepo
	files   *repository.GameFileRepo
	threads *repository.ThreadRepo
	storage *services.StorageService
	pubsub  *redis.Client
}

func NewGameHandler(games *repository.GameRepo, files *repository.GameFileRepo, threads *repository.ThreadRepo, storage *services.StorageService, pubsub *redis.Client) *GameHandler {
	return &GameHandler{games: games, files: files, threads: threads, storage: storage, pubsub: pubsub}
}

// Create makes a new draft game with its first thread, so the editor can
// start chatting immediately.
func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Name == "" {
		req.Name = "Untitled Game"
	}

	game := &models.Game{PublisherID: userID, Name: req.Name}
	if err := h.games.Create(r.Context(), game); err != nil {
		handleServiceError(w, r, err)
		return
	}

	thread := &models.Thread{GameID: game.ID, UserID: userID}
	if err := h.threads.Create(r.Context(), thread); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"game":   game,
		"thread": thread,
	})
}

// ListUser returns the caller's games newest first plus the latest one, the
// game the editor should reopen.
func (h *GameHandler) ListUser(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	games, err := h.games.ListByUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	var latest *models.Game
	if len(games) > 0 {
		latest = games[0]
		threads, err := h.threads.ListByGame(r.Context(), latest.ID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		latest.Threads = threads
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"latest": latest,
		"games":  games,
	})
}

func (h *GameHandler) Rename(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	gameID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid game ID", r))
		return
	}

	var req models.RenameGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewName == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "newName is required", r))
		return
	}

	if err := h.games.Rename(r.Context(), gameID, userID, req.NewName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			handleServiceError(w, r, &services.NotFoundError{Message: "Game not found"})
			return
		}
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Game renamed"})
}

func (h *GameHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	gameID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid game ID", r))
		return
	}

	if err := h.games.Delete(r.Context(), gameID, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			handleServiceError(w, r, &services.NotFoundError{Message: "Game not found"})
			return
		}
		handleServiceError(w, r, err)
		return
	}

	// Published objects are unreachable once the row is gone; clean them up
	// best-effort.
	if err := h.storage.RemovePrefix(r.Context(), services.PublishedKey(gameID, "")); err != nil {
		log.Printf("Failed to remove published objects for game %s: %v", gameID, err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Game deleted"})
}

// Save writes one save's worth of game files: rows in postgres plus working
// copies in the object store under the caller's wallet prefix.
func (h *GameHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	wallet := middleware.GetWalletAddress(r.Context())

	var req models.SaveGameFilesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.GameID == uuid.Nil || len(req.GameFiles) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "game_id and gameFiles are required", r))
		return
	}

	game, err := h.games.GetByID(r.Context(), req.GameID)
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

	if err := h.files.UpsertAll(r.Context(), req.GameID, req.GameFiles); err != nil {
		handleServiceError(w, r, err)
		return
	}

	for _, f := range req.GameFiles {
		key := services.CurrentGameKey(wallet, f.Filename)
		if err := h.storage.UploadFile(r.Context(), key, f.Code); err != nil {
			log.Printf("Failed to upload %s: %v", key, err)
			handleServiceError(w, r, err)
			return
		}
	}

	h.notifyUser(r.Context(), userID, models.WSMessage{
		Type: "game_saved",
		Payload: map[string]interface{}{
			"game_id": req.GameID,
			"files":   len(req.GameFiles),
		},
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Game saved",
		"files":   len(req.GameFiles),
	})
}

func (h *GameHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.bumpCounter(w, r, h.games.IncrementLikes, "likes")
}

func (h *GameHandler) Play(w http.ResponseWriter, r *http.Request) {
	h.bumpCounter(w, r, h.games.IncrementPlays, "plays")
}

func (h *GameHandler) bumpCounter(w http.ResponseWriter, r *http.Request, bump func(context.Context, uuid.UUID) (int, error), field string) {
	gameID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid game ID", r))
		return
	}

	count, err := bump(r.Context(), gameID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			handleServiceError(w, r, &services.NotFoundError{Message: "Game not found"})
			return
		}
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{field: count})
}

func (h *GameHandler) notifyUser(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := h.pubsub.Publish(ctx, "user_updates:"+userID.String(), payload).Err(); err != nil {
		log.Printf("Failed to publish %s event for user %s: %v", msg.Type, userID, err)
	}
}

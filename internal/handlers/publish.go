package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/loekTheDreamer/neoplay-backend/internal/middleware"
	"github.com/loekTheDreamer/neoplay-backend/internal/models"
	"github.com/loekTheDreamer/neoplay-backend/internal/repository"
	"github.com/loekTheDreamer/neoplay-backend/internal/services"
	"github.com/loekTheDreamer/neoplay-backend/internal/worker"
)

type PublishHandler struct {
	games *repository.GameRepo
	queue *redis.Client
}

func NewPublishHandler(games *repository.GameRepo, queue *redis.Client) *PublishHandler {
	return &PublishHandler{games: games, queue: queue}
}

// Publish validates the metadata and enqueues the publish job. The heavy
// work (asset copies, cover upload, status flip) happens in the worker so
// this request returns quickly.
func (h *PublishHandler) Publish(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	wallet := middleware.GetWalletAddress(r.Context())

	var req models.PublishGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	fields := make(map[string]string)
	if req.ID == uuid.Nil {
		fields["id"] = "Game ID is required"
	}
	if req.Name == "" {
		fields["name"] = "Name is required"
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	game, err := h.games.GetByID(r.Context(), req.ID)
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

	var tags []string
	for _, t := range strings.Split(req.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	job := models.PublishJob{
		GameID:      req.ID,
		UserID:      userID,
		Wallet:      wallet,
		Name:        req.Name,
		Genre:       req.Genre,
		Description: req.Description,
		Tags:        tags,
		CoverImage:  req.CoverImage,
	}
	payload, err := json.Marshal(job)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.queue.LPush(r.Context(), worker.PublishQueue, payload).Err(); err != nil {
		log.Printf("Failed to enqueue publish job for game %s: %v", req.ID, err)
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Publishing started",
		"game_id": req.ID,
	})
}

// ListPublished is the public storefront listing.
func (h *PublishHandler) ListPublished(w http.ResponseWriter, r *http.Request) {
	games, err := h.games.ListPublished(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if games == nil {
		games = []*models.Game{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"games": games})
}

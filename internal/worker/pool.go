// Package worker drains the publish queue: it copies a game's files into the
// immutable published prefix, uploads the cover art, and flips the game to
// published, off the request path.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loekTheDreamer/neoplay-backend/internal/models"
	"github.com/loekTheDreamer/neoplay-backend/internal/repository"
	"github.com/loekTheDreamer/neoplay-backend/internal/services"
)

// PublishQueue is the redis list the publish handler pushes jobs onto.
const PublishQueue = "queue:game-publish"

const maxRetries = 3

type Pool struct {
	redis       *redis.Client
	pubsub      *redis.Client
	gameRepo    *repository.GameRepo
	fileRepo    *repository.GameFileRepo
	storage     *services.StorageService
	workerCount int
	stopChan    chan struct{}
}

func NewPool(
	redisClient *redis.Client,
	pubsubClient *redis.Client,
	gameRepo *repository.GameRepo,
	fileRepo *repository.GameFileRepo,
	storage *services.StorageService,
	workerCount int,
) *Pool {
	return &Pool{
		redis:       redisClient,
		pubsub:      pubsubClient,
		gameRepo:    gameRepo,
		fileRepo:    fileRepo,
		storage:     storage,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}

	log.Printf("Started %d publish worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Publish worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, PublishQueue).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		var job models.PublishJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Publish worker %d: failed to parse job: %v", id, err)
			continue
		}

		// One publish per game at a time
		lockKey := fmt.Sprintf("publish_lock:%s", job.GameID)
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue
		}

		log.Printf("Publish worker %d: publishing game %s", id, job.GameID)

		p.publishUpdate(ctx, &job, models.WSMessage{
			Type: "publish_started",
			Payload: map[string]interface{}{
				"game_id": job.GameID,
			},
		})

		if err := p.processPublish(ctx, &job); err != nil {
			p.handleFailure(ctx, &job, err)
		} else {
			p.handleSuccess(ctx, &job)
		}

		p.redis.Del(ctx, lockKey)
	}
}

func (p *Pool) processPublish(ctx context.Context, job *models.PublishJob) error {
	files, err := p.fileRepo.ListByGame(ctx, job.GameID)
	if err != nil {
		return fmt.Errorf("failed to load game files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("game %s has no files to publish", job.GameID)
	}

	for _, f := range files {
		key := services.PublishedKey(job.GameID, f.Filename)
		if err := p.storage.UploadFile(ctx, key, f.Code); err != nil {
			return fmt.Errorf("failed to copy %s: %w", f.Filename, err)
		}
	}

	var coverKey *string
	if job.CoverImage != "" {
		key, err := p.storage.UploadCoverImage(ctx, job.GameID, job.CoverImage)
		if err != nil {
			return fmt.Errorf("failed to upload cover image: %w", err)
		}
		coverKey = &key
	}

	// The status flip is last: until it lands the game stays draft and the
	// published objects are unreachable.
	if err := p.gameRepo.MarkPublished(ctx, job.GameID, job.Name, job.Genre, job.Description, job.Tags, coverKey, time.Now()); err != nil {
		return fmt.Errorf("failed to mark game published: %w", err)
	}

	return nil
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.PublishJob) {
	p.publishUpdate(ctx, job, models.WSMessage{
		Type: "game_published",
		Payload: map[string]interface{}{
			"game_id": job.GameID,
			"name":    job.Name,
		},
	})

	log.Printf("Game %s published successfully", job.GameID)
}

func (p *Pool) handleFailure(ctx context.Context, job *models.PublishJob, err error) {
	job.Retries++
	errMsg := err.Error()

	if job.Retries < maxRetries {
		log.Printf("Publish of game %s failed (attempt %d): %s. Retrying", job.GameID, job.Retries, errMsg)

		jobBytes, _ := json.Marshal(job)
		backoff := time.Duration(1<<uint(job.Retries)) * time.Second
		time.AfterFunc(backoff, func() {
			p.redis.LPush(context.Background(), PublishQueue, string(jobBytes))
		})
		return
	}

	log.Printf("Publish of game %s failed permanently: %s", job.GameID, errMsg)

	p.publishUpdate(ctx, job, models.WSMessage{
		Type: "publish_failed",
		Payload: map[string]interface{}{
			"game_id": job.GameID,
			"error":   errMsg,
		},
	})
}

func (p *Pool) publishUpdate(ctx context.Context, job *models.PublishJob, msg models.WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	channel := "user_updates:" + job.UserID.String()
	if err := p.pubsub.Publish(ctx, channel, payload).Err(); err != nil {
		log.Printf("Failed to publish %s event for user %s: %v", msg.Type, job.UserID, err)
	}
}

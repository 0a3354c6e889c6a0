package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	GameStatusDraft     = "draft"
	GameStatusPublished = "published"
)

type Game struct {
	ID            uuid.UUID  `json:"id"`
	PublisherID   uuid.UUID  `json:"publisher_id"`
	Name          string     `json:"name"`
	Genre         *string    `json:"genre"`
	Description   *string    `json:"description"`
	Tags          []string   `json:"tags"`
	Status        string     `json:"status"`
	CoverImageKey *string    `json:"cover_image_key"`
	Likes         int        `json:"likes"`
	Plays         int        `json:"plays"`
	PublishedAt   *time.Time `json:"published_at"`
	CreatedAt     time.Time  `json:"created_at"`

	// Populated on detail queries.
	Threads []*Thread `json:"threads,omitempty"`
}

// GameFile is one generated source file of a game. (GameID, Filename) is
// unique; Code is the full file text.
type GameFile struct {
	GameID    uuid.UUID `json:"game_id"`
	Filename  string    `json:"filename"`
	Type      string    `json:"type"`
	Code      string    `json:"code"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SaveGameFilesRequest struct {
	GameID    uuid.UUID       `json:"game_id"`
	GameFiles []GameFileInput `json:"gameFiles"`
}

type GameFileInput struct {
	Filename string `json:"filename"`
	Type     string `json:"type"`
	Code     string `json:"code"`
}

type RenameGameRequest struct {
	NewName string `json:"newName"`
}

type PublishGameRequest struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Genre       string    `json:"genre"`
	Description string    `json:"description"`
	Tags        string    `json:"tags"`
	CoverImage  string    `json:"coverImage"`
}

// PublishJob is the payload queued for the publish worker.
type PublishJob struct {
	GameID      uuid.UUID `json:"game_id"`
	UserID      uuid.UUID `json:"user_id"`
	Wallet      string    `json:"wallet"`
	Name        string    `json:"name"`
	Genre       string    `json:"genre"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	CoverImage  string    `json:"cover_image,omitempty"`
	Retries     int       `json:"retries,omitempty"`
}

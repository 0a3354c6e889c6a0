package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// StorageService holds game files in an S3-compatible bucket. Working copies
// live under current_game/{wallet}/ and are overwritten on every save;
// published snapshots live under published/{gameId}/ and never change after
// publish.
type StorageService struct {
	client *minio.Client
	bucket string
}

func NewStorageService(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*StorageService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &StorageService{client: client, bucket: bucket}, nil
}

func CurrentGameKey(wallet, filename string) string {
	return fmt.Sprintf("current_game/%s/%s", wallet, filename)
}

func PublishedKey(gameID uuid.UUID, filename string) string {
	return fmt.Sprintf("published/%s/%s", gameID, filename)
}

// UploadFile writes one text file under the given object key.
func (s *StorageService) UploadFile(ctx context.Context, key, code string) error {
	reader := strings.NewReader(code)
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, int64(len(code)), minio.PutObjectOptions{
		ContentType: contentTypeFor(key),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// UploadCoverImage decodes a data URL and stores it under the published
// prefix. Returns the object key.
func (s *StorageService) UploadCoverImage(ctx context.Context, gameID uuid.UUID, dataURL string) (string, error) {
	mediaType, data, err := decodeDataURL(dataURL)
	if err != nil {
		return "", err
	}

	ext := ".png"
	switch mediaType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/webp":
		ext = ".webp"
	case "image/gif":
		ext = ".gif"
	}

	key := PublishedKey(gameID, "cover"+ext)
	reader := strings.NewReader(string(data))
	_, err = s.client.PutObject(ctx, s.bucket, key, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: mediaType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload cover image: %w", err)
	}
	return key, nil
}

// RemovePrefix deletes every object under the prefix, used when a game is
// deleted.
func (s *StorageService) RemovePrefix(ctx context.Context, prefix string) error {
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("failed to list %s: %w", prefix, obj.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("failed to remove %s: %w", obj.Key, err)
		}
	}
	return nil
}

func contentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".html":
		return "text/html"
	case ".js":
		return "application/javascript"
	case ".css":
		return "text/css"
	case ".svg":
		return "image/svg+xml"
	case ".json":
		return "application/json"
	default:
		return "text/plain"
	}
}

// decodeDataURL parses "data:<mediatype>;base64,<payload>".
func decodeDataURL(dataURL string) (string, []byte, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", nil, &ValidationError{Fields: map[string]string{"coverImage": "must be a data URL"}}
	}
	rest := strings.TrimPrefix(dataURL, "data:")
	sep := strings.Index(rest, ",")
	if sep < 0 {
		return "", nil, &ValidationError{Fields: map[string]string{"coverImage": "malformed data URL"}}
	}
	meta, payload := rest[:sep], rest[sep+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return "", nil, &ValidationError{Fields: map[string]string{"coverImage": "data URL must be base64 encoded"}}
	}
	mediaType := strings.TrimSuffix(meta, ";base64")

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, &ValidationError{Fields: map[string]string{"coverImage": "invalid base64 payload"}}
	}
	return mediaType, data, nil
}

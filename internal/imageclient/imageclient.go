// Package imageclient provides the image collaborators of a chat room
// session: an uploader pushing message images to the backend and a cache
// serving image bytes by URL.
package imageclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss is returned when no image bytes are cached under a URL.
	ErrCacheMiss = errors.New("imageclient: image not in cache")
	// ErrEmptyResponse is returned when the upload endpoint answers with no
	// body.
	ErrEmptyResponse = errors.New("imageclient: no data in upload response")
)

// UploadResult is the remote identity of an uploaded image.
type UploadResult struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Uploader pushes raw image bytes to the backend and returns the remote
// reference an image message embeds.
type Uploader interface {
	Upload(ctx context.Context, data []byte) (UploadResult, error)
}

// Cache fetches image bytes by URL. Local (not yet uploaded) images of
// optimistic messages are resolved through it as well.
type Cache interface {
	GetImage(ctx context.Context, url string) ([]byte, error)
	SetImage(ctx context.Context, url string, data []byte) error
}

// HTTPUploader uploads images with a multipart POST against the room
// service.
type HTTPUploader struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPUploader(baseURL, token string) *HTTPUploader {
	return &HTTPUploader{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (u *HTTPUploader) Upload(ctx context.Context, data []byte) (UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "image")
	if err != nil {
		return UploadResult{}, err
	}
	if _, err := part.Write(data); err != nil {
		return UploadResult{}, err
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.BaseURL+"/images", &body)
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if u.Token != "" {
		req.Header.Set("Authorization", "Bearer "+u.Token)
	}

	resp, err := u.Client.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return UploadResult{}, fmt.Errorf("upload image: unexpected status %s", resp.Status)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return UploadResult{}, err
	}
	if len(raw) == 0 {
		return UploadResult{}, ErrEmptyResponse
	}
	var result UploadResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return UploadResult{}, fmt.Errorf("decode upload response: %w", err)
	}
	return result, nil
}

// RedisCache keeps image bytes in redis, keyed by URL.
type RedisCache struct {
	RDB *redis.Client
	TTL time.Duration
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{RDB: rdb, TTL: 24 * time.Hour}
}

func (c *RedisCache) GetImage(ctx context.Context, url string) ([]byte, error) {
	data, err := c.RDB.Get(ctx, cacheKey(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *RedisCache) SetImage(ctx context.Context, url string, data []byte) error {
	return c.RDB.Set(ctx, cacheKey(url), data, c.TTL).Err()
}

func cacheKey(url string) string { return "image:" + url }

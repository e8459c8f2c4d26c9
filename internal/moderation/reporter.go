package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"streamroom/sdk/internal/models"
)

// Reporter forwards a user's report about a message to the moderation
// backend.
type Reporter interface {
	Report(ctx context.Context, roomID string, msg models.ChatMessage, reason string) error
}

// HTTPReporter posts reports to the room service.
type HTTPReporter struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPReporter(baseURL, token string) *HTTPReporter {
	return &HTTPReporter{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *HTTPReporter) Report(ctx context.Context, roomID string, msg models.ChatMessage, reason string) error {
	body, err := json.Marshal(map[string]string{
		"message_id": string(msg.ID),
		"reason":     reason,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/rooms/%s/reports", r.BaseURL, roomID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("report message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("report message: unexpected status %s", resp.Status)
	}
	return nil
}

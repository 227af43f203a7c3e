package tui

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lexcodex/planform/framework"
)

// Client is a thin SSE consumer for the chat stream endpoint.
type Client struct {
	BaseURL   string
	ProjectID string
	SessionID string
	HTTP      *http.Client
}

// NewClient builds a client with a generous timeout; a single agent turn can
// take minutes when tool calls are involved.
func NewClient(baseURL, projectID, sessionID string) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		ProjectID: projectID,
		SessionID: sessionID,
		HTTP:      &http.Client{Timeout: 10 * time.Minute},
	}
}

// Stream posts the message and invokes onEvent for every SSE frame until the
// server closes the stream.
func (c *Client) Stream(ctx context.Context, message string, onEvent func(framework.StreamEvent)) error {
	body, err := json.Marshal(map[string]string{
		"message":    message,
		"session_id": c.SessionID,
	})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/tasks/%s/chat/stream", c.BaseURL, c.ProjectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chat stream: server returned %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event framework.StreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			continue
		}
		onEvent(event)
	}
	return scanner.Err()
}

// Reset clears the server-side session history and trace.
func (c *Client) Reset(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{"session_id": c.SessionID})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/tasks/%s/chat/reset", c.BaseURL, c.ProjectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chat reset: server returned %s", resp.Status)
	}
	return nil
}

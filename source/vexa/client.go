// Copyright 2025 Murmur Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package vexa implements source.Client against the Vexa meeting-bot API.
package vexa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/murmurhq/murmur/core"
	"github.com/murmurhq/murmur/source"
)

// DefaultBaseURL is the production Vexa API endpoint.
const DefaultBaseURL = "https://api.vexa.ai/v1"

const defaultTimeout = 10 * time.Second

// Client talks to the Vexa API over HTTP with bearer authentication.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ source.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client) error

// WithBaseURL overrides the API endpoint. Useful for self-hosted
// deployments and tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) error {
		if baseURL == "" {
			return fmt.Errorf("%w: base URL cannot be empty", source.ErrInvalidConfig)
		}
		c.baseURL = strings.TrimRight(baseURL, "/")
		return nil
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) error {
		if httpClient == nil {
			return fmt.Errorf("%w: http client cannot be nil", source.ErrInvalidConfig)
		}
		c.httpClient = httpClient
		return nil
	}
}

// WithTimeout sets the per-request timeout.
// Default is 10 seconds.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: timeout must be positive", source.ErrInvalidConfig)
		}
		c.httpClient.Timeout = timeout
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewClient creates a Vexa API client.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key required", source.ErrInvalidConfig)
	}

	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default().With("component", "vexa-client"),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// transcriptItem is one segment as the Vexa API delivers it.
type transcriptItem struct {
	SpeakerID   string  `json:"speaker_id"`
	SpeakerName string  `json:"speaker_name"`
	Text        string  `json:"text"`
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
}

type transcriptResponse struct {
	Transcript []transcriptItem `json:"transcript"`
}

// FetchTranscript retrieves the session's transcript and returns the
// utterances starting strictly after sinceTS. Filtering happens
// client-side; the API returns the full transcript each call. Malformed
// segments are logged and dropped.
func (c *Client) FetchTranscript(ctx context.Context, sessionID string, sinceTS float64) ([]*core.Utterance, error) {
	endpoint := fmt.Sprintf("%s/meetings/%s/transcript", c.baseURL, sessionID)

	var parsed transcriptResponse
	if err := c.getJSON(ctx, endpoint, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %w", source.ErrFetchFailed, err)
	}

	var utterances []*core.Utterance
	for _, item := range parsed.Transcript {
		u := c.normalizeItem(sessionID, item)
		if u == nil {
			continue
		}
		if u.StartTS > sinceTS {
			utterances = append(utterances, u)
		}
	}

	c.logger.Debug("fetched transcript", "session", sessionID, "count", len(utterances))
	return utterances, nil
}

// normalizeItem converts an API segment to a canonical utterance.
// Returns nil for segments that cannot form a valid utterance.
func (c *Client) normalizeItem(sessionID string, item transcriptItem) *core.Utterance {
	speakerID := item.SpeakerID
	if speakerID == "" {
		speakerID = "unknown"
	}

	u := core.NewUtterance(sessionID, speakerID, item.Text, item.StartTime)
	u.SpeakerName = item.SpeakerName
	u.EndTS = item.EndTime

	if err := core.ValidateUtterance(u); err != nil {
		c.logger.Warn("dropping malformed transcript segment",
			"session", sessionID, "start_time", item.StartTime, "err", err)
		return nil
	}

	return u
}

// DeployBot requests a transcription bot for the meeting. Deploying to a
// meeting that already has one returns 409, which is treated as success.
func (c *Client) DeployBot(ctx context.Context, sessionID string) error {
	endpoint := c.baseURL + "/bots"

	body, err := json.Marshal(map[string]string{"meeting_id": sessionID})
	if err != nil {
		return fmt.Errorf("%w: %w", source.ErrDeployFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", source.ErrDeployFailed, err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", source.ErrDeployFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		c.logger.Debug("bot already deployed", "session", sessionID)
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %s: %s", source.ErrDeployFailed, resp.Status, string(respBody))
	}

	c.logger.Info("deployed bot", "session", sessionID)
	return nil
}

// MeetingActive reports whether the meeting is still in progress.
func (c *Client) MeetingActive(ctx context.Context, sessionID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/meetings/%s/status", c.baseURL, sessionID)

	var parsed struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, endpoint, &parsed); err != nil {
		return false, fmt.Errorf("%w: %w", source.ErrFetchFailed, err)
	}

	return parsed.Status == "active", nil
}

// getJSON performs an authenticated GET and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s", resp.Status, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

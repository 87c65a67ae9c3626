// Package sink delivers finished results to local and remote storage.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/verte-zerg/typetest/internal/model"
	"github.com/verte-zerg/typetest/internal/store"
)

// Sink persists one result on behalf of actor. An empty actor is a guest.
type Sink interface {
	Save(ctx context.Context, result model.TestResult, actor string) error
}

// APIKeyHeader carries the shared secret for result uploads.
const APIKeyHeader = "X-API-Key"

func actorOrGuest(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return model.GuestActor
	}
	return actor
}

// StoreSink writes results to the local SQLite store.
type StoreSink struct {
	Store *store.Store
}

// Save implements Sink.
func (s StoreSink) Save(ctx context.Context, result model.TestResult, actor string) error {
	result.Username = actorOrGuest(actor)
	if err := s.Store.InsertResult(ctx, result); err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	return nil
}

// RemoteSink posts results to a typetest server.
type RemoteSink struct {
	baseURL string
	apiKey  string
	client  *http.Client
	// Retries is how many extra attempts follow a transport error or 5xx.
	Retries int
	Backoff time.Duration
}

// NewRemoteSink returns a sink posting to baseURL/api/results.
func NewRemoteSink(baseURL, apiKey string, timeout time.Duration) *RemoteSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteSink{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		Retries: 2,
		Backoff: 500 * time.Millisecond,
	}
}

// Save implements Sink.
func (s *RemoteSink) Save(ctx context.Context, result model.TestResult, actor string) error {
	result.Username = actorOrGuest(actor)
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.Backoff * time.Duration(attempt)):
			}
		}
		retry, err := s.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return lastErr
}

func (s *RemoteSink) post(ctx context.Context, body []byte) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/results", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set(APIKeyHeader, s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort close.
			_ = cerr
		}
	}()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return resp.StatusCode >= 500, fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
}

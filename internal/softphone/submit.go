package softphone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SubmitRecord is the finished-call payload handed to the backend when the
// outbound policy gate passes.
type SubmitRecord struct {
	LeadID          string
	SessionID       string
	UserID          string
	Outcome         string
	Notes           string
	DurationSeconds int
	StartedAt       time.Time
	EndedAt         time.Time
}

// Submitter delivers finished calls to durable storage.
type Submitter interface {
	SubmitCall(ctx context.Context, rec SubmitRecord) error
}

// TokenSource supplies the bearer token for the activities API. Fetching may
// hit the network; it runs inside the submission goroutine, never inside a
// state transition.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// HTTPSubmitter posts completed calls to the server's activities endpoint.
type HTTPSubmitter struct {
	baseURL string
	tokens  TokenSource
	httpc   *http.Client
}

func NewHTTPSubmitter(baseURL string, tokens TokenSource) *HTTPSubmitter {
	return &HTTPSubmitter{
		baseURL: baseURL,
		tokens:  tokens,
		httpc:   &http.Client{Timeout: 15 * time.Second},
	}
}

type callActivityPayload struct {
	Type          string `json:"type"`
	LeadID        string `json:"leadId"`
	SessionID     string `json:"sessionId,omitempty"`
	Outcome       string `json:"outcome"`
	Duration      int    `json:"duration"`
	Notes         string `json:"notes,omitempty"`
	CallStartTime string `json:"callStartTime,omitempty"`
	CallEndTime   string `json:"callEndTime,omitempty"`
}

func (s *HTTPSubmitter) SubmitCall(ctx context.Context, rec SubmitRecord) error {
	payload := callActivityPayload{
		Type:      "call",
		LeadID:    rec.LeadID,
		SessionID: rec.SessionID,
		Outcome:   rec.Outcome,
		Duration:  rec.DurationSeconds,
		Notes:     rec.Notes,
	}
	if !rec.StartedAt.IsZero() {
		payload.CallStartTime = rec.StartedAt.UTC().Format(time.RFC3339)
	}
	if !rec.EndedAt.IsZero() {
		payload.CallEndTime = rec.EndedAt.UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/activities", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if s.tokens != nil {
		token, err := s.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("softphone: token fetch failed: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("softphone: activities endpoint returned %d", resp.StatusCode)
	}
	return nil
}

package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Deepgram transcribes recordings with Deepgram's prerecorded-audio API.
// Deepgram accepts a hosted URL directly, so no media passes through us.

const deepgramEndpoint = "https://api.deepgram.com/v1/listen?model=nova-2&smart_format=true"

type Deepgram struct {
	apiKey   string
	endpoint string
	httpc    *http.Client
}

func NewDeepgram(apiKey string) (*Deepgram, error) {
	if apiKey == "" {
		return nil, errors.New("transcribe: deepgram api key required")
	}
	return &Deepgram{
		apiKey:   apiKey,
		endpoint: deepgramEndpoint,
		httpc:    &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type deepgramRequest struct {
	URL string `json:"url"`
}

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (t *Deepgram) Transcribe(ctx context.Context, recordingURL string) (string, error) {
	payload, err := json.Marshal(deepgramRequest{URL: recordingURL})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Token "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: deepgram request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcribe: deepgram returned %d", resp.StatusCode)
	}

	var out deepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("transcribe: deepgram response decode failed: %w", err)
	}
	if len(out.Results.Channels) == 0 || len(out.Results.Channels[0].Alternatives) == 0 {
		return "", errors.New("transcribe: deepgram returned no transcript")
	}
	return out.Results.Channels[0].Alternatives[0].Transcript, nil
}

package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI transcribes recordings with the Whisper API. The provider hosts the
// recording; we stream it down and feed it to the transcription endpoint.

type OpenAI struct {
	client *openai.Client
	httpc  *http.Client
}

func NewOpenAI(apiKey string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("transcribe: openai api key required")
	}
	return &OpenAI{
		client: openai.NewClient(apiKey),
		httpc:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (t *OpenAI) Transcribe(ctx context.Context, recordingURL string) (string, error) {
	body, err := t.fetchRecording(ctx, recordingURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   body,
		FilePath: "recording.wav",
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: openai transcription failed: %w", err)
	}
	return resp.Text, nil
}

func (t *OpenAI) fetchRecording(ctx context.Context, recordingURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcribe: recording download failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("transcribe: recording download returned %d", resp.StatusCode)
	}
	return resp.Body, nil
}

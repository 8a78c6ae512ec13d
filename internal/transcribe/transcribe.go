package transcribe

import (
	"context"
	"errors"

	"callcenter-crm/internal/phonecfg"
)

// Transcriber converts a hosted recording into text.
//
// Contract: implementations return an error instead of panicking, and the
// caller is responsible for degrading gracefully. A transcription failure
// must never fail the surrounding persistence.
type Transcriber interface {
	Transcribe(ctx context.Context, recordingURL string) (string, error)
}

var ErrDisabled = errors.New("transcribe: transcription disabled")

// Disabled is the no-op engine used when an org has transcription off.
type Disabled struct{}

func (Disabled) Transcribe(ctx context.Context, recordingURL string) (string, error) {
	return "", ErrDisabled
}

// Registry selects an engine for an org policy. Unknown providers resolve to
// Disabled rather than erroring; a stale policy row must not break call
// close-out.
type Registry struct {
	engines map[phonecfg.TranscriptionProvider]Transcriber
}

func NewRegistry() *Registry {
	return &Registry{engines: map[phonecfg.TranscriptionProvider]Transcriber{}}
}

func (r *Registry) Register(p phonecfg.TranscriptionProvider, t Transcriber) {
	r.engines[p] = t
}

func (r *Registry) For(p phonecfg.TranscriptionProvider) Transcriber {
	if t, ok := r.engines[p]; ok && t != nil {
		return t
	}
	return Disabled{}
}

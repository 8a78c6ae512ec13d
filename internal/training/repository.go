package training

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("training: not found")

type Repository interface {
	Create(ctx context.Context, m Marker) (Marker, error)
	FindByProviderCallID(ctx context.Context, orgID, providerCallID string) (Marker, bool, error)
	AttachRecording(ctx context.Context, orgID, markerID, recordingURL, transcript string) error
}

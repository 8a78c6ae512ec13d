package audit

import (
	"context"
	"errors"
	"testing"
	"time"
)

type failingRepo struct{}

func (failingRepo) Append(ctx context.Context, e Event) error {
	return errors.New("storage down")
}

func TestRecordFillsDefaults(t *testing.T) {
	repo := NewMemoryRepo()
	rec := NewRecorder(repo)
	rec.SetClock(func() time.Time { return time.Unix(1700000000, 0).UTC() })

	rec.Record(context.Background(), Event{
		OrgID:          "org-1",
		Kind:           KindUnmatchedRecording,
		ProviderCallID: "CA-1",
	})

	events := repo.Events()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	e := events[0]
	if e.EventID == "" {
		t.Fatal("event id not generated")
	}
	if !e.At.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Fatalf("at = %v", e.At)
	}
}

func TestRecordSwallowsAppendFailure(t *testing.T) {
	rec := NewRecorder(failingRepo{})
	// Must not panic or surface the error.
	rec.Record(context.Background(), Event{Kind: KindNoActiveCall})
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	rec.Record(context.Background(), Event{Kind: KindNoActiveCall})
}

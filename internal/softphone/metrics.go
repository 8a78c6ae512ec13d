package softphone

import (
	"sync"
	"time"
)

// CallRecord is one entry in the session's local call history.
type CallRecord struct {
	To        string
	LeadID    string
	SessionID string
	Inbound   bool

	FinalState      State
	Successful      bool
	DurationSeconds int
	StartedAt       time.Time
}

// Metrics is the running aggregate shown in the session header.
type Metrics struct {
	TotalCalls             int
	SuccessfulCalls        int
	FailedCalls            int
	AverageDurationSeconds float64
}

// SessionStats accumulates per-session call history and a rolling metrics
// aggregate. Safe for use from the machine's goroutines.
type SessionStats struct {
	mu      sync.Mutex
	history []CallRecord
	metrics Metrics
}

func NewSessionStats() *SessionStats {
	return &SessionStats{}
}

func (s *SessionStats) Record(r CallRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, r)

	m := &s.metrics
	// Rolling average: fold the new duration in without rescanning history.
	m.AverageDurationSeconds = (m.AverageDurationSeconds*float64(m.TotalCalls) + float64(r.DurationSeconds)) / float64(m.TotalCalls+1)
	m.TotalCalls++
	if r.Successful {
		m.SuccessfulCalls++
	} else {
		m.FailedCalls++
	}
}

func (s *SessionStats) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

func (s *SessionStats) History() []CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CallRecord, len(s.history))
	copy(out, s.history)
	return out
}

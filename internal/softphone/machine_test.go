package softphone

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"callcenter-crm/internal/phonecfg"
)

type fakeDevice struct {
	mu          sync.Mutex
	connectErr  error
	disconnects int
	discErr     error
	muted       bool
}

func (d *fakeDevice) Connect(ctx context.Context, to string) error { return d.connectErr }

func (d *fakeDevice) Disconnect() error {
	d.mu.Lock()
	d.disconnects++
	d.mu.Unlock()
	return d.discErr
}

func (d *fakeDevice) Mute(muted bool) error {
	d.mu.Lock()
	d.muted = muted
	d.mu.Unlock()
	return nil
}

type fakeSubmitter struct {
	ch chan SubmitRecord
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{ch: make(chan SubmitRecord, 4)}
}

func (s *fakeSubmitter) SubmitCall(ctx context.Context, rec SubmitRecord) error {
	s.ch <- rec
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1700000000, 0).UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func outboundInfo(minDuration int) CallInfo {
	policy := phonecfg.Default("org-1")
	policy.MinOutboundDurationSeconds = minDuration
	return CallInfo{
		To:        "+15551230001",
		LeadID:    "lead-1",
		SessionID: "sess-1",
		UserID:    "user-1",
		Policy:    policy,
	}
}

func newTestMachine(t *testing.T, dev *fakeDevice, sub Submitter) (*Machine, *testClock) {
	t.Helper()
	m := NewMachine(dev, sub)
	clk := newTestClock()
	m.SetClock(clk.Now)
	m.SetCoolDown(time.Hour) // keep terminal states observable
	t.Cleanup(m.Close)
	return m, clk
}

func TestPlaceCallNoOpWhileConfigLoading(t *testing.T) {
	m, _ := newTestMachine(t, &fakeDevice{}, newFakeSubmitter())

	if m.PlaceCall(context.Background(), outboundInfo(120)) {
		t.Fatal("placeCall must be rejected before config loads")
	}
	if got := m.Snapshot().State; got != StateIdle {
		t.Fatalf("state = %s, want idle", got)
	}

	m.ConfigLoaded()
	if !m.PlaceCall(context.Background(), outboundInfo(120)) {
		t.Fatal("placeCall must succeed after config loads")
	}
	if got := m.Snapshot().State; got != StateConnecting {
		t.Fatalf("state = %s, want connecting", got)
	}
}

func TestPlaceCallNoOpWhenNotIdle(t *testing.T) {
	m, _ := newTestMachine(t, &fakeDevice{}, newFakeSubmitter())
	m.ConfigLoaded()

	m.PlaceCall(context.Background(), outboundInfo(120))
	if m.PlaceCall(context.Background(), outboundInfo(120)) {
		t.Fatal("second placeCall must be rejected while a call is in flight")
	}
}

func TestDisconnectFromActiveStopsTicker(t *testing.T) {
	m, clk := newTestMachine(t, &fakeDevice{}, newFakeSubmitter())
	m.ConfigLoaded()

	m.PlaceCall(context.Background(), outboundInfo(0))
	m.DeviceRinging(CallInfo{})
	m.DeviceAccept()

	m.mu.Lock()
	tickerRunning := m.tickerStop != nil
	m.mu.Unlock()
	if !tickerRunning {
		t.Fatal("ticker must run while active")
	}

	clk.Advance(45 * time.Second)
	m.DeviceDisconnect()

	snap := m.Snapshot()
	if snap.State != StateEnded {
		t.Fatalf("state = %s, want ended", snap.State)
	}
	if snap.DurationSeconds != 45 {
		t.Fatalf("duration = %d, want 45", snap.DurationSeconds)
	}

	m.mu.Lock()
	tickerRunning = m.tickerStop != nil
	m.mu.Unlock()
	if tickerRunning {
		t.Fatal("ticker must be stopped on leaving active")
	}
}

func TestSubmissionGatedOnMinimumDuration(t *testing.T) {
	cases := []struct {
		name     string
		duration time.Duration
		want     bool
	}{
		{"below threshold", 45 * time.Second, false},
		{"above threshold", 200 * time.Second, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := newFakeSubmitter()
			m, clk := newTestMachine(t, &fakeDevice{}, sub)
			m.ConfigLoaded()

			m.PlaceCall(context.Background(), outboundInfo(120))
			m.DeviceAccept()
			clk.Advance(tc.duration)
			m.DeviceDisconnect()

			select {
			case rec := <-sub.ch:
				if !tc.want {
					t.Fatalf("unexpected submission: %+v", rec)
				}
				if rec.DurationSeconds != int(tc.duration/time.Second) {
					t.Fatalf("duration = %d", rec.DurationSeconds)
				}
				if rec.LeadID != "lead-1" || rec.SessionID != "sess-1" {
					t.Fatalf("record = %+v", rec)
				}
			case <-time.After(200 * time.Millisecond):
				if tc.want {
					t.Fatal("submission expected but none arrived")
				}
			}
		})
	}
}

func TestAnswerStartsClockAndTicker(t *testing.T) {
	m, clk := newTestMachine(t, &fakeDevice{}, newFakeSubmitter())
	m.ConfigLoaded()

	m.DeviceRinging(CallInfo{To: "+15552220000", LeadID: "lead-1", SessionID: "sess-1"})
	m.Answer()

	m.mu.Lock()
	tickerRunning := m.tickerStop != nil
	started := m.startedAt
	m.mu.Unlock()
	if !tickerRunning {
		t.Fatal("ticker must run after answering")
	}
	if started.IsZero() {
		t.Fatal("start time not recorded on answer")
	}

	// The device's own accept confirmation is a no-op once answered.
	m.DeviceAccept()

	clk.Advance(45 * time.Second)
	m.DeviceDisconnect()

	snap := m.Snapshot()
	if snap.State != StateEnded {
		t.Fatalf("state = %s, want ended", snap.State)
	}
	if snap.DurationSeconds != 45 {
		t.Fatalf("duration = %d, want 45", snap.DurationSeconds)
	}
}

func TestHangUpBeforeAnswerEndsCancelled(t *testing.T) {
	sub := newFakeSubmitter()
	m, _ := newTestMachine(t, &fakeDevice{}, sub)
	m.ConfigLoaded()

	m.PlaceCall(context.Background(), outboundInfo(0))
	m.DeviceRinging(CallInfo{})
	m.HangUp()
	m.DeviceDisconnect() // device confirms the hangup

	snap := m.Snapshot()
	if snap.State != StateCancelled {
		t.Fatalf("state = %s, want cancelled for a never-connected call", snap.State)
	}

	stats := m.Stats().Metrics()
	if stats.SuccessfulCalls != 0 {
		t.Fatalf("successful calls = %d, want 0", stats.SuccessfulCalls)
	}
	select {
	case rec := <-sub.ch:
		t.Fatalf("never-connected call must not be submitted: %+v", rec)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCancelBeforeAnswerHasNoSideEffects(t *testing.T) {
	sub := newFakeSubmitter()
	m, _ := newTestMachine(t, &fakeDevice{}, sub)
	m.ConfigLoaded()

	m.PlaceCall(context.Background(), outboundInfo(0))
	m.DeviceRinging(CallInfo{})
	m.DeviceCancel()

	snap := m.Snapshot()
	if snap.State != StateCancelled {
		t.Fatalf("state = %s, want cancelled", snap.State)
	}
	if snap.DurationSeconds != 0 {
		t.Fatalf("duration = %d, want 0", snap.DurationSeconds)
	}
	select {
	case rec := <-sub.ch:
		t.Fatalf("cancelled call must not be submitted: %+v", rec)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFailedDisconnectStillEndsCall(t *testing.T) {
	dev := &fakeDevice{discErr: errors.New("device wedged")}
	m, _ := newTestMachine(t, dev, newFakeSubmitter())
	m.ConfigLoaded()

	m.PlaceCall(context.Background(), outboundInfo(0))
	m.DeviceAccept()
	m.HangUp()

	if got := m.Snapshot().State; got != StateEnded {
		t.Fatalf("state = %s, want ended despite disconnect failure", got)
	}
}

func TestDeviceErrorMovesToFailed(t *testing.T) {
	m, _ := newTestMachine(t, &fakeDevice{}, newFakeSubmitter())
	m.ConfigLoaded()

	m.PlaceCall(context.Background(), outboundInfo(0))
	m.DeviceAccept()
	m.DeviceError("signal lost")

	snap := m.Snapshot()
	if snap.State != StateFailed {
		t.Fatalf("state = %s, want failed", snap.State)
	}
	if snap.ErrorMessage != "signal lost" {
		t.Fatalf("error message = %q", snap.ErrorMessage)
	}

	stats := m.Stats().Metrics()
	if stats.TotalCalls != 1 || stats.FailedCalls != 1 {
		t.Fatalf("metrics = %+v", stats)
	}
}

func TestTerminalStateReturnsToIdleAfterCoolDown(t *testing.T) {
	m, _ := newTestMachine(t, &fakeDevice{}, newFakeSubmitter())
	m.SetCoolDown(10 * time.Millisecond)
	m.ConfigLoaded()

	m.PlaceCall(context.Background(), outboundInfo(0))
	m.DeviceAccept()
	m.DeviceDisconnect()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if m.Snapshot().State == StateIdle {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %s, never returned to idle", m.Snapshot().State)
}

func TestToggleMuteOnlyWhileActive(t *testing.T) {
	dev := &fakeDevice{}
	m, _ := newTestMachine(t, dev, newFakeSubmitter())
	m.ConfigLoaded()

	m.ToggleMute()
	if m.Snapshot().Muted {
		t.Fatal("mute must be ignored while idle")
	}

	m.PlaceCall(context.Background(), outboundInfo(0))
	m.DeviceAccept()
	m.ToggleMute()
	if !m.Snapshot().Muted {
		t.Fatal("mute flag not set")
	}
	m.ToggleMute()
	if m.Snapshot().Muted {
		t.Fatal("mute flag not cleared")
	}
}

func TestSessionStatsRollingAverage(t *testing.T) {
	s := NewSessionStats()
	s.Record(CallRecord{Successful: true, DurationSeconds: 100})
	s.Record(CallRecord{Successful: false, DurationSeconds: 50})
	s.Record(CallRecord{Successful: true, DurationSeconds: 150})

	m := s.Metrics()
	if m.TotalCalls != 3 || m.SuccessfulCalls != 2 || m.FailedCalls != 1 {
		t.Fatalf("metrics = %+v", m)
	}
	if m.AverageDurationSeconds != 100 {
		t.Fatalf("average = %v, want 100", m.AverageDurationSeconds)
	}
	if len(s.History()) != 3 {
		t.Fatalf("history = %d entries", len(s.History()))
	}
}

package softphone

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"callcenter-crm/internal/phonecfg"
)

// Machine is the per-agent call lifecycle state machine a softphone client
// runs for a single call at a time.
//
// Transitions are serialized under one mutex: device events and user actions
// never interleave mid-transition. The duration ticker is the only timer tied
// to a call; it starts on entering active and is always stopped before any
// other state is entered, so at most one ticker goroutine exists per machine.

type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateRinging    State = "ringing"
	StateActive     State = "active"
	StateEnding     State = "ending"
	StateEnded      State = "ended"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
	StateBusy       State = "busy"
	StateNoAnswer   State = "no_answer"
)

// Terminal reports whether the state ends the call. Terminal states return
// to idle after the cool-down.
func (s State) Terminal() bool {
	switch s {
	case StateEnded, StateFailed, StateCancelled, StateBusy, StateNoAnswer:
		return true
	default:
		return false
	}
}

// successfulTerminal marks which terminal states count as a successful call
// in the session metrics.
func successfulTerminal(s State) bool { return s == StateEnded }

// Device is the telephony device abstraction the machine drives. Connect
// starts dialing; Disconnect tears the media session down.
type Device interface {
	Connect(ctx context.Context, to string) error
	Disconnect() error
	Mute(muted bool) error
}

// CallInfo identifies the call being placed and carries the policy snapshot
// taken when dialing started. The policy travels as a value so a concurrent
// configuration reload cannot change recording rules mid-call.
type CallInfo struct {
	To        string
	LeadID    string
	SessionID string
	UserID    string
	Inbound   bool

	Policy phonecfg.Config
}

// Snapshot is the UI-facing view of the machine.
type Snapshot struct {
	State           State
	Muted           bool
	DurationSeconds int
	ErrorMessage    string
	Call            CallInfo
}

type Machine struct {
	mu sync.Mutex

	state  State
	muted  bool
	errMsg string

	call      CallInfo
	lastCall  CallInfo // kept for redial
	startedAt time.Time
	duration  int

	configReady bool

	device    Device
	submitter Submitter
	stats     *SessionStats
	log       *slog.Logger

	clock        func() time.Time
	tickInterval time.Duration
	coolDown     time.Duration

	tickerStop chan struct{}
	coolTimer  *time.Timer
	closed     bool

	// OnChange, when set, is invoked (outside the lock) after every state
	// change and every ticker tick.
	OnChange func(Snapshot)
}

func NewMachine(device Device, submitter Submitter) *Machine {
	return &Machine{
		state:        StateIdle,
		device:       device,
		submitter:    submitter,
		stats:        NewSessionStats(),
		log:          slog.Default(),
		clock:        time.Now,
		tickInterval: time.Second,
		coolDown:     2 * time.Second,
	}
}

// SetClock injects a deterministic clock for tests.
func (m *Machine) SetClock(clock func() time.Time) { m.clock = clock }

// SetCoolDown overrides the delay before a terminal state returns to idle.
func (m *Machine) SetCoolDown(d time.Duration) { m.coolDown = d }

// ConfigLoaded marks configuration as ready; PlaceCall refuses until then.
func (m *Machine) ConfigLoaded() {
	m.mu.Lock()
	m.configReady = true
	m.mu.Unlock()
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		State:           m.state,
		Muted:           m.muted,
		DurationSeconds: m.duration,
		ErrorMessage:    m.errMsg,
		Call:            m.call,
	}
}

// Stats returns the session metrics aggregate.
func (m *Machine) Stats() *SessionStats { return m.stats }

/* ===================== USER ACTIONS ===================== */

// PlaceCall starts dialing. It is a no-op when configuration has not loaded
// or the machine is not idle; the caller gets false and no state changes.
func (m *Machine) PlaceCall(ctx context.Context, info CallInfo) bool {
	m.mu.Lock()
	if !m.configReady || m.state != StateIdle || m.closed {
		m.mu.Unlock()
		return false
	}
	m.call = info
	m.lastCall = info
	m.errMsg = ""
	m.duration = 0
	m.muted = false
	m.setStateLocked(StateConnecting)
	device := m.device
	m.mu.Unlock()

	if err := device.Connect(ctx, info.To); err != nil {
		m.fail("call could not be placed")
		return true
	}
	return true
}

// Redial repeats the last placed call.
func (m *Machine) Redial(ctx context.Context) bool {
	m.mu.Lock()
	last := m.lastCall
	m.mu.Unlock()
	if last.To == "" {
		return false
	}
	return m.PlaceCall(ctx, last)
}

// Answer accepts an inbound ringing call. The accept bookkeeping (start
// time, ticker) runs here; the device's own accept event arriving afterwards
// is a no-op because the state is already active.
func (m *Machine) Answer() {
	m.mu.Lock()
	if m.state != StateRinging || m.closed {
		m.mu.Unlock()
		return
	}
	m.acceptLocked()
	m.mu.Unlock()
}

// Reject declines a ringing call locally. No duration, no side effects.
func (m *Machine) Reject() {
	m.transition(StateRinging, StateCancelled)
}

// HangUp requests the device end the call. A failing Disconnect still moves
// the machine to ended so the UI is never stuck in ending.
func (m *Machine) HangUp() {
	m.mu.Lock()
	if m.state != StateActive && m.state != StateRinging && m.state != StateConnecting {
		m.mu.Unlock()
		return
	}
	m.setStateLocked(StateEnding)
	device := m.device
	m.mu.Unlock()

	if err := device.Disconnect(); err != nil {
		m.log.Warn("softphone disconnect failed, forcing ended", "err", err)
		m.mu.Lock()
		if m.state == StateEnding {
			m.finishHangupLocked()
		}
		m.mu.Unlock()
	}
}

// ToggleMute flips the mute sub-flag while active.
func (m *Machine) ToggleMute() {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return
	}
	m.muted = !m.muted
	muted := m.muted
	device := m.device
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if err := device.Mute(muted); err != nil {
		m.log.Warn("softphone mute failed", "err", err)
	}
	m.notify(snap)
}

/* ===================== DEVICE EVENTS ===================== */

// DeviceRinging signals the remote side is being alerted (outbound) or an
// incoming call arrived (inbound, from idle).
func (m *Machine) DeviceRinging(info CallInfo) {
	m.mu.Lock()
	switch m.state {
	case StateConnecting:
		m.setStateLocked(StateRinging)
	case StateIdle:
		info.Inbound = true
		m.call = info
		m.errMsg = ""
		m.duration = 0
		m.muted = false
		m.setStateLocked(StateRinging)
	}
	m.mu.Unlock()
}

// DeviceAccept signals the call was answered. The wall-clock start time is
// recorded and the duration ticker starts.
func (m *Machine) DeviceAccept() {
	m.mu.Lock()
	if m.state != StateConnecting && m.state != StateRinging {
		m.mu.Unlock()
		return
	}
	m.acceptLocked()
	m.mu.Unlock()
}

func (m *Machine) acceptLocked() {
	m.startedAt = m.clock()
	m.duration = 0
	m.setStateLocked(StateActive)
	m.startTickerLocked()
}

// DeviceDisconnect signals the call ended remotely or the device confirmed
// our hangup.
func (m *Machine) DeviceDisconnect() {
	m.mu.Lock()
	switch m.state {
	case StateActive, StateEnding:
		m.finishHangupLocked()
	case StateRinging, StateConnecting:
		m.finishLocked(StateCancelled)
	}
	m.mu.Unlock()
}

// finishHangupLocked picks the terminal state for a locally terminated call.
// A leg that never reached active ends as cancelled, so it neither counts as
// a successful call nor passes the submission gate.
func (m *Machine) finishHangupLocked() {
	if m.startedAt.IsZero() {
		m.finishLocked(StateCancelled)
		return
	}
	m.finishLocked(StateEnded)
}

// DeviceCancel signals the remote side hung up before answer.
func (m *Machine) DeviceCancel() {
	m.transitionAny([]State{StateConnecting, StateRinging}, StateCancelled)
}

// DeviceBusy signals the remote line was busy.
func (m *Machine) DeviceBusy() {
	m.transitionAny([]State{StateConnecting, StateRinging}, StateBusy)
}

// DeviceNoAnswer signals the dial timed out unanswered.
func (m *Machine) DeviceNoAnswer() {
	m.transitionAny([]State{StateConnecting, StateRinging}, StateNoAnswer)
}

// DeviceError surfaces a device failure. The message is user-visible; the
// machine moves to failed without panicking, whatever state it was in.
func (m *Machine) DeviceError(msg string) {
	m.fail(msg)
}

// Close tears the machine down on unmount. The ticker and any pending
// cool-down timer are stopped; further events are ignored.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.stopTickerLocked()
	if m.coolTimer != nil {
		m.coolTimer.Stop()
		m.coolTimer = nil
	}
}

/* ===================== INTERNAL ===================== */

func (m *Machine) transition(from, to State) {
	m.transitionAny([]State{from}, to)
}

func (m *Machine) transitionAny(from []State, to State) {
	m.mu.Lock()
	ok := false
	for _, s := range from {
		if m.state == s {
			ok = true
			break
		}
	}
	if !ok || m.closed {
		m.mu.Unlock()
		return
	}
	if to.Terminal() {
		m.finishLocked(to)
	} else {
		m.setStateLocked(to)
	}
	m.mu.Unlock()
}

func (m *Machine) fail(msg string) {
	m.mu.Lock()
	if m.closed || m.state == StateIdle {
		m.mu.Unlock()
		return
	}
	m.errMsg = msg
	m.finishLocked(StateFailed)
	m.mu.Unlock()
}

// finishLocked runs the terminal bookkeeping: stop the ticker, compute the
// final duration, record history and metrics, kick off the storage submission
// when the policy gate passes, and arm the cool-down back to idle.
func (m *Machine) finishLocked(to State) {
	m.stopTickerLocked()

	if !m.startedAt.IsZero() {
		m.duration = int(m.clock().Sub(m.startedAt) / time.Second)
	}
	m.setStateLocked(to)

	m.stats.Record(CallRecord{
		To:              m.call.To,
		LeadID:          m.call.LeadID,
		SessionID:       m.call.SessionID,
		Inbound:         m.call.Inbound,
		FinalState:      to,
		Successful:      successfulTerminal(to),
		DurationSeconds: m.duration,
		StartedAt:       m.startedAt,
	})

	if m.shouldSubmitLocked(to) {
		rec := SubmitRecord{
			LeadID:          m.call.LeadID,
			SessionID:       m.call.SessionID,
			UserID:          m.call.UserID,
			Outcome:         outcomeFor(to),
			DurationSeconds: m.duration,
			StartedAt:       m.startedAt,
			EndedAt:         m.clock(),
		}
		sub := m.submitter
		log := m.log
		// Fire and forget: a submission failure is logged, never retried,
		// and never blocks or re-fails the UI state.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := sub.SubmitCall(ctx, rec); err != nil {
				log.Warn("call submission failed",
					"lead_id", rec.LeadID, "session_id", rec.SessionID, "err", err)
			}
		}()
	}

	m.startedAt = time.Time{}
	m.armCoolDownLocked()
}

// shouldSubmitLocked gates submission: outbound calls only, and only when
// the call lasted at least the org's minimum outbound duration.
func (m *Machine) shouldSubmitLocked(to State) bool {
	if m.submitter == nil || m.call.Inbound || m.call.LeadID == "" {
		return false
	}
	if to != StateEnded {
		return false
	}
	return m.duration >= m.call.Policy.MinOutboundDurationSeconds
}

func outcomeFor(s State) string {
	switch s {
	case StateBusy:
		return "busy"
	case StateNoAnswer:
		return "no_answer"
	default:
		return "answered"
	}
}

func (m *Machine) armCoolDownLocked() {
	if m.coolTimer != nil {
		m.coolTimer.Stop()
	}
	m.coolTimer = time.AfterFunc(m.coolDown, func() {
		m.mu.Lock()
		if !m.closed && m.state.Terminal() {
			m.call = CallInfo{}
			m.muted = false
			m.errMsg = ""
			m.duration = 0
			m.setStateLocked(StateIdle)
		}
		m.mu.Unlock()
	})
}

func (m *Machine) setStateLocked(to State) {
	m.state = to
	snap := m.snapshotLocked()
	go m.notify(snap)
}

func (m *Machine) notify(snap Snapshot) {
	if m.OnChange != nil {
		m.OnChange(snap)
	}
}

/* ===================== TICKER ===================== */

// startTickerLocked launches the one duration ticker. Any previous ticker is
// stopped first, so two can never run at once.
func (m *Machine) startTickerLocked() {
	m.stopTickerLocked()
	stop := make(chan struct{})
	m.tickerStop = stop

	interval := m.tickInterval
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				m.mu.Lock()
				if m.state != StateActive || m.tickerStop != stop {
					m.mu.Unlock()
					return
				}
				m.duration = int(m.clock().Sub(m.startedAt) / time.Second)
				snap := m.snapshotLocked()
				m.mu.Unlock()
				m.notify(snap)
			}
		}
	}()
}

func (m *Machine) stopTickerLocked() {
	if m.tickerStop != nil {
		close(m.tickerStop)
		m.tickerStop = nil
	}
}

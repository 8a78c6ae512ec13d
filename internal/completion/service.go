package completion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"callcenter-crm/internal/calls"
	"callcenter-crm/internal/leads"
	"callcenter-crm/internal/sessions"
)

// Service reconciles a finished call into durable records in one atomic
// transaction: call record, lead activity history, follow-ups, lead status,
// and session counters together.
//
// Idempotency boundary: the active-call lookup. A duplicate submission for a
// call that was already completed finds no active row and fails loudly with
// ErrNoActiveCall instead of double-applying counters.

var (
	ErrInvalidArgument = errors.New("completion: invalid argument")
	ErrInvalidOutcome  = errors.New("completion: unrecognized outcome")
	ErrLeadNotFound    = errors.New("completion: lead not found")
	ErrNoActiveCall    = errors.New("completion: no active call for lead and session")
)

type Service struct {
	store Store
	clock func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, clock: time.Now}
}

// SetClock injects a deterministic clock for tests.
func (s *Service) SetClock(clock func() time.Time) { s.clock = clock }

type CompleteCallRequest struct {
	OrgID     string
	LeadID    string
	SessionID string
	UserID    string

	Outcome         string
	DurationSeconds int
	Notes           string

	// FollowUpTime is the agent-chosen timeframe code; empty means no
	// follow-up even for callback outcomes.
	FollowUpTime string

	// StartedAt/EndedAt override the call's recorded times when supplied.
	StartedAt *time.Time
	EndedAt   *time.Time
}

type CompleteCallResult struct {
	CallID     string
	ActivityID string
	FollowUpID string
	LeadStatus leads.Status
}

// followUpOffsets maps agent timeframe codes to due-date offsets. Unmapped
// codes default to tomorrow.
var followUpOffsets = map[string]time.Duration{
	"1_hour":    time.Hour,
	"3_hours":   3 * time.Hour,
	"tomorrow":  24 * time.Hour,
	"3_days":    72 * time.Hour,
	"next_week": 168 * time.Hour,
}

const defaultFollowUpOffset = 24 * time.Hour

// statusTransitions maps outcomes to the lead status they force. Outcomes
// missing here leave the status untouched.
var statusTransitions = map[calls.Outcome]leads.Status{
	calls.OutcomeAnswered:          leads.StatusContacted,
	calls.OutcomeInterested:        leads.StatusContacted,
	calls.OutcomeNotInterested:     leads.StatusLost,
	calls.OutcomeDoNotCall:         leads.StatusLost,
	calls.OutcomeScheduledCallback: leads.StatusFollowUpScheduled,
}

func (s *Service) CompleteCall(ctx context.Context, req CompleteCallRequest) (CompleteCallResult, error) {
	if req.OrgID == "" || req.LeadID == "" || req.SessionID == "" {
		return CompleteCallResult{}, ErrInvalidArgument
	}
	outcome, err := calls.ParseOutcome(req.Outcome)
	if err != nil {
		return CompleteCallResult{}, fmt.Errorf("%w: %q", ErrInvalidOutcome, req.Outcome)
	}

	now := s.clock().UTC()
	var out CompleteCallResult

	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		// 1. Lead lookup; also proves org ownership.
		if _, err := tx.LeadCampaign(ctx, req.OrgID, req.LeadID); err != nil {
			return err
		}

		// 2. The single active call for this lead+session.
		call, err := tx.ActiveCall(ctx, req.OrgID, req.LeadID, req.SessionID)
		if err != nil {
			return err
		}

		// 3. Close the call. Start time is preserved unless overridden.
		call.Status = calls.CallStatusCompleted
		call.Outcome = outcome
		call.DurationSeconds = req.DurationSeconds
		call.Notes = req.Notes
		if req.StartedAt != nil {
			call.StartedAt = req.StartedAt.UTC()
		}
		endedAt := now
		if req.EndedAt != nil {
			endedAt = req.EndedAt.UTC()
		}
		call.EndedAt = &endedAt
		if req.UserID != "" {
			call.UserID = req.UserID
		}
		if err := tx.UpdateCall(ctx, call); err != nil {
			return err
		}
		out.CallID = call.CallID

		// 4+5. Outcome classification drives activity reconciliation.
		activityID, err := s.reconcileActivity(ctx, tx, req, outcome, call)
		if err != nil {
			return err
		}
		out.ActivityID = activityID

		// 6. Follow-up only for callback outcomes with a timeframe supplied.
		if outcome.CallbackRequested() && req.FollowUpTime != "" {
			offset, ok := followUpOffsets[req.FollowUpTime]
			if !ok {
				offset = defaultFollowUpOffset
			}
			f, err := tx.InsertFollowUp(ctx, leads.FollowUp{
				OrgID:          req.OrgID,
				LeadID:         req.LeadID,
				CallID:         call.CallID,
				ProviderCallID: call.ProviderCallID,
				Type:           leads.FollowUpTypeCallback,
				Reason:         "Callback requested (" + req.FollowUpTime + ")",
				DueAt:          now.Add(offset),
				RecordingURL:   call.RecordingURL,
				Transcript:     call.Transcript,
			})
			if err != nil {
				return err
			}
			out.FollowUpID = f.FollowUpID
		}

		// 7. Lead status transition.
		if status, ok := statusTransitions[outcome]; ok {
			if err := tx.UpdateLeadStatus(ctx, req.OrgID, req.LeadID, status); err != nil {
				return err
			}
			out.LeadStatus = status
		}

		// 8. Session counters, incremented exactly once per completed call.
		return tx.BumpSession(ctx, req.SessionID, sessions.Delta{
			Successful:      outcome.CountsAsSessionSuccess(),
			DurationSeconds: req.DurationSeconds,
			OrgID:           req.OrgID,
		})
	})
	if err != nil {
		return CompleteCallResult{}, err
	}
	return out, nil
}

// reconcileActivity applies the attempts-vs-contacted rules: unsuccessful
// outcomes fold into the lead's single open CONTACT_ATTEMPTS aggregate;
// successful outcomes always append a fresh CONTACTED row.
func (s *Service) reconcileActivity(ctx context.Context, tx Tx, req CompleteCallRequest, outcome calls.Outcome, call calls.Call) (string, error) {
	if outcome.Successful() {
		content := req.Notes
		if content == "" {
			content = "Contacted: " + string(outcome)
		}
		a, err := tx.InsertActivity(ctx, leads.Activity{
			OrgID:           req.OrgID,
			LeadID:          req.LeadID,
			CallID:          call.CallID,
			SessionID:       req.SessionID,
			Type:            leads.ActivityContacted,
			Outcome:         string(outcome),
			Content:         content,
			DurationSeconds: req.DurationSeconds,
			CreatedBy:       req.UserID,
		})
		if err != nil {
			return "", err
		}
		return a.ActivityID, nil
	}

	existing, found, err := tx.OpenContactAttempts(ctx, req.OrgID, req.LeadID)
	if err != nil {
		return "", err
	}
	if found {
		existing.AttemptCount++
		existing.DurationSeconds += req.DurationSeconds
		existing.Outcome = string(outcome)
		existing.CallID = call.CallID
		existing.SessionID = req.SessionID
		existing.Content = attemptsSummary(existing.AttemptCount, outcome)
		if err := tx.UpdateActivity(ctx, existing); err != nil {
			return "", err
		}
		return existing.ActivityID, nil
	}

	a, err := tx.InsertActivity(ctx, leads.Activity{
		OrgID:           req.OrgID,
		LeadID:          req.LeadID,
		CallID:          call.CallID,
		SessionID:       req.SessionID,
		Type:            leads.ActivityContactAttempts,
		Outcome:         string(outcome),
		Content:         attemptsSummary(1, outcome),
		DurationSeconds: req.DurationSeconds,
		AttemptCount:    1,
		Open:            true,
		CreatedBy:       req.UserID,
	})
	if err != nil {
		return "", err
	}
	return a.ActivityID, nil
}

func attemptsSummary(count int, outcome calls.Outcome) string {
	return fmt.Sprintf("%d contact attempt(s), last outcome: %s", count, outcome)
}

/* ===================== NON-CALL ACTIVITIES ===================== */

// AddActivityRequest records a free-text note/email/meeting entry. These
// bypass the completion transaction; they are single-row inserts tagged
// with the submitting user.
type AddActivityRequest struct {
	OrgID     string
	LeadID    string
	UserID    string
	SessionID string

	Type    leads.ActivityType
	Content string
}

func (s *Service) AddActivity(ctx context.Context, req AddActivityRequest) (leads.Activity, error) {
	if req.OrgID == "" || req.LeadID == "" || req.Content == "" {
		return leads.Activity{}, ErrInvalidArgument
	}
	switch req.Type {
	case leads.ActivityNote, leads.ActivityEmail, leads.ActivityMeeting:
	default:
		return leads.Activity{}, fmt.Errorf("%w: activity type %q", ErrInvalidArgument, req.Type)
	}

	var out leads.Activity
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		a, err := tx.InsertActivity(ctx, leads.Activity{
			OrgID:     req.OrgID,
			LeadID:    req.LeadID,
			SessionID: req.SessionID,
			Type:      req.Type,
			Content:   req.Content,
			CreatedBy: req.UserID,
		})
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return leads.Activity{}, err
	}
	return out, nil
}

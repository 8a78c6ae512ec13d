package calls

import "fmt"

// Outcome is the agent-reported result of a finished call.
//
// Every recognized outcome belongs to exactly one of two disjoint sets:
// unsuccessful attempts (aggregated into a running contact-attempts counter)
// and successful contacts (one history row each). Unknown codes are rejected
// at the API boundary, before any storage mutation.

type Outcome string

const (
	// Unsuccessful attempts.
	OutcomeBusy          Outcome = "busy"
	OutcomeNoAnswer      Outcome = "no_answer"
	OutcomeVoicemail     Outcome = "voicemail"
	OutcomeDisconnected  Outcome = "disconnected"
	OutcomeInvalidNumber Outcome = "invalid_number"

	// Successful contacts.
	OutcomeAnswered          Outcome = "answered"
	OutcomeInterested        Outcome = "interested"
	OutcomeNotInterested     Outcome = "not_interested"
	OutcomeCallback          Outcome = "callback"
	OutcomeScheduledCallback Outcome = "scheduled_callback"
	OutcomeDoNotCall         Outcome = "do_not_call"
)

var successfulOutcomes = map[Outcome]struct{}{
	OutcomeAnswered:          {},
	OutcomeInterested:        {},
	OutcomeNotInterested:     {},
	OutcomeCallback:          {},
	OutcomeScheduledCallback: {},
	OutcomeDoNotCall:         {},
}

var unsuccessfulOutcomes = map[Outcome]struct{}{
	OutcomeBusy:          {},
	OutcomeNoAnswer:      {},
	OutcomeVoicemail:     {},
	OutcomeDisconnected:  {},
	OutcomeInvalidNumber: {},
}

// ParseOutcome validates a raw outcome code.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(s)
	if _, ok := successfulOutcomes[o]; ok {
		return o, nil
	}
	if _, ok := unsuccessfulOutcomes[o]; ok {
		return o, nil
	}
	return "", fmt.Errorf("calls: unrecognized outcome %q", s)
}

// Successful reports whether the outcome counts as a successful contact.
func (o Outcome) Successful() bool {
	_, ok := successfulOutcomes[o]
	return ok
}

// CallbackRequested reports whether the outcome should produce a follow-up
// when the agent supplied a timeframe.
func (o Outcome) CallbackRequested() bool {
	return o == OutcomeCallback || o == OutcomeScheduledCallback
}

// CountsAsSessionSuccess reports whether the outcome increments the session's
// successful-call counter. Narrower than Successful: only live conversations
// that went somewhere count.
func (o Outcome) CountsAsSessionSuccess() bool {
	return o == OutcomeAnswered || o == OutcomeInterested
}

// Outcomes lists every recognized outcome code.
func Outcomes() []Outcome {
	out := make([]Outcome, 0, len(successfulOutcomes)+len(unsuccessfulOutcomes))
	for o := range unsuccessfulOutcomes {
		out = append(out, o)
	}
	for o := range successfulOutcomes {
		out = append(out, o)
	}
	return out
}

package routing

import (
	"callcenter-crm/internal/phonecfg"
	"callcenter-crm/internal/telephony"
)

// Input is everything one routing pass may consult. The policy is resolved
// once by the caller and passed by value; rules never re-fetch configuration
// mid-decision.
type Input struct {
	OrgID  string
	Event  telephony.LiveCallEvent
	Policy phonecfg.Config
}

// Decision is the routing engine output: exactly one call-control script.
//
// Rule records which branch produced the script, for logs and tests.
// ServerError marks the catch-all apology path so the HTTP layer can answer
// with a 500-equivalent status while still returning a well-formed document.
type Decision struct {
	Script      telephony.Script
	Rule        string
	ServerError bool
}

// Rule names, in priority order. The order is the contract.
const (
	RuleTraining       = "training"
	RuleClientOutbound = "client_outbound"
	RuleInboundPhone   = "inbound_phone"
	RuleAppOutbound    = "app_outbound"
	RuleFallback       = "fallback"
	RuleError          = "error"
)

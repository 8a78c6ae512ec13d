package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// TwiML call-control document builder.
//
// A Script is the provider-agnostic ordered instruction list the routing
// engine emits; RenderTwiML maps it to the provider's XML. Only the verbs
// the orchestration core needs are modeled; no provider SDK dependency.

// Script is an ordered list of call-control instructions.
type Script struct {
	Verbs []Verb
}

func NewScript(verbs ...Verb) Script { return Script{Verbs: verbs} }

func (s *Script) Add(verbs ...Verb) { s.Verbs = append(s.Verbs, verbs...) }

func (s Script) Empty() bool { return len(s.Verbs) == 0 }

// Verb is one call-control instruction.
type Verb interface{ isVerb() }

type Say struct {
	Text  string
	Voice string
}

func (Say) isVerb() {}

type Play struct {
	URL string
}

func (Play) isVerb() {}

type Record struct {
	Action    string
	MaxLength int
	PlayBeep  bool
	// Transcribe requests the provider's built-in transcription as a backup
	// transcript source.
	Transcribe bool
}

func (Record) isVerb() {}

// Dial bridges the call to an external number or an internal client session.
type Dial struct {
	// Exactly one of Number or Client must be set.
	Number string
	Client string

	CallerID       string
	TimeoutSeconds int
	// RecordDualChannel turns on dual-channel recording from answer.
	RecordDualChannel bool
	// Action receives the dial result callback; verbs after Dial run when the
	// bridge fails or ends.
	Action string
}

func (Dial) isVerb() {}

type Gather struct {
	NumDigits      int
	Action         string
	Method         string
	TimeoutSeconds int
	// Prompt is spoken while gathering.
	Prompt string
}

func (Gather) isVerb() {}

type Redirect struct {
	URL string
}

func (Redirect) isVerb() {}

type Hangup struct{}

func (Hangup) isVerb() {}

type Reject struct {
	Reason string
}

func (Reject) isVerb() {}

/* ===================== XML MAPPING ===================== */

type xmlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type xmlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type xmlPlay struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

type xmlRecord struct {
	XMLName    xml.Name `xml:"Record"`
	Action     string   `xml:"action,attr,omitempty"`
	MaxLength  int      `xml:"maxLength,attr,omitempty"`
	PlayBeep   bool     `xml:"playBeep,attr"`
	Transcribe bool     `xml:"transcribe,attr,omitempty"`
}

type xmlDial struct {
	XMLName  xml.Name   `xml:"Dial"`
	CallerID string     `xml:"callerId,attr,omitempty"`
	Timeout  int        `xml:"timeout,attr,omitempty"`
	Record   string     `xml:"record,attr,omitempty"`
	Action   string     `xml:"action,attr,omitempty"`
	Number   string     `xml:"Number,omitempty"`
	Client   *xmlClient `xml:"Client,omitempty"`
}

type xmlClient struct {
	Identity string `xml:",chardata"`
}

type xmlGather struct {
	XMLName   xml.Name `xml:"Gather"`
	NumDigits int      `xml:"numDigits,attr,omitempty"`
	Action    string   `xml:"action,attr,omitempty"`
	Method    string   `xml:"method,attr,omitempty"`
	Timeout   int      `xml:"timeout,attr,omitempty"`
	Say       *xmlSay  `xml:"Say,omitempty"`
}

type xmlRedirect struct {
	XMLName xml.Name `xml:"Redirect"`
	URL     string   `xml:",chardata"`
}

type xmlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type xmlReject struct {
	XMLName xml.Name `xml:"Reject"`
	Reason  string   `xml:"reason,attr,omitempty"`
}

// RenderTwiML serializes a Script to the provider XML document.
func RenderTwiML(s Script) (string, error) {
	if s.Empty() {
		return "", errors.New("telephony: empty script")
	}

	var r xmlResponse
	for _, v := range s.Verbs {
		switch verb := v.(type) {
		case Say:
			r.Verbs = append(r.Verbs, xmlSay{Text: verb.Text, Voice: verb.Voice})
		case Play:
			r.Verbs = append(r.Verbs, xmlPlay{URL: verb.URL})
		case Record:
			r.Verbs = append(r.Verbs, xmlRecord{
				Action:     verb.Action,
				MaxLength:  verb.MaxLength,
				PlayBeep:   verb.PlayBeep,
				Transcribe: verb.Transcribe,
			})
		case Dial:
			if strings.TrimSpace(verb.Number) == "" && strings.TrimSpace(verb.Client) == "" {
				return "", errors.New("telephony: dial target required")
			}
			d := xmlDial{
				CallerID: verb.CallerID,
				Timeout:  verb.TimeoutSeconds,
				Action:   verb.Action,
				Number:   verb.Number,
			}
			if verb.Client != "" {
				d.Client = &xmlClient{Identity: verb.Client}
			}
			if verb.RecordDualChannel {
				d.Record = "record-from-answer-dual"
			}
			r.Verbs = append(r.Verbs, d)
		case Gather:
			g := xmlGather{
				NumDigits: verb.NumDigits,
				Action:    verb.Action,
				Method:    verb.Method,
				Timeout:   verb.TimeoutSeconds,
			}
			if verb.Prompt != "" {
				g.Say = &xmlSay{Text: verb.Prompt}
			}
			r.Verbs = append(r.Verbs, g)
		case Redirect:
			r.Verbs = append(r.Verbs, xmlRedirect{URL: verb.URL})
		case Hangup:
			r.Verbs = append(r.Verbs, xmlHangup{})
		case Reject:
			r.Verbs = append(r.Verbs, xmlReject{Reason: verb.Reason})
		default:
			return "", errors.New("telephony: unknown verb")
		}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

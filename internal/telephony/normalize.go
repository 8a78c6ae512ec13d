package telephony

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizeAddress canonicalizes a webhook address field.
//
// Internal client addresses (client:agent-7) pass through untouched. Phone
// numbers are normalized to E.164 so that number->org matching and lead
// lookups compare like with like. Unparseable values are kept as-is; the
// provider sometimes sends "anonymous" or empty.
func NormalizeAddress(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || strings.HasPrefix(s, ClientScheme) {
		return s
	}
	num, err := phonenumbers.Parse(s, "US")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return s
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

// IsClientAddress reports whether an address uses the internal softphone
// scheme.
func IsClientAddress(s string) bool { return strings.HasPrefix(s, ClientScheme) }

// IsPhoneAddress reports whether an address looks like an external phone
// number rather than an internal client identity.
func IsPhoneAddress(s string) bool {
	return s != "" && !strings.HasPrefix(s, ClientScheme)
}

// ClientIdentity strips the scheme from a client address.
func ClientIdentity(s string) string { return strings.TrimPrefix(s, ClientScheme) }

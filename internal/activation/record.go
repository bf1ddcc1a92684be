// Package activation holds the durable activation record and the state
// machine that gates the application on it.
package activation

import "time"

// Method identifies which mechanism produced an activation.
type Method string

const (
	// MethodLicense marks an activation from a signed vendor license.
	MethodLicense Method = "license"
	// MethodVoucher marks an activation from a checksum voucher.
	MethodVoucher Method = "voucher"
)

// Record is the only persisted activation artifact. The raw voucher or
// license text never reaches storage; only its salted hash and a masked
// four-character suffix for the administrator to recognize it by.
type Record struct {
	Method       Method     `json:"method"`
	SaltedHash   string     `json:"salted_hash"`
	ActivatedAt  time.Time  `json:"activated_at"`
	MaskedSuffix string     `json:"masked_suffix"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// State is derived from the record and the clock on every query, never
// stored.
type State string

const (
	// StateUnactivated is the initial state and the result of deactivation.
	StateUnactivated State = "unactivated"
	// StateActive means a valid activation record is present and unexpired.
	StateActive State = "active"
	// StateExpired means a license-method record ran past its expiry.
	StateExpired State = "expired"
)

// Status is the snapshot returned to the UI collaborator.
type Status struct {
	State        State      `json:"state"`
	Method       Method     `json:"method,omitempty"`
	MaskedSuffix string     `json:"masked_suffix,omitempty"`
	ActivatedAt  *time.Time `json:"activated_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Package errors defines the activation error kinds and their HTTP
// representation. Every activation attempt resolves either to success or to
// exactly one of the sentinel errors below; nothing is swallowed on the way
// to the UI.
package errors

import (
	"errors"
	"net/http"
)

// Sentinel errors for the activation engine. Callers match these with
// errors.Is; wrapped variants carry additional context.
var (
	// ErrInvalidFormat reports malformed or garbled voucher/license text.
	ErrInvalidFormat = errors.New("invalid activation code format")

	// ErrChecksumMismatch reports a voucher whose check character does not
	// match its payload.
	ErrChecksumMismatch = errors.New("voucher checksum mismatch")

	// ErrSignatureInvalid reports a license whose MAC does not verify.
	ErrSignatureInvalid = errors.New("license signature invalid")

	// ErrFingerprintMismatch reports a license bound to a different device.
	ErrFingerprintMismatch = errors.New("license fingerprint mismatch")

	// ErrExpired reports a license whose expiry has passed.
	ErrExpired = errors.New("license expired")

	// ErrStoreIO reports a persistence failure. It is distinct from "no
	// record" so a storage fault is never mistaken for "never activated".
	ErrStoreIO = errors.New("activation store I/O failure")

	// ErrNotActivated reports that no activation record exists. Used by the
	// gate middleware, never by the activation calls themselves.
	ErrNotActivated = errors.New("not activated")
)

// Kind returns the stable machine-readable code for an activation error.
// Unknown errors map to "internal".
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidFormat):
		return "invalid_format"
	case errors.Is(err, ErrChecksumMismatch):
		return "checksum_mismatch"
	case errors.Is(err, ErrSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, ErrFingerprintMismatch):
		return "fingerprint_mismatch"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrStoreIO):
		return "store_io"
	case errors.Is(err, ErrNotActivated):
		return "not_activated"
	default:
		return "internal"
	}
}

// StatusCode maps an activation error to the HTTP status the transport layer
// should respond with.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidFormat),
		errors.Is(err, ErrChecksumMismatch):
		return http.StatusBadRequest
	case errors.Is(err, ErrSignatureInvalid),
		errors.Is(err, ErrFingerprintMismatch),
		errors.Is(err, ErrExpired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotActivated):
		return http.StatusForbidden
	case errors.Is(err, ErrStoreIO):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Package license issues and validates signed offline license blobs.
//
// A blob is BRT1-<base64url(payload)>.<base64url(signature)> where payload is
// compact JSON and signature is HMAC-SHA256 over the payload bytes with a
// shared vendor secret. The same secret ships in the issuing tool and every
// deployed client; its confidentiality is a deployment responsibility, not a
// cryptographic guarantee. This deters casual copying between cafés, it is
// not DRM against someone willing to pull the secret out of the binary.
package license

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "beirutpos/internal/errors"
)

// Prefix marks the blob format version.
const Prefix = "BRT1"

// EmbeddedSecret is the built-in vendor signing secret. Deployments may
// override it through configuration; the issuing tool and the client must
// agree on the value in use.
const EmbeddedSecret = "BeirutPOS-license-seed-2024"

// Payload is the signed content of a license. Field order is fixed so the
// serialized form, and therefore the signature, is reproducible.
type Payload struct {
	Holder      string     `json:"holder"`
	Fingerprint string     `json:"fingerprint"`
	IssuedAt    time.Time  `json:"issued"`
	ExpiresAt   *time.Time `json:"expires,omitempty"`
}

// Expired reports whether the payload's expiry, if any, has passed at the
// given instant.
func (p *Payload) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && p.ExpiresAt.Before(now)
}

// Issue creates a signed license blob for one device. Vendor-side only: the
// deployed client never calls this with anything but test fixtures.
func Issue(holder, fingerprint string, issuedAt time.Time, expiresAt *time.Time, secret []byte) (string, error) {
	if holder == "" {
		return "", fmt.Errorf("%w: holder must not be empty", apperrors.ErrInvalidFormat)
	}
	if fingerprint == "" {
		return "", fmt.Errorf("%w: fingerprint must not be empty", apperrors.ErrInvalidFormat)
	}
	if len(secret) == 0 {
		return "", fmt.Errorf("%w: signing secret must not be empty", apperrors.ErrInvalidFormat)
	}

	payload := Payload{
		Holder:      holder,
		Fingerprint: fingerprint,
		IssuedAt:    issuedAt.UTC(),
	}
	if expiresAt != nil {
		utc := expiresAt.UTC()
		payload.ExpiresAt = &utc
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("serializing license payload: %w", err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payloadBytes)
	signature := mac.Sum(nil)

	encode := base64.RawURLEncoding.EncodeToString
	return fmt.Sprintf("%s-%s.%s", Prefix, encode(payloadBytes), encode(signature)), nil
}

// Validate decodes and verifies a license blob against the locally derived
// fingerprint and the current time. The three checks are independent and
// reported distinctly: errors.ErrSignatureInvalid, errors.ErrFingerprintMismatch
// and errors.ErrExpired, with errors.ErrInvalidFormat for blobs that do not
// decode at all.
func Validate(blob, localFingerprint string, secret []byte, now time.Time) (*Payload, error) {
	payloadBytes, signature, err := decode(blob)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payloadBytes)
	expected := mac.Sum(nil)
	if !hmac.Equal(signature, expected) {
		return nil, apperrors.ErrSignatureInvalid
	}

	var payload Payload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, fmt.Errorf("%w: undecodable payload", apperrors.ErrInvalidFormat)
	}

	if payload.Fingerprint != localFingerprint {
		return nil, apperrors.ErrFingerprintMismatch
	}

	if payload.Expired(now) {
		return nil, fmt.Errorf("%w on %s", apperrors.ErrExpired, payload.ExpiresAt.Format("2006-01-02"))
	}

	return &payload, nil
}

// decode splits a blob into payload and signature bytes. Whitespace anywhere
// in the blob is tolerated so copy-paste from printed or emailed material
// survives line wrapping.
func decode(blob string) (payloadBytes, signature []byte, err error) {
	cleaned := strings.Join(strings.Fields(blob), "")
	if cleaned == "" {
		return nil, nil, fmt.Errorf("%w: empty license", apperrors.ErrInvalidFormat)
	}

	body, ok := strings.CutPrefix(cleaned, Prefix+"-")
	if !ok {
		return nil, nil, fmt.Errorf("%w: missing %s prefix", apperrors.ErrInvalidFormat, Prefix)
	}

	payloadPart, signaturePart, ok := strings.Cut(body, ".")
	if !ok {
		return nil, nil, fmt.Errorf("%w: missing signature separator", apperrors.ErrInvalidFormat)
	}

	decodePart := func(part string) ([]byte, error) {
		// Tolerate padded variants of the otherwise unpadded encoding.
		return base64.RawURLEncoding.DecodeString(strings.TrimRight(part, "="))
	}

	payloadBytes, err = decodePart(payloadPart)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: undecodable payload encoding", apperrors.ErrInvalidFormat)
	}
	signature, err = decodePart(signaturePart)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: undecodable signature encoding", apperrors.ErrInvalidFormat)
	}
	return payloadBytes, signature, nil
}

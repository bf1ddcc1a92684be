// Package voucher generates and validates offline activation vouchers.
//
// A voucher is twelve symbols drawn from a base-36 alphabet plus one check
// character computed with a Luhn mod N scheme, printed as
// BEIRUT-XXXX-XXXX-XXXX-C. Validation is a pure function of the string: any
// code whose checksum is internally consistent is accepted. The guarantee is
// "this code was generated with knowledge of the checksum algorithm", not
// "this specific code was never used before" — an offline deployment has no
// registry to consult, so single-use is enforced at distribution time, not
// here.
package voucher

import (
	"fmt"
	"io"
	"strings"

	apperrors "beirutpos/internal/errors"
)

const (
	// Alphabet is the symbol set vouchers are drawn from.
	Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// Prefix identifies a voucher batch family on printed cards.
	Prefix = "BEIRUT"

	// PayloadLen is the number of random symbols, three printed blocks of four.
	PayloadLen = 12

	groupLen = 4
)

// normalizedLen is the canonical length: prefix + payload + check character.
const normalizedLen = len(Prefix) + PayloadLen + 1

// Generate draws a fresh voucher from the given randomness source and returns
// it in display form (hyphen-separated groups).
func Generate(random io.Reader) (string, error) {
	payload, err := randomPayload(random)
	if err != nil {
		return "", err
	}
	check, err := Checksum(payload)
	if err != nil {
		return "", err
	}
	return format(payload, check), nil
}

// GenerateBatch draws n distinct vouchers. Used by vendor tooling to produce
// pre-printed batches.
func GenerateBatch(random io.Reader, n int) ([]string, error) {
	seen := make(map[string]struct{}, n)
	codes := make([]string, 0, n)
	for len(codes) < n {
		code, err := Generate(random)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// Validate checks a voucher string. Input is untrusted: hyphens, whitespace
// and letter case are normalized away before checking. Returns
// errors.ErrInvalidFormat for wrong length, prefix or alphabet, and
// errors.ErrChecksumMismatch when the check character does not match.
func Validate(text string) error {
	normalized, err := Normalize(text)
	if err != nil {
		return err
	}

	payload := normalized[len(Prefix) : len(Prefix)+PayloadLen]
	check := normalized[len(Prefix)+PayloadLen:]

	expected, err := Checksum(payload)
	if err != nil {
		return err
	}
	if expected != check {
		return fmt.Errorf("%w: expected check character %q", apperrors.ErrChecksumMismatch, expected)
	}
	return nil
}

// Normalize returns the canonical uppercase form without separators, the form
// vouchers are hashed in. Errors with errors.ErrInvalidFormat when the input
// cannot be a voucher.
func Normalize(text string) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToUpper(text) {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		} else if r == '-' || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		} else {
			return "", fmt.Errorf("%w: unexpected character %q", apperrors.ErrInvalidFormat, r)
		}
	}

	normalized := b.String()
	if len(normalized) != normalizedLen {
		return "", fmt.Errorf("%w: expected %d symbols, got %d", apperrors.ErrInvalidFormat, normalizedLen, len(normalized))
	}
	if !strings.HasPrefix(normalized, Prefix) {
		return "", fmt.Errorf("%w: missing %s prefix", apperrors.ErrInvalidFormat, Prefix)
	}
	return normalized, nil
}

// Format re-groups a voucher for display: PREFIX-XXXX-XXXX-XXXX-C. Invalid
// input is returned trimmed and uppercased as-is.
func Format(text string) string {
	normalized, err := Normalize(text)
	if err != nil {
		return strings.ToUpper(strings.TrimSpace(text))
	}
	payload := normalized[len(Prefix) : len(Prefix)+PayloadLen]
	check := normalized[len(Prefix)+PayloadLen:]
	return format(payload, check)
}

// Checksum computes the Luhn mod N check character over a payload. Walking
// from the rightmost symbol, the weighting factor alternates 2 and 1; each
// weighted value contributes its base-36 digit sum.
func Checksum(payload string) (string, error) {
	n := len(Alphabet)
	factor := 2
	total := 0

	for i := len(payload) - 1; i >= 0; i-- {
		codePoint := strings.IndexByte(Alphabet, payload[i])
		if codePoint < 0 {
			return "", fmt.Errorf("%w: symbol %q outside voucher alphabet", apperrors.ErrInvalidFormat, payload[i])
		}
		addend := factor * codePoint
		addend = (addend / n) + (addend % n)
		total += addend
		if factor == 2 {
			factor = 1
		} else {
			factor = 2
		}
	}

	checkCode := (n - total%n) % n
	return string(Alphabet[checkCode]), nil
}

func randomPayload(random io.Reader) (string, error) {
	// Rejection sampling over single bytes keeps draws uniform across the
	// 36-symbol alphabet.
	limit := byte(256 - 256%len(Alphabet)) // 252
	buf := make([]byte, 1)
	var b strings.Builder
	for b.Len() < PayloadLen {
		if _, err := io.ReadFull(random, buf); err != nil {
			return "", fmt.Errorf("reading randomness: %w", err)
		}
		if buf[0] >= limit {
			continue
		}
		b.WriteByte(Alphabet[int(buf[0])%len(Alphabet)])
	}
	return b.String(), nil
}

func format(payload, check string) string {
	groups := make([]string, 0, 2+PayloadLen/groupLen)
	groups = append(groups, Prefix)
	for i := 0; i < PayloadLen; i += groupLen {
		groups = append(groups, payload[i:i+groupLen])
	}
	groups = append(groups, check)
	return strings.Join(groups, "-")
}

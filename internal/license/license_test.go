package license

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "beirutpos/internal/errors"
)

var (
	testSecret  = []byte("unit-test-secret")
	otherSecret = []byte("a-different-secret")
	testIssued  = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func TestIssueValidateRoundTrip(t *testing.T) {
	blob, err := Issue("Café Fairuz", "fp-123", testIssued, nil, testSecret)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(blob, Prefix+"-"))
	assert.Contains(t, blob, ".")

	payload, err := Validate(blob, "fp-123", testSecret, testIssued.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "Café Fairuz", payload.Holder)
	assert.Equal(t, "fp-123", payload.Fingerprint)
	assert.True(t, payload.IssuedAt.Equal(testIssued))
	assert.Nil(t, payload.ExpiresAt)
}

func TestIssueDeterministic(t *testing.T) {
	first, err := Issue("Café Fairuz", "fp-123", testIssued, nil, testSecret)
	require.NoError(t, err)
	second, err := Issue("Café Fairuz", "fp-123", testIssued, nil, testSecret)
	require.NoError(t, err)
	assert.Equal(t, first, second, "identical inputs must sign identically")
}

func TestValidateFingerprintMismatch(t *testing.T) {
	blob, err := Issue("Café Fairuz", "fp-123", testIssued, nil, testSecret)
	require.NoError(t, err)

	_, err = Validate(blob, "fp-456", testSecret, testIssued)
	assert.ErrorIs(t, err, apperrors.ErrFingerprintMismatch)
}

func TestValidateWrongSecret(t *testing.T) {
	blob, err := Issue("Café Fairuz", "fp-123", testIssued, nil, testSecret)
	require.NoError(t, err)

	_, err = Validate(blob, "fp-123", otherSecret, testIssued)
	assert.ErrorIs(t, err, apperrors.ErrSignatureInvalid)
}

func TestValidateTamperedPayload(t *testing.T) {
	blob, err := Issue("Café Fairuz", "fp-123", testIssued, nil, testSecret)
	require.NoError(t, err)

	// Flip one character inside the encoded payload.
	body := strings.TrimPrefix(blob, Prefix+"-")
	idx := len(Prefix) + 1 + len(body)/4
	var mutated byte = 'A'
	if blob[idx] == 'A' {
		mutated = 'B'
	}
	tampered := blob[:idx] + string(mutated) + blob[idx+1:]

	_, err = Validate(tampered, "fp-123", testSecret, testIssued)
	require.Error(t, err)
	// Either the encoding breaks or the MAC no longer verifies; both must be
	// rejected, never accepted.
	assert.Contains(t, []string{"invalid_format", "signature_invalid"}, apperrors.Kind(err))
}

func TestValidateExpiry(t *testing.T) {
	expires := testIssued.Add(48 * time.Hour)
	blob, err := Issue("Café Fairuz", "fp-123", testIssued, &expires, testSecret)
	require.NoError(t, err)

	// Day 1: still valid.
	payload, err := Validate(blob, "fp-123", testSecret, testIssued.Add(24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, payload.ExpiresAt)
	assert.True(t, payload.ExpiresAt.Equal(expires))

	// Day 3: expired, and reported as such rather than as a bad signature.
	_, err = Validate(blob, "fp-123", testSecret, testIssued.Add(72*time.Hour))
	assert.ErrorIs(t, err, apperrors.ErrExpired)
}

func TestValidateExpiryBoundary(t *testing.T) {
	expires := testIssued.Add(time.Second)
	blob, err := Issue("Café Fairuz", "fp-123", testIssued, &expires, testSecret)
	require.NoError(t, err)

	_, err = Validate(blob, "fp-123", testSecret, testIssued)
	assert.NoError(t, err, "valid immediately after issuance")

	_, err = Validate(blob, "fp-123", testSecret, testIssued.Add(2*time.Second))
	assert.ErrorIs(t, err, apperrors.ErrExpired)
}

func TestValidateChecksAreIndependent(t *testing.T) {
	// A license for another device that is also expired must report the
	// fingerprint mismatch, not the expiry: the signature and binding are
	// checked before the clock.
	expires := testIssued.Add(time.Hour)
	blob, err := Issue("Café Fairuz", "fp-123", testIssued, &expires, testSecret)
	require.NoError(t, err)

	_, err = Validate(blob, "fp-456", testSecret, testIssued.Add(48*time.Hour))
	assert.ErrorIs(t, err, apperrors.ErrFingerprintMismatch)
}

func TestValidateWhitespaceTolerance(t *testing.T) {
	blob, err := Issue("Café Fairuz", "fp-123", testIssued, nil, testSecret)
	require.NoError(t, err)

	// Simulate a line-wrapped paste from an email.
	mid := len(blob) / 2
	wrapped := "  " + blob[:mid] + "\n" + blob[mid:] + "\t\n"

	_, err = Validate(wrapped, "fp-123", testSecret, testIssued)
	assert.NoError(t, err)
}

func TestValidateMalformedBlobs(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{"empty", ""},
		{"whitespace only", "  \n\t "},
		{"wrong prefix", "XYZ9-abc.def"},
		{"no signature separator", Prefix + "-abcdef"},
		{"bad payload encoding", Prefix + "-%%%.abc"},
		{"bad signature encoding", Prefix + "-YWJj.%%%"},
		{"prose", "please activate my till"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.blob, "fp-123", testSecret, testIssued)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidFormat)
		})
	}
}

func TestIssueRejectsEmptyInputs(t *testing.T) {
	_, err := Issue("", "fp-123", testIssued, nil, testSecret)
	assert.ErrorIs(t, err, apperrors.ErrInvalidFormat)

	_, err = Issue("Café Fairuz", "", testIssued, nil, testSecret)
	assert.ErrorIs(t, err, apperrors.ErrInvalidFormat)

	_, err = Issue("Café Fairuz", "fp-123", testIssued, nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidFormat)
}

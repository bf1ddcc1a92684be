package fingerprint

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedSource(c Components) func() Components {
	return func() Components { return c }
}

func testLogger() *slog.Logger {
	return slog.Default()
}

func TestDeriveDeterministic(t *testing.T) {
	c := Components{Hostname: "till-01", OS: "linux", Arch: "amd64", MAC: "aa:bb:cc:dd:ee:ff"}
	d := NewWithSource(fixedSource(c), testLogger())

	first := d.Derive()
	require.Len(t, first, 64, "fingerprint should be hex SHA-256")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, d.Derive())
	}

	// A second deriver over the same environment agrees.
	other := NewWithSource(fixedSource(c), testLogger())
	assert.Equal(t, first, other.Derive())
}

func TestDeriveChangesWithAnyAttribute(t *testing.T) {
	base := Components{Hostname: "till-01", OS: "linux", Arch: "amd64", MAC: "aa:bb:cc:dd:ee:ff"}
	baseFP := NewWithSource(fixedSource(base), testLogger()).Derive()

	variants := map[string]Components{
		"hostname": {Hostname: "till-02", OS: "linux", Arch: "amd64", MAC: "aa:bb:cc:dd:ee:ff"},
		"os":       {Hostname: "till-01", OS: "windows", Arch: "amd64", MAC: "aa:bb:cc:dd:ee:ff"},
		"arch":     {Hostname: "till-01", OS: "linux", Arch: "arm64", MAC: "aa:bb:cc:dd:ee:ff"},
		"mac":      {Hostname: "till-01", OS: "linux", Arch: "amd64", MAC: "11:22:33:44:55:66"},
	}

	for name, c := range variants {
		t.Run(name, func(t *testing.T) {
			fp := NewWithSource(fixedSource(c), testLogger()).Derive()
			assert.NotEqual(t, baseFP, fp, "changing %s must change the fingerprint", name)
		})
	}
}

func TestDeriveCaseInsensitiveComponents(t *testing.T) {
	lower := Components{Hostname: "till-01", OS: "linux", Arch: "amd64", MAC: "aa:bb:cc:dd:ee:ff"}
	upper := Components{Hostname: "TILL-01", OS: "LINUX", Arch: "AMD64", MAC: "AA:BB:CC:DD:EE:FF"}

	fpLower := NewWithSource(fixedSource(lower), testLogger()).Derive()
	fpUpper := NewWithSource(fixedSource(upper), testLogger()).Derive()
	assert.Equal(t, fpLower, fpUpper)
}

func TestDeriveWithPlaceholders(t *testing.T) {
	c := Components{Hostname: UnknownHost, OS: "linux", Arch: "amd64", MAC: UnknownMAC}
	d := NewWithSource(fixedSource(c), testLogger())

	fp := d.Derive()
	require.Len(t, fp, 64)
	assert.Equal(t, fp, d.Derive(), "degraded fingerprint is still deterministic")
}

func TestDeriveFromRealHostNeverEmpty(t *testing.T) {
	d := New(testLogger())
	fp := d.Derive()
	require.Len(t, fp, 64)

	c := d.Components()
	assert.NotEmpty(t, c.OS)
	assert.NotEmpty(t, c.Arch)
}

// Package fingerprint derives a stable device identifier from local machine
// attributes. Licenses are bound to this identifier; it must stay constant
// for unchanged hardware/OS identity and change when any constituent
// attribute changes.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net"
	"os"
	"runtime"
	"strings"
	"sync"
)

// Placeholders substituted for attributes that cannot be read. A degraded
// fingerprint is preferable to a failed one, so derivation never errors.
const (
	UnknownHost = "unknown-host"
	UnknownMAC  = "unknown-mac"
)

// Components are the raw attributes a fingerprint is derived from.
type Components struct {
	Hostname string `json:"hostname"`
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	MAC      string `json:"mac_address"`
}

// Deriver computes and caches the device fingerprint. The zero source reads
// the real host environment; tests inject a fixed source.
type Deriver struct {
	source func() Components
	logger *slog.Logger

	mu     sync.RWMutex
	cached string
}

// New creates a Deriver backed by the real host environment.
func New(logger *slog.Logger) *Deriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deriver{
		source: func() Components { return hostComponents(logger) },
		logger: logger,
	}
}

// NewWithSource creates a Deriver with a custom attribute source.
func NewWithSource(source func() Components, logger *slog.Logger) *Deriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deriver{source: source, logger: logger}
}

// Derive returns the device fingerprint: the hex SHA-256 of the lowercased,
// pipe-joined components. Deterministic and side-effect-free; the result is
// cached for the process lifetime.
func (d *Deriver) Derive() string {
	d.mu.RLock()
	if d.cached != "" {
		fp := d.cached
		d.mu.RUnlock()
		return fp
	}
	d.mu.RUnlock()

	c := d.source()
	raw := strings.ToLower(strings.Join([]string{c.Hostname, c.OS, c.Arch, c.MAC}, "|"))
	sum := sha256.Sum256([]byte(raw))
	fp := hex.EncodeToString(sum[:])

	d.mu.Lock()
	d.cached = fp
	d.mu.Unlock()

	d.logger.Debug("device fingerprint derived",
		slog.String("hostname", c.Hostname),
		slog.String("os", c.OS),
		slog.String("arch", c.Arch),
		slog.String("mac", c.MAC),
	)
	return fp
}

// Components returns the raw attributes for diagnostics. Unlike Derive, the
// result is not cached.
func (d *Deriver) Components() Components {
	return d.source()
}

// hostComponents reads the machine attributes, substituting placeholders for
// anything that cannot be determined.
func hostComponents(logger *slog.Logger) Components {
	hostname, err := os.Hostname()
	if err != nil || strings.TrimSpace(hostname) == "" {
		logger.Warn("hostname unavailable, using placeholder",
			slog.Any("error", err))
		hostname = UnknownHost
	}
	hostname = strings.ToLower(strings.TrimSpace(hostname))

	mac, err := primaryMAC()
	if err != nil {
		logger.Warn("MAC address unavailable, using placeholder",
			slog.String("error", err.Error()))
		mac = UnknownMAC
	}

	return Components{
		Hostname: hostname,
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		MAC:      mac,
	}
}

// primaryMAC returns the hardware address of the first up, non-loopback
// interface, falling back to any interface that carries one.
func primaryMAC() (string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if mac := iface.HardwareAddr.String(); mac != "" && mac != "00:00:00:00:00:00" {
			return mac, nil
		}
	}

	for _, iface := range interfaces {
		if mac := iface.HardwareAddr.String(); mac != "" && mac != "00:00:00:00:00:00" {
			return mac, nil
		}
	}

	return "", errNoMAC
}

var errNoMAC = &net.AddrError{Err: "no interface with a hardware address", Addr: ""}

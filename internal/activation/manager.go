package activation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	apperrors "beirutpos/internal/errors"
	"beirutpos/internal/fingerprint"
	"beirutpos/internal/license"
	"beirutpos/internal/voucher"
)

const suffixLen = 4

// Publisher receives a status snapshot after every successful activation or
// deactivation, so open UI surfaces can refresh without polling.
type Publisher interface {
	PublishActivationChange(status Status)
}

// Manager is the activation state machine. It orchestrates the voucher and
// license codecs against the store; it holds no activation state in memory,
// so every status query reflects the record and the clock at that moment.
type Manager struct {
	store     *Store
	deriver   *fingerprint.Deriver
	secret    []byte
	clock     func() time.Time
	logger    *slog.Logger
	publisher Publisher
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source, primarily for expiry tests.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithPublisher wires a publisher for activation-change events.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// NewManager creates the activation state machine.
func NewManager(store *Store, deriver *fingerprint.Deriver, secret []byte, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:   store,
		deriver: deriver,
		secret:  secret,
		clock:   time.Now,
		logger:  logger.With(slog.String("component", "activation_manager")),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Status recomputes the current activation state from the stored record and
// the clock. It never mutates the store: an expired license stays on disk
// until the administrator deactivates or re-activates.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	record, err := m.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return &Status{State: StateUnactivated}, nil
	}

	state := StateActive
	if record.Method == MethodLicense && record.ExpiresAt != nil && record.ExpiresAt.Before(m.clock()) {
		state = StateExpired
	}

	activatedAt := record.ActivatedAt
	return &Status{
		State:        state,
		Method:       record.Method,
		MaskedSuffix: record.MaskedSuffix,
		ActivatedAt:  &activatedAt,
		ExpiresAt:    record.ExpiresAt,
	}, nil
}

// ActivateWithVoucher validates a voucher and persists the activation. An
// existing record of either method is overwritten, so switching between
// voucher and license schemes needs no manual cleanup.
func (m *Manager) ActivateWithVoucher(ctx context.Context, text string) error {
	normalized, err := voucher.Normalize(text)
	if err != nil {
		m.logFailure(ctx, "voucher", err)
		return err
	}
	if err := voucher.Validate(normalized); err != nil {
		m.logFailure(ctx, "voucher", err)
		return err
	}

	hash, err := m.store.Hash(normalized)
	if err != nil {
		return err
	}

	record := &Record{
		Method:       MethodVoucher,
		SaltedHash:   hash,
		ActivatedAt:  m.clock().UTC(),
		MaskedSuffix: maskedSuffix(normalized),
	}
	if err := m.store.Save(ctx, record); err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "voucher activation succeeded",
		slog.String("suffix", record.MaskedSuffix))
	m.publish(ctx)
	return nil
}

// ActivateWithLicense validates a license blob against the locally derived
// fingerprint and persists the activation, carrying the payload's expiry
// into the record so expiration is re-evaluated on later status queries.
func (m *Manager) ActivateWithLicense(ctx context.Context, text string) error {
	localFP := m.deriver.Derive()
	payload, err := license.Validate(text, localFP, m.secret, m.clock())
	if err != nil {
		m.logFailure(ctx, "license", err)
		return err
	}

	cleaned := strings.Join(strings.Fields(text), "")
	hash, err := m.store.Hash(cleaned)
	if err != nil {
		return err
	}

	record := &Record{
		Method:       MethodLicense,
		SaltedHash:   hash,
		ActivatedAt:  m.clock().UTC(),
		MaskedSuffix: maskedSuffix(cleaned),
		ExpiresAt:    payload.ExpiresAt,
	}
	if err := m.store.Save(ctx, record); err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "license activation succeeded",
		slog.String("holder", payload.Holder),
		slog.String("suffix", record.MaskedSuffix),
		slog.Any("expires_at", payload.ExpiresAt))
	m.publish(ctx)
	return nil
}

// Deactivate clears the activation unconditionally. It is idempotent: a
// second call on an already-unactivated installation succeeds and leaves
// the state Unactivated.
func (m *Manager) Deactivate(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "installation deactivated")
	m.publish(ctx)
	return nil
}

// Fingerprint exposes the locally derived device fingerprint so the UI can
// display it for license requests.
func (m *Manager) Fingerprint() string {
	return m.deriver.Derive()
}

func (m *Manager) publish(ctx context.Context) {
	if m.publisher == nil {
		return
	}
	status, err := m.Status(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "skipping activation-change event",
			slog.String("error", err.Error()))
		return
	}
	m.publisher.PublishActivationChange(*status)
}

func (m *Manager) logFailure(ctx context.Context, method string, err error) {
	m.logger.WarnContext(ctx, "activation attempt rejected",
		slog.String("method", method),
		slog.String("error_kind", apperrors.Kind(err)),
		slog.String("error", err.Error()))
}

// maskedSuffix keeps the last four characters of the normalized input, the
// only fragment of the raw code that is ever persisted or shown again.
func maskedSuffix(normalized string) string {
	if len(normalized) <= suffixLen {
		return normalized
	}
	return normalized[len(normalized)-suffixLen:]
}

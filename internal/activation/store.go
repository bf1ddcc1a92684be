package activation

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	apperrors "beirutpos/internal/errors"
)

const (
	saltSize        = 16
	hashIterations  = 16384
	hashKeyLen      = 32
	recordFilePerms = 0o600
)

// legacyKeys are the activation-related settings a pre-engine release wrote.
// Their presence without the new record shape triggers a one-time purge.
var legacyKeys = []string{
	"license_key",
	"license_holder",
	"license_validated_at",
	"voucher_activated",
	"voucher_hash",
	"voucher_activated_at",
}

// Store persists the single activation record as a small JSON file. Writes
// go through a temp file and rename so a crash mid-write never leaves a
// half-written record observable.
type Store struct {
	path     string
	saltPath string
	logger   *slog.Logger

	mu   sync.Mutex
	salt []byte
}

// NewStore creates a store over the given record and salt file paths.
func NewStore(recordPath, saltPath string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:     recordPath,
		saltPath: saltPath,
		logger:   logger.With(slog.String("component", "activation_store")),
	}
}

// Load reads the persisted record. Absence is not an error and yields
// (nil, nil). Legacy fingerprint-license data from a previous release is
// purged on first sight and reported as absent, forcing a clean
// re-activation instead of a guess at old semantics. Any other read or
// parse failure surfaces as errors.ErrStoreIO.
func (s *Store) Load(ctx context.Context) (*Record, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", apperrors.ErrStoreIO, s.path, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", apperrors.ErrStoreIO, s.path, err)
	}

	if _, ok := fields["method"]; !ok {
		if hasLegacyFields(fields) {
			s.logger.InfoContext(ctx, "purging legacy activation data",
				slog.String("path", s.path))
			if err := s.Clear(ctx); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return nil, fmt.Errorf("%w: unrecognized record shape in %s", apperrors.ErrStoreIO, s.path)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: decoding record: %v", apperrors.ErrStoreIO, err)
	}
	if record.Method != MethodLicense && record.Method != MethodVoucher {
		return nil, fmt.Errorf("%w: unknown activation method %q", apperrors.ErrStoreIO, record.Method)
	}
	return &record, nil
}

// Save atomically replaces the current record.
func (s *Store) Save(ctx context.Context, record *Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding record: %v", apperrors.ErrStoreIO, err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: creating data directory: %v", apperrors.ErrStoreIO, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, recordFilePerms); err != nil {
		return fmt.Errorf("%w: writing %s: %v", apperrors.ErrStoreIO, tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: replacing %s: %v", apperrors.ErrStoreIO, s.path, err)
	}

	s.logger.InfoContext(ctx, "activation record saved",
		slog.String("method", string(record.Method)),
		slog.String("suffix", record.MaskedSuffix))
	return nil
}

// Clear removes the record. A record that is already absent is success.
func (s *Store) Clear(ctx context.Context) error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: removing %s: %v", apperrors.ErrStoreIO, s.path, err)
	}
	if err == nil {
		s.logger.InfoContext(ctx, "activation record cleared",
			slog.String("path", s.path))
	}
	return nil
}

// Hash salts and hashes raw voucher/license text for persistence. The salt
// is generated once per installation and kept beside the record, so hashes
// from different installations of the same code differ.
func (s *Store) Hash(raw string) (string, error) {
	salt, err := s.loadOrCreateSalt()
	if err != nil {
		return "", err
	}
	key := pbkdf2.Key([]byte(raw), salt, hashIterations, hashKeyLen, sha256.New)
	return hex.EncodeToString(key), nil
}

func (s *Store) loadOrCreateSalt() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.salt != nil {
		return s.salt, nil
	}

	data, err := os.ReadFile(s.saltPath)
	if err == nil {
		salt, decodeErr := hex.DecodeString(string(data))
		if decodeErr != nil || len(salt) != saltSize {
			return nil, fmt.Errorf("%w: corrupt salt file %s", apperrors.ErrStoreIO, s.saltPath)
		}
		s.salt = salt
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: reading salt: %v", apperrors.ErrStoreIO, err)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("%w: generating salt: %v", apperrors.ErrStoreIO, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.saltPath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating data directory: %v", apperrors.ErrStoreIO, err)
	}
	if err := os.WriteFile(s.saltPath, []byte(hex.EncodeToString(salt)), recordFilePerms); err != nil {
		return nil, fmt.Errorf("%w: writing salt: %v", apperrors.ErrStoreIO, err)
	}
	s.salt = salt
	return salt, nil
}

func hasLegacyFields(fields map[string]json.RawMessage) bool {
	for _, key := range legacyKeys {
		if _, ok := fields[key]; ok {
			return true
		}
	}
	return false
}

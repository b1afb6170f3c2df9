// Package pairing issues and validates short-lived pairing codes and the
// long-lived bearer tokens they unlock.
//
// A pairing code is a 6-digit numeric string displayed on this device (or
// embedded in a QR code). It is single-use, expires five minutes after
// creation, and carries a pre-generated bearer token that only becomes valid
// for API use when the code is consumed. Tokens and the device-token map are
// persisted through the SecretStore so paired devices survive restarts;
// codes are deliberately memory-only.
package pairing

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/vitalsync/device-transfer-backend/interfaces"
)

// Secret store entry IDs for persisted pairing state.
const (
	SecretTokenSet  interfaces.SecretID = "active-tokens"
	SecretDeviceMap interfaces.SecretID = "device-tokens"
)

// CodeLifetime is how long a pairing code stays valid after creation.
const CodeLifetime = 5 * time.Minute

// tokenBytes is the entropy of a bearer token before base64url encoding.
const tokenBytes = 32

// ErrInvalidCode is returned for unknown, already-consumed and expired
// pairing codes alike, so callers cannot distinguish wrong from expired.
var ErrInvalidCode = errors.New("pairing: invalid code")

// Code is a freshly issued pairing code with its embedded bearer token. The
// token is not valid for API use until the code is consumed by ValidateCode.
type Code struct {
	Code      string    `json:"code"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type pendingCode struct {
	token     string
	expiresAt time.Time
}

// Service owns all pairing state: pending codes, the active-token set and
// the device-token map. A single mutex serializes every operation, so a
// ValidateCode and the ValidateToken that follows it are sequentially
// consistent.
type Service struct {
	store interfaces.SecretStore
	log   *slog.Logger

	mu      sync.Mutex
	codes   map[string]pendingCode
	tokens  map[string]struct{}
	devices map[string]string

	// now is replaceable in tests.
	now func() time.Time
}

// NewService creates a pairing service persisting token state through store.
// Call LoadPersistedTokens before serving requests.
func NewService(store interfaces.SecretStore, log *slog.Logger) *Service {
	return &Service{
		store:   store,
		log:     log,
		codes:   make(map[string]pendingCode),
		tokens:  make(map[string]struct{}),
		devices: make(map[string]string),
		now:     time.Now,
	}
}

// LoadPersistedTokens hydrates the in-memory token set and device map from
// the SecretStore. Absent entries mean a fresh install and are not errors.
func (s *Service) LoadPersistedTokens(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokenData, err := s.store.Load(ctx, SecretTokenSet)
	if err != nil && !errors.Is(err, interfaces.ErrSecretNotFound) {
		return fmt.Errorf("loading token set: %w", err)
	}
	if tokenData != nil {
		var tokens []string
		if err := json.Unmarshal(tokenData, &tokens); err != nil {
			return fmt.Errorf("decoding token set: %w", err)
		}
		for _, token := range tokens {
			s.tokens[token] = struct{}{}
		}
	}

	deviceData, err := s.store.Load(ctx, SecretDeviceMap)
	if err != nil && !errors.Is(err, interfaces.ErrSecretNotFound) {
		return fmt.Errorf("loading device map: %w", err)
	}
	if deviceData != nil {
		if err := json.Unmarshal(deviceData, &s.devices); err != nil {
			return fmt.Errorf("decoding device map: %w", err)
		}
	}

	s.log.Info("Hydrated pairing state", "tokens", len(s.tokens), "devices", len(s.devices))
	return nil
}

// GeneratePairingCode creates a 6-digit code with a fresh bearer token and a
// five-minute expiry. Expired codes are purged opportunistically.
func (s *Service) GeneratePairingCode(ctx context.Context) (Code, error) {
	token, err := newToken()
	if err != nil {
		return Code{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	var code string
	for {
		code, err = newCode()
		if err != nil {
			return Code{}, err
		}
		if _, taken := s.codes[code]; !taken {
			break
		}
	}

	expiresAt := s.now().Add(CodeLifetime)
	s.codes[code] = pendingCode{token: token, expiresAt: expiresAt}

	s.log.Info("Issued pairing code", "expiresAt", expiresAt)
	return Code{Code: code, Token: token, ExpiresAt: expiresAt}, nil
}

// ValidateCode consumes a pairing code and activates its bearer token,
// returning the now-valid token. Unknown, consumed and expired codes all
// yield ErrInvalidCode. The activated token set is persisted before
// returning; a persistence failure is surfaced but the in-memory activation
// stands.
func (s *Service) ValidateCode(ctx context.Context, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	pending, ok := s.codes[code]
	if !ok {
		return "", ErrInvalidCode
	}

	delete(s.codes, code)
	s.tokens[pending.token] = struct{}{}

	if err := s.persistTokensLocked(ctx); err != nil {
		return pending.token, err
	}
	return pending.token, nil
}

// ValidateToken reports whether token is in the active set. The comparison
// against each stored token is constant-time.
func (s *Service) ValidateToken(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	match := 0
	for stored := range s.tokens {
		if len(stored) == len(token) {
			match |= subtle.ConstantTimeCompare([]byte(stored), []byte(token))
		}
	}
	return match == 1
}

// RegisterDevice associates deviceID with token for targeted revocation. A
// device that already holds a token gets its old token revoked first.
func (s *Service) RegisterDevice(ctx context.Context, deviceID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.devices[deviceID]; ok && old != token {
		delete(s.tokens, old)
	}
	s.devices[deviceID] = token
	return s.persistLocked(ctx)
}

// RevokeDeviceToken revokes the token registered for deviceID and removes
// the mapping. Unknown devices are a no-op.
func (s *Service) RevokeDeviceToken(ctx context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.devices[deviceID]
	if !ok {
		return nil
	}
	delete(s.devices, deviceID)
	delete(s.tokens, token)

	s.log.Info("Revoked device token", "deviceID", deviceID)
	return s.persistLocked(ctx)
}

// RevokeToken removes token from the active set and drops any device
// mappings pointing at it.
func (s *Service) RevokeToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, token)
	for deviceID, mapped := range s.devices {
		if mapped == token {
			delete(s.devices, deviceID)
		}
	}
	return s.persistLocked(ctx)
}

// RevokeAll clears every token, device mapping and pending code.
func (s *Service) RevokeAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = make(map[string]struct{})
	s.devices = make(map[string]string)
	s.codes = make(map[string]pendingCode)

	s.log.Info("Revoked all tokens and pending codes")
	return s.persistLocked(ctx)
}

// ActiveCodeCount returns the number of unexpired pending codes after an
// expiry sweep.
func (s *Service) ActiveCodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.codes)
}

// ValidTokenCount returns the number of active bearer tokens.
func (s *Service) ValidTokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// sweepLocked drops expired codes. Callers must hold s.mu.
func (s *Service) sweepLocked() {
	now := s.now()
	for code, pending := range s.codes {
		if now.After(pending.expiresAt) {
			delete(s.codes, code)
		}
	}
}

// persistTokensLocked writes the token set. Callers must hold s.mu.
func (s *Service) persistTokensLocked(ctx context.Context) error {
	tokens := make([]string, 0, len(s.tokens))
	for token := range s.tokens {
		tokens = append(tokens, token)
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("encoding token set: %w", err)
	}
	if err := s.store.Save(ctx, SecretTokenSet, data); err != nil {
		return fmt.Errorf("persisting token set: %w", err)
	}
	return nil
}

// persistLocked writes both the token set and the device map. Callers must
// hold s.mu. In-memory state has already been mutated by the time this runs,
// so a failure here never resurrects a revoked token.
func (s *Service) persistLocked(ctx context.Context) error {
	if err := s.persistTokensLocked(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(s.devices)
	if err != nil {
		return fmt.Errorf("encoding device map: %w", err)
	}
	if err := s.store.Save(ctx, SecretDeviceMap, data); err != nil {
		return fmt.Errorf("persisting device map: %w", err)
	}
	return nil
}

// newToken draws a fresh 32-byte bearer token, base64url without padding.
func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading token randomness: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// newCode draws a uniform 6-digit numeric code, zero-padded.
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("reading code randomness: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

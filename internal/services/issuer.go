package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tokengate/tokengate/internal/models"
)

const (
	// secretPrefix identifies tokengate credentials in logs and configs.
	secretPrefix = "ut_"
	// secretBytes gives 256 bits of entropy per secret.
	secretBytes = 32
	// createRetries bounds duplicate-secret retries. With 256-bit
	// secrets a single retry is already astronomically unlikely.
	createRetries = 5
)

// IssuerService mints token secrets and computes expiry instants.
type IssuerService struct {
	store *TokenStore
}

func NewIssuerService(store *TokenStore) *IssuerService {
	return &IssuerService{store: store}
}

// GenerateSecret returns a new cryptographically random bearer secret.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return secretPrefix + hex.EncodeToString(buf), nil
}

// ComputeExpiry maps an expiry class to a concrete instant relative to
// now. "month" is a fixed 30 days rather than a calendar month, for
// determinism. "never" yields nil.
func ComputeExpiry(expiresType string, now time.Time) (*time.Time, error) {
	var d time.Duration
	switch expiresType {
	case models.ExpiresDay:
		d = 24 * time.Hour
	case models.ExpiresWeek:
		d = 7 * 24 * time.Hour
	case models.ExpiresMonth:
		d = 30 * 24 * time.Hour
	case models.ExpiresNever:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown expires_type %q", ErrInvalidInput, expiresType)
	}
	at := now.Add(d)
	return &at, nil
}

// CreateTokenParams carries the operator-supplied fields for a new token.
type CreateTokenParams struct {
	Username    string
	Description string
	ExpiresType string
	MaxIPs      int
	CurfewStart *string
	CurfewEnd   *string
}

func (p *CreateTokenParams) validate() error {
	if p.Username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if !models.ValidExpiresType(p.ExpiresType) {
		return fmt.Errorf("%w: unknown expires_type %q", ErrInvalidInput, p.ExpiresType)
	}
	if p.MaxIPs < 0 {
		return fmt.Errorf("%w: max_ips must not be negative", ErrInvalidInput)
	}
	return ValidateCurfewPair(p.CurfewStart, p.CurfewEnd)
}

// ValidateCurfewPair enforces the both-or-neither rule for the blackout
// window and checks the HH:MM format.
func ValidateCurfewPair(start, end *string) error {
	if (start == nil) != (end == nil) {
		return fmt.Errorf("%w: curfew_start and curfew_end must be set together", ErrInvalidInput)
	}
	if start == nil {
		return nil
	}
	if !models.ValidHHMM(*start) {
		return fmt.Errorf("%w: curfew_start %q is not a valid HH:MM time", ErrInvalidInput, *start)
	}
	if !models.ValidHHMM(*end) {
		return fmt.Errorf("%w: curfew_end %q is not a valid HH:MM time", ErrInvalidInput, *end)
	}
	return nil
}

// Create validates params, mints a secret and writes the record.
// Duplicate secrets are retried internally and never surface.
func (s *IssuerService) Create(p *CreateTokenParams, now time.Time) (*models.UserToken, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	expiresAt, err := ComputeExpiry(p.ExpiresType, now)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < createRetries; attempt++ {
		secret, err := GenerateSecret()
		if err != nil {
			return nil, err
		}

		t := &models.UserToken{
			ID:            uuid.NewString(),
			Secret:        secret,
			OwnerUsername: p.Username,
			Description:   p.Description,
			Enabled:       true,
			ExpiresType:   p.ExpiresType,
			ExpiresAt:     expiresAt,
			MaxIPs:        p.MaxIPs,
			CurfewStart:   p.CurfewStart,
			CurfewEnd:     p.CurfewEnd,
		}

		switch err := s.store.Create(t); err {
		case nil:
			return s.store.GetByID(t.ID)
		case ErrDuplicateSecret:
			continue
		default:
			return nil, err
		}
	}
	return nil, ErrDuplicateSecret
}

// Renew recomputes the expiry from now using the given class. Usage
// counters, the seen-IP set and the secret itself are untouched.
func (s *IssuerService) Renew(id, expiresType string, now time.Time) (*models.UserToken, error) {
	if !models.ValidExpiresType(expiresType) {
		return nil, fmt.Errorf("%w: unknown expires_type %q", ErrInvalidInput, expiresType)
	}

	expiresAt, err := ComputeExpiry(expiresType, now)
	if err != nil {
		return nil, err
	}

	return s.store.Update(id, map[string]interface{}{
		"expires_type": expiresType,
		"expires_at":   expiresAt,
	})
}

package services

import (
	"errors"
	"time"

	"github.com/tokengate/tokengate/internal/models"
)

// AccessRequest is one authorization attempt against the gateway.
type AccessRequest struct {
	Secret     string
	ClientIP   string
	Now        time.Time
	TokensUsed int64
	Method     string
	Path       string
	UserAgent  string
}

// PolicyService is the per-request authorization decision point. Checks
// run in a fixed order and short-circuit on the first failure; the only
// side effects happen inside the store's atomic usage step.
type PolicyService struct {
	store *TokenStore
	audit *AccessLogService
}

func NewPolicyService(store *TokenStore, audit *AccessLogService) *PolicyService {
	return &PolicyService{store: store, audit: audit}
}

// Authorize decides allow/deny for one request and, on allow, records
// the usage atomically. The returned token carries the updated counters.
// Denials map to one of the sentinel errors in errors.go.
func (s *PolicyService) Authorize(req *AccessRequest) (*models.UserToken, error) {
	t, err := s.check(req)

	if s.audit != nil {
		entry := &models.AccessLog{
			ClientIP:   req.ClientIP,
			Method:     req.Method,
			Path:       req.Path,
			UserAgent:  req.UserAgent,
			TokensUsed: req.TokensUsed,
			CreatedAt:  req.Now,
		}
		if t != nil {
			entry.TokenID = &t.ID
		}
		if err != nil {
			entry.Blocked = true
			entry.BlockReason = DenialReason(err)
			entry.TokensUsed = 0
		}
		s.audit.Record(entry)
	}

	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *PolicyService) check(req *AccessRequest) (*models.UserToken, error) {
	t, err := s.store.GetBySecret(req.Secret)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	if !t.Enabled {
		return t, ErrTokenDisabled
	}
	if t.IsExpired(req.Now) {
		return t, ErrTokenExpired
	}
	if t.InCurfew(req.Now) {
		return t, ErrCurfewBlocked
	}

	// The atomic step. Enabled and expiry are re-verified inside the
	// store's critical section, closing the window between the reads
	// above and the counter write.
	updated, err := s.store.RecordUsage(t.ID, 1, req.TokensUsed, req.ClientIP, req.Now)
	if err != nil {
		return t, err
	}
	return updated, nil
}

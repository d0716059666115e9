package services

import (
	"errors"
	"sync"
	"time"

	"github.com/tokengate/tokengate/internal/models"
	"github.com/tokengate/tokengate/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenStore owns persistence of user tokens, their seen-IP sets and the
// per-day usage buckets. All mutations of one token are serialized by a
// per-token lock; distinct tokens proceed fully in parallel.
type TokenStore struct {
	db     *gorm.DB
	cipher *utils.SecretCipher

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewTokenStore(db *gorm.DB, cipher *utils.SecretCipher) *TokenStore {
	return &TokenStore{
		db:     db,
		cipher: cipher,
		locks:  make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing mutations of one token.
func (s *TokenStore) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *TokenStore) dropLock(id string) {
	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
}

// decorate fills the transient plaintext Secret field from SecretEnc.
func (s *TokenStore) decorate(t *models.UserToken) error {
	secret, err := s.cipher.Decrypt(t.SecretEnc)
	if err != nil {
		return err
	}
	t.Secret = secret
	return nil
}

// Create persists a new token. The caller supplies the plaintext secret
// in t.Secret; hash and ciphertext are derived here. A colliding secret
// surfaces as ErrDuplicateSecret for the issuer to retry.
func (s *TokenStore) Create(t *models.UserToken) error {
	t.SecretHash = utils.HashSecret(t.Secret)

	enc, err := s.cipher.Encrypt(t.Secret)
	if err != nil {
		return err
	}
	t.SecretEnc = enc

	if err := s.db.Create(t).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateSecret
		}
		return err
	}
	return nil
}

func (s *TokenStore) GetByID(id string) (*models.UserToken, error) {
	var t models.UserToken
	if err := s.db.First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := s.decorate(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TokenStore) GetBySecret(secret string) (*models.UserToken, error) {
	var t models.UserToken
	if err := s.db.First(&t, "secret_hash = ?", utils.HashSecret(secret)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := s.decorate(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Update applies the given column set to one token and returns the
// fresh record. UpdatedAt is bumped by gorm.
func (s *TokenStore) Update(id string, fields map[string]interface{}) (*models.UserToken, error) {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	res := s.db.Model(&models.UserToken{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetByID(id)
}

// Delete removes the token and its seen-IP rows. Returns ErrNotFound
// when nothing was deleted; the facade treats that as success.
func (s *TokenStore) Delete(id string) error {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.UserToken{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Delete(&models.TokenIP{}, "token_id = ?", id).Error
	})
	if err == nil {
		s.dropLock(id)
	}
	return err
}

// List returns all tokens, newest first.
func (s *TokenStore) List() ([]models.UserToken, error) {
	var tokens []models.UserToken
	if err := s.db.Order("created_at DESC").Find(&tokens).Error; err != nil {
		return nil, err
	}
	for i := range tokens {
		if err := s.decorate(&tokens[i]); err != nil {
			return nil, err
		}
	}
	return tokens, nil
}

// ListIPs returns the seen-IP set of one token.
func (s *TokenStore) ListIPs(id string) ([]models.TokenIP, error) {
	if _, err := s.GetByID(id); err != nil {
		return nil, err
	}
	var ips []models.TokenIP
	if err := s.db.Where("token_id = ?", id).Order("first_seen_at ASC").Find(&ips).Error; err != nil {
		return nil, err
	}
	return ips, nil
}

// RecordUsage atomically accounts one successful access: bumps the
// request and consumption counters, stamps last_used_at, admits the
// source IP into the seen set if max_ips permits, and feeds the daily
// bucket. Enabled and expiry are re-checked inside the critical section
// so a token disabled or expired mid-flight cannot record usage.
//
// The per-token lock plus the transaction make the IP capacity check
// race-free: two concurrent requests from different new IPs can never
// both claim the last free slot.
func (s *TokenStore) RecordUsage(id string, requestDelta, tokenDelta int64, sourceIP string, now time.Time) (*models.UserToken, error) {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var t models.UserToken
		if err := tx.First(&t, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if !t.Enabled {
			return ErrTokenDisabled
		}
		if t.IsExpired(now) {
			return ErrTokenExpired
		}

		if err := s.admitIP(tx, &t, sourceIP, now); err != nil {
			return err
		}

		if err := tx.Model(&models.UserToken{}).Where("id = ?", id).Updates(map[string]interface{}{
			"total_requests":    gorm.Expr("total_requests + ?", requestDelta),
			"total_tokens_used": gorm.Expr("total_tokens_used + ?", tokenDelta),
			"last_used_at":      now,
		}).Error; err != nil {
			return err
		}

		return bumpUsageDay(tx, now, requestDelta, tokenDelta)
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(id)
}

// admitIP inserts sourceIP into the token's seen set, enforcing the
// max_ips cap for IPs not seen before.
func (s *TokenStore) admitIP(tx *gorm.DB, t *models.UserToken, sourceIP string, now time.Time) error {
	var seen models.TokenIP
	err := tx.First(&seen, "token_id = ? AND ip = ?", t.ID, sourceIP).Error
	switch {
	case err == nil:
		return tx.Model(&seen).Updates(map[string]interface{}{
			"last_seen_at": now,
			"requests":     gorm.Expr("requests + 1"),
		}).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		if t.MaxIPs > 0 {
			var count int64
			if err := tx.Model(&models.TokenIP{}).Where("token_id = ?", t.ID).Count(&count).Error; err != nil {
				return err
			}
			if count >= int64(t.MaxIPs) {
				return ErrIPLimitExceeded
			}
		}
		return tx.Create(&models.TokenIP{
			TokenID:     t.ID,
			IP:          sourceIP,
			FirstSeenAt: now,
			LastSeenAt:  now,
			Requests:    1,
		}).Error
	default:
		return err
	}
}

func bumpUsageDay(tx *gorm.DB, now time.Time, requestDelta, tokenDelta int64) error {
	day := now.Format("2006-01-02")
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"requests":    gorm.Expr("requests + ?", requestDelta),
			"tokens_used": gorm.Expr("tokens_used + ?", tokenDelta),
		}),
	}).Create(&models.UsageDay{
		Day:        day,
		Requests:   requestDelta,
		TokensUsed: tokenDelta,
	}).Error
}

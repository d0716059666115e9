package models

import (
	"time"
)

// Expiry classes for user tokens.
const (
	ExpiresDay   = "day"
	ExpiresWeek  = "week"
	ExpiresMonth = "month"
	ExpiresNever = "never"
)

// UserToken is an issued API credential together with its access policy
// and usage counters. The plaintext secret is stored encrypted
// (SecretEnc) and indexed by hash (SecretHash); Secret is populated on
// read so the admin UI can display it.
type UserToken struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	SecretHash    string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	SecretEnc     string     `gorm:"size:500;not null" json:"-"`
	Secret        string     `gorm:"-" json:"secret"`
	OwnerUsername string     `gorm:"size:100;index;not null" json:"username"`
	Description   string     `gorm:"size:500" json:"description"`
	// No default tag: gorm skips zero-valued fields with a default on
	// insert, which would store Enabled=false as true.
	Enabled       bool       `json:"enabled"`
	ExpiresType   string     `gorm:"size:10;not null" json:"expires_type"` // day, week, month, never
	ExpiresAt     *time.Time `gorm:"index" json:"expires_at,omitempty"`
	// MaxIPs caps the number of distinct source IPs; 0 means unlimited.
	MaxIPs      int     `gorm:"default:0" json:"max_ips"`
	CurfewStart *string `gorm:"size:5" json:"curfew_start,omitempty"` // HH:MM
	CurfewEnd   *string `gorm:"size:5" json:"curfew_end,omitempty"`   // HH:MM

	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
	TotalRequests   int64      `gorm:"default:0" json:"total_requests"`
	TotalTokensUsed int64      `gorm:"default:0" json:"total_tokens_used"`
}

func (UserToken) TableName() string { return "user_tokens" }

// IsExpired reports whether the token's expiry has passed at now.
// Tokens without an expiry never expire.
func (t *UserToken) IsExpired(now time.Time) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return !now.Before(*t.ExpiresAt)
}

// InCurfew reports whether now falls inside the token's daily blackout
// window [start, end), compared at minute resolution in server local
// time. A window with start > end wraps past midnight (22:00-06:00
// blocks late evening and early morning).
func (t *UserToken) InCurfew(now time.Time) bool {
	if t.CurfewStart == nil || t.CurfewEnd == nil {
		return false
	}

	start, err := parseMinuteOfDay(*t.CurfewStart)
	if err != nil {
		return false
	}
	end, err := parseMinuteOfDay(*t.CurfewEnd)
	if err != nil {
		return false
	}

	cur := now.Hour()*60 + now.Minute()
	if start <= end {
		return cur >= start && cur < end
	}
	return cur >= start || cur < end
}

func parseMinuteOfDay(hhmm string) (int, error) {
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, err
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// ValidHHMM reports whether s is a well-formed HH:MM clock value.
func ValidHHMM(s string) bool {
	_, err := parseMinuteOfDay(s)
	return err == nil
}

// ValidExpiresType reports whether t names a known expiry class.
func ValidExpiresType(t string) bool {
	switch t {
	case ExpiresDay, ExpiresWeek, ExpiresMonth, ExpiresNever:
		return true
	}
	return false
}

package models

// UsageDay is a fleet-wide per-day usage bucket, maintained inside the
// same transaction as the token counters so the dashboard's "requests
// today" stays a constant-time read.
type UsageDay struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Day        string `gorm:"uniqueIndex;size:10;not null" json:"day"` // 2006-01-02
	Requests   int64  `gorm:"default:0" json:"requests"`
	TokensUsed int64  `gorm:"default:0" json:"tokens_used"`
}

func (UsageDay) TableName() string { return "usage_days" }

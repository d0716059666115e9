package models

import "time"

// TokenIP is one distinct source IP observed for a token. The composite
// unique index backs the max_ips cardinality check.
type TokenIP struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TokenID     string    `gorm:"uniqueIndex:idx_token_ip;size:36;not null" json:"token_id"`
	IP          string    `gorm:"uniqueIndex:idx_token_ip;size:64;not null" json:"ip"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	Requests    int64     `gorm:"default:0" json:"requests"`
}

func (TokenIP) TableName() string { return "token_ips" }

package models

import "time"

// AccessLog records one gateway authorization decision, allowed or
// denied. Written asynchronously off the request path.
type AccessLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TokenID     *string   `gorm:"index;size:36" json:"token_id,omitempty"`
	ClientIP    string    `gorm:"size:64;index" json:"client_ip"`
	Method      string    `gorm:"size:10" json:"method,omitempty"`
	Path        string    `gorm:"size:500" json:"path,omitempty"`
	UserAgent   string    `gorm:"size:500" json:"user_agent,omitempty"`
	Blocked     bool      `gorm:"index" json:"blocked"`
	BlockReason string    `gorm:"size:100" json:"block_reason,omitempty"`
	TokensUsed  int64     `json:"tokens_used"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (AccessLog) TableName() string { return "access_logs" }

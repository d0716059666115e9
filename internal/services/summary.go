package services

import (
	"errors"
	"time"

	"github.com/tokengate/tokengate/internal/models"
	"gorm.io/gorm"
)

// SummaryService computes the fleet-wide rollups shown on the token
// management dashboard. All queries are read-only.
type SummaryService struct {
	db *gorm.DB
}

func NewSummaryService(db *gorm.DB) *SummaryService {
	return &SummaryService{db: db}
}

// TokenSummary is the dashboard rollup.
type TokenSummary struct {
	TotalTokens   int64 `json:"total_tokens"`
	ActiveTokens  int64 `json:"active_tokens"`
	TotalUsers    int64 `json:"total_users"`
	TodayRequests int64 `json:"today_requests"`
}

// GetSummary evaluates the rollup at now. Active means enabled and not
// expired; today's requests come from the incrementally maintained day
// bucket, not from scanning access history.
func (s *SummaryService) GetSummary(now time.Time) (*TokenSummary, error) {
	var out TokenSummary

	if err := s.db.Model(&models.UserToken{}).Count(&out.TotalTokens).Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(&models.UserToken{}).
		Where("enabled = ?", true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Count(&out.ActiveTokens).Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(&models.UserToken{}).
		Distinct("owner_username").
		Count(&out.TotalUsers).Error; err != nil {
		return nil, err
	}

	var bucket models.UsageDay
	err := s.db.Where("day = ?", now.Format("2006-01-02")).First(&bucket).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	out.TodayRequests = bucket.Requests

	return &out, nil
}

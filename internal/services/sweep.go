package services

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/internal/models"
	"github.com/tokengate/tokengate/pkg/logger"
	"gorm.io/gorm"
)

// SweepService runs the nightly maintenance pass: access-log retention,
// usage-bucket pruning and an advisory count of expired tokens. Expiry
// itself is always re-checked at access time, so the sweep only keeps
// storage and dashboards tidy.
type SweepService struct {
	db        *gorm.DB
	accessLog *AccessLogService
	cfg       *config.SecurityConfig
	scheduler *cron.Cron
}

func NewSweepService(db *gorm.DB, accessLog *AccessLogService, cfg *config.SecurityConfig) *SweepService {
	return &SweepService{db: db, accessLog: accessLog, cfg: cfg}
}

// Start runs one sweep immediately, then schedules a daily run at 03:00.
func (s *SweepService) Start() {
	s.RunOnce(time.Now())

	s.scheduler = cron.New()
	if _, err := s.scheduler.AddFunc("0 3 * * *", func() {
		s.RunOnce(time.Now())
	}); err != nil {
		logger.Errorf("[Sweep] Failed to schedule maintenance job: %v", err)
		return
	}
	s.scheduler.Start()
	logger.Infof("[Sweep] Maintenance scheduler started")
}

// Stop halts the scheduler.
func (s *SweepService) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// RunOnce executes one maintenance pass at the given instant.
func (s *SweepService) RunOnce(now time.Time) {
	if days := s.cfg.AccessLogRetentionDays; days > 0 {
		deleted, err := s.accessLog.CleanupBefore(now.AddDate(0, 0, -days))
		if err != nil {
			logger.Errorf("[Sweep] Access log cleanup failed: %v", err)
		} else if deleted > 0 {
			logger.Infof("[Sweep] Deleted %d access logs older than %d days", deleted, days)
		}
	}

	if days := s.cfg.UsageRetentionDays; days > 0 {
		cutoff := now.AddDate(0, 0, -days).Format("2006-01-02")
		res := s.db.Where("day < ?", cutoff).Delete(&models.UsageDay{})
		if res.Error != nil {
			logger.Errorf("[Sweep] Usage bucket cleanup failed: %v", res.Error)
		} else if res.RowsAffected > 0 {
			logger.Infof("[Sweep] Deleted %d usage buckets older than %s", res.RowsAffected, cutoff)
		}
	}

	var expired int64
	err := s.db.Model(&models.UserToken{}).
		Where("enabled = ?", true).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Count(&expired).Error
	if err != nil {
		logger.Errorf("[Sweep] Expired token count failed: %v", err)
	} else if expired > 0 {
		logger.Infof("[Sweep] %d enabled tokens are past expiry", expired)
	}
}

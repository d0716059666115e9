package services

import (
	"context"
	"time"

	"github.com/tokengate/tokengate/internal/models"
	"github.com/tokengate/tokengate/pkg/logger"
	"gorm.io/gorm"
)

// AccessLogService records and queries gateway authorization history.
// Writes go through the task queue so the authorize path never blocks
// on log persistence.
type AccessLogService struct {
	db    *gorm.DB
	queue TaskQueue
}

func NewAccessLogService(db *gorm.DB, queue TaskQueue) *AccessLogService {
	return &AccessLogService{db: db, queue: queue}
}

// Record enqueues one entry. Failures are logged, never surfaced: an
// unavailable log sink must not turn into a denied request.
func (s *AccessLogService) Record(entry *models.AccessLog) {
	if err := s.queue.Enqueue(entry); err != nil {
		logger.Errorf("[AccessLog] Failed to enqueue entry: %v", err)
	}
}

// Persist writes one entry to the database. It is the processor hooked
// into the task queue and the async worker.
func (s *AccessLogService) Persist(ctx context.Context, entry *models.AccessLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

// AccessLogListParams filters the admin listing.
type AccessLogListParams struct {
	Page     int
	PageSize int
	TokenID  string
	ClientIP string
	Blocked  *bool
}

// List returns a page of entries, newest first, plus the total count.
func (s *AccessLogService) List(params *AccessLogListParams) ([]models.AccessLog, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	query := s.db.Model(&models.AccessLog{})
	if params.TokenID != "" {
		query = query.Where("token_id = ?", params.TokenID)
	}
	if params.ClientIP != "" {
		query = query.Where("client_ip = ?", params.ClientIP)
	}
	if params.Blocked != nil {
		query = query.Where("blocked = ?", *params.Blocked)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.AccessLog
	err := query.Order("created_at DESC").
		Offset((params.Page - 1) * params.PageSize).
		Limit(params.PageSize).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// CleanupBefore deletes entries older than the given time.
func (s *AccessLogService) CleanupBefore(before time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", before).Delete(&models.AccessLog{})
	return result.RowsAffected, result.Error
}

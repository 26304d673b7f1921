package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/betagouv/zacharie-sub006/internal/db"
	"github.com/betagouv/zacharie-sub006/internal/model"
)

// NotificationLogRepository defines the interface for the notification log
type NotificationLogRepository interface {
	Exists(ctx context.Context, subjectID, kind string, channel model.NotificationChannel) (bool, error)
	Create(ctx context.Context, entry *model.NotificationLog) (*model.NotificationLog, error)
	GetBySubject(ctx context.Context, subjectID string) ([]*model.NotificationLog, error)
}

// notificationLogRepository implements NotificationLogRepository
type notificationLogRepository struct {
	db *gorm.DB
}

// NewNotificationLogRepository creates a new notification log repository
func NewNotificationLogRepository(database *gorm.DB) NotificationLogRepository {
	return &notificationLogRepository{db: database}
}

// Exists checks whether a delivery has already been scheduled for the
// (subject, kind, channel) triple
func (r *notificationLogRepository) Exists(ctx context.Context, subjectID, kind string, channel model.NotificationChannel) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.NotificationLog{}).
		Where("subject_id = ? AND kind = ? AND channel = ?", subjectID, kind, channel).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create writes the guard entry after a delivery attempt
func (r *notificationLogRepository) Create(ctx context.Context, entry *model.NotificationLog) (*model.NotificationLog, error) {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// GetBySubject lists the log entries for one subject
func (r *notificationLogRepository) GetBySubject(ctx context.Context, subjectID string) ([]*model.NotificationLog, error) {
	var entries []*model.NotificationLog
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return entries, nil
}

package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"sk3-portal/internal/model"
)

const defaultListLimit = 200

type ActionLogRepository struct {
	db *gorm.DB
}

func NewActionLogRepository(db *gorm.DB) *ActionLogRepository {
	return &ActionLogRepository{db: db}
}

type ActionLogFilter struct {
	Kind      model.ComplaintKind
	Actions   []model.Action
	ActorRole model.Role
	ActorID   *int64
	DateFrom  *time.Time
	DateTo    *time.Time
	Limit     int
	Offset    int
}

func (r *ActionLogRepository) Log(ctx context.Context, entry *model.ActionLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByComplaint returns the journal of one complaint, oldest first.
func (r *ActionLogRepository) ListByComplaint(ctx context.Context, kind model.ComplaintKind, complaintID int64) ([]model.ActionLog, error) {
	var entries []model.ActionLog
	if err := r.db.WithContext(ctx).
		Model(&model.ActionLog{}).
		Where("kind = ? AND complaint_id = ?", kind, complaintID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListRecent returns the newest journal rows matching filter.
func (r *ActionLogRepository) ListRecent(ctx context.Context, filter ActionLogFilter) ([]model.ActionLog, error) {
	query := r.db.WithContext(ctx).Model(&model.ActionLog{})

	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if len(filter.Actions) > 0 {
		query = query.Where("action IN ?", filter.Actions)
	}
	if filter.ActorRole != "" {
		query = query.Where("actor_role = ?", filter.ActorRole)
	}
	if filter.ActorID != nil {
		query = query.Where("actor_id = ?", *filter.ActorID)
	}
	if filter.DateFrom != nil {
		query = query.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("created_at <= ?", *filter.DateTo)
	}

	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	} else {
		query = query.Limit(defaultListLimit)
	}

	var entries []model.ActionLog
	if err := query.Order("created_at DESC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

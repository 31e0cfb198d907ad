package audit

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/mapimport/internal/entities"
)

const defaultPageSize = 50

// Repository stores the import history in the audit_events table.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LogEvent inserts an event, stamping it with the current time when unset.
func (r *Repository) LogEvent(event *entities.AuditEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if err := r.db.Create(event).Error; err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Find returns one page of events matching filter, newest first, along with
// the total number of matches.
func (r *Repository) Find(filter entities.AuditFilter, limit, offset int) ([]entities.AuditEvent, int64, error) {
	query := r.db.Model(&entities.AuditEvent{})
	if filter.CollectionID != "" {
		query = query.Where("collection_id = ?", filter.CollectionID)
	}
	if filter.Type != "" {
		query = query.Where("event_type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count audit events: %w", err)
	}

	if limit <= 0 {
		limit = defaultPageSize
	}
	offset = max(offset, 0)

	var events []entities.AuditEvent
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&events).Error; err != nil {
		return nil, 0, fmt.Errorf("list audit events: %w", err)
	}
	return events, total, nil
}

// DeleteBefore removes events created before cutoff and returns how many
// rows went away.
func (r *Repository) DeleteBefore(cutoff time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", cutoff).Delete(&entities.AuditEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete audit events: %w", result.Error)
	}
	return result.RowsAffected, nil
}

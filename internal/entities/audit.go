package entities

import "time"

type AuditEventType string

const (
	AuditEventImport  AuditEventType = "import"
	AuditEventRefresh AuditEventType = "refresh"
	AuditEventProject AuditEventType = "project"
)

type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailed  AuditStatus = "failed"
)

type AuditEvent struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	EventType    AuditEventType `gorm:"index;size:50" json:"event_type"`
	Action       string         `gorm:"size:100" json:"action"`      // e.g., "copy_file", "link"
	Description  string         `gorm:"size:500" json:"description"` // Human-readable summary
	CollectionID string         `gorm:"index;size:36" json:"collection_id,omitempty"`
	Metadata     string         `gorm:"type:text" json:"metadata,omitempty"` // JSON for extra data
	Status       AuditStatus    `gorm:"size:20" json:"status"`
	ErrorMsg     string         `gorm:"size:500" json:"error_msg,omitempty"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}

// AuditFilter narrows an audit query. Zero fields match everything.
type AuditFilter struct {
	CollectionID string
	Type         AuditEventType
	Status       AuditStatus
}

// ValidAuditEventType reports whether t names a recorded event type.
func ValidAuditEventType(t AuditEventType) bool {
	switch t {
	case AuditEventImport, AuditEventRefresh, AuditEventProject:
		return true
	}
	return false
}

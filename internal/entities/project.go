package entities

import "time"

// Project holds the map-level settings replaced by a full project import.
// There is at most one row.
type Project struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:255" json:"name"`
	Properties string    `gorm:"type:text" json:"properties,omitempty"` // raw JSON
	ImportedAt time.Time `json:"imported_at"`
}

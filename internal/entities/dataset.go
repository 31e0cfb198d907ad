package entities

import "time"

type DatasetOrigin string

const (
	DatasetOriginFile DatasetOrigin = "file"
	DatasetOriginRaw  DatasetOrigin = "raw"
	DatasetOriginURL  DatasetOrigin = "url"
)

// Dataset is one embedded copy of imported data inside a collection. The
// payload is stored as received; it is not parsed here.
type Dataset struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	CollectionID string        `gorm:"index;size:36" json:"collection_id"`
	Name         string        `gorm:"size:255" json:"name"`
	Format       string        `gorm:"size:20" json:"format"`
	Origin       DatasetOrigin `gorm:"size:10" json:"origin"`
	Source       string        `gorm:"size:2048" json:"source,omitempty"` // file name or URL
	Data         []byte        `json:"-"`
	Size         int           `json:"size"`
	CreatedAt    time.Time     `json:"created_at"`
}

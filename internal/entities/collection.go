package entities

import "time"

// RemoteLink makes a collection fetch its content from a remote URL instead
// of holding an embedded copy.
type RemoteLink struct {
	URL                    string `gorm:"size:2048" json:"url"`
	Format                 string `gorm:"size:20" json:"format"`
	Proxied                bool   `json:"proxied"`
	RefreshIntervalSeconds int    `json:"refresh_interval_seconds"`
}

// RefreshInterval returns the configured refresh interval, zero when the link
// is never refreshed automatically.
func (l RemoteLink) RefreshInterval() time.Duration {
	return time.Duration(l.RefreshIntervalSeconds) * time.Second
}

// Collection is a named container of map features (a layer).
type Collection struct {
	ID     string     `gorm:"primaryKey;size:36" json:"id"`
	Name   string     `gorm:"size:255" json:"name"`
	Loaded bool       `json:"loaded"`
	Remote RemoteLink `gorm:"embedded;embeddedPrefix:remote_" json:"remote"`

	// Last payload fetched for a remote link. Never part of the feature store.
	RemoteCache     []byte     `json:"-"`
	RemoteFetchedAt *time.Time `json:"remote_fetched_at,omitempty"`

	Datasets  []Dataset `gorm:"constraint:OnDelete:CASCADE" json:"datasets,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRemote reports whether the collection is backed by a remote link.
func (c *Collection) IsRemote() bool {
	return c.Remote.URL != ""
}

// Selectable reports whether data can be imported into the collection.
func (c *Collection) Selectable() bool {
	return c.Loaded && !c.IsRemote()
}

// NeedsRefresh reports whether the remote snapshot is older than the link's
// refresh interval at the given time.
func (c *Collection) NeedsRefresh(now time.Time) bool {
	if !c.IsRemote() {
		return false
	}
	if c.RemoteFetchedAt == nil {
		return true
	}
	interval := c.Remote.RefreshInterval()
	if interval <= 0 {
		return false
	}
	return now.Sub(*c.RemoteFetchedAt) >= interval
}

package audit

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/mrlokans/mapimport/internal/database/audit"
	"github.com/mrlokans/mapimport/internal/entities"
)

// Service provides high-level audit logging functionality.
type Service struct {
	repo    *audit.Repository
	pending sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records a generic audit event.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.repo.LogEvent(event); err != nil {
			log.Printf("Failed to log audit event: %v", err)
		}
	}()
}

// Wait blocks until every event passed to LogAsync is written.
func (s *Service) Wait() {
	s.pending.Wait()
}

// LogImport records an embedded-copy import into a collection.
func (s *Service) LogImport(action, collectionID, description string, metadata map[string]any, err error) {
	event := &entities.AuditEvent{
		EventType:    entities.AuditEventImport,
		Action:       action,
		Description:  truncate(description, 500),
		CollectionID: collectionID,
		Status:       entities.AuditStatusSuccess,
	}
	event.Metadata = encodeMetadata(metadata)
	setError(event, err)

	s.LogAsync(event)
}

// LogRefresh records a fetch of a remote-linked collection.
func (s *Service) LogRefresh(collectionID, url string, size int, err error) {
	event := &entities.AuditEvent{
		EventType:    entities.AuditEventRefresh,
		Action:       "refresh_remote",
		Description:  truncate("Fetched "+url, 500),
		CollectionID: collectionID,
		Status:       entities.AuditStatusSuccess,
	}
	event.Metadata = encodeMetadata(map[string]any{"url": url, "bytes": size})
	setError(event, err)

	s.LogAsync(event)
}

// LogProject records a full project replacement.
func (s *Service) LogProject(source, description string, layers int, err error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventProject,
		Action:      "project_" + source,
		Description: truncate(description, 500),
		Status:      entities.AuditStatusSuccess,
	}
	event.Metadata = encodeMetadata(map[string]any{"layers_count": layers})
	setError(event, err)

	s.LogAsync(event)
}

// Events returns one page of events matching filter, newest first.
func (s *Service) Events(filter entities.AuditFilter, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.Find(filter, limit, offset)
}

// DeleteOldEvents removes events recorded more than retention ago.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	return s.repo.DeleteBefore(time.Now().Add(-retention))
}

func encodeMetadata(metadata map[string]any) string {
	if len(metadata) == 0 {
		return ""
	}
	mdBytes, err := json.Marshal(metadata)
	if err != nil {
		return ""
	}
	return string(mdBytes)
}

func setError(event *entities.AuditEvent, err error) {
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

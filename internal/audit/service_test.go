package audit

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	auditRepo "github.com/mrlokans/mapimport/internal/database/audit"
	"github.com/mrlokans/mapimport/internal/entities"
)

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "audit.db")), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.AuditEvent{})
	require.NoError(t, err)

	svc := NewService(auditRepo.NewRepository(db))

	return svc, db
}

func TestService_Log(t *testing.T) {
	svc, db := setupTestService(t)

	event := &entities.AuditEvent{
		EventType:   entities.AuditEventImport,
		Action:      "copy_raw",
		Description: "Test import event",
		Status:      entities.AuditStatusSuccess,
	}

	require.NoError(t, svc.Log(event))

	var saved entities.AuditEvent
	require.NoError(t, db.First(&saved, event.ID).Error)
	assert.Equal(t, "copy_raw", saved.Action)
}

func TestService_LogImport(t *testing.T) {
	svc, db := setupTestService(t)

	t.Run("successful import", func(t *testing.T) {
		svc.LogImport("copy_file", "c1", "Imported cafes.geojson", map[string]any{"bytes": 120, "format": "geojson"}, nil)
		svc.Wait()

		var event entities.AuditEvent
		require.NoError(t, db.Where("action = ?", "copy_file").First(&event).Error)
		assert.Equal(t, entities.AuditStatusSuccess, event.Status)
		assert.Equal(t, "c1", event.CollectionID)
		assert.Contains(t, event.Metadata, `"format":"geojson"`)
	})

	t.Run("failed import", func(t *testing.T) {
		svc.LogImport("copy_url", "c2", "Import failed", nil, errors.New(strings.Repeat("x", 600)))
		svc.Wait()

		var event entities.AuditEvent
		require.NoError(t, db.Where("action = ?", "copy_url").First(&event).Error)
		assert.Equal(t, entities.AuditStatusFailed, event.Status)
		assert.Len(t, event.ErrorMsg, 500)
		assert.Empty(t, event.Metadata)
	})
}

func TestService_LogRefreshAndProject(t *testing.T) {
	svc, _ := setupTestService(t)

	svc.LogRefresh("c1", "https://example.org/live.csv", 42, nil)
	svc.LogProject("raw", "Project import failed", 0, errors.New("invalid project"))
	svc.Wait()

	refreshes, total, err := svc.Events(entities.AuditFilter{Type: entities.AuditEventRefresh}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Contains(t, refreshes[0].Metadata, `"bytes":42`)

	projects, _, err := svc.Events(entities.AuditFilter{Type: entities.AuditEventProject}, 10, 0)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "project_raw", projects[0].Action)
	assert.Equal(t, entities.AuditStatusFailed, projects[0].Status)

	events, _, err := svc.Events(entities.AuditFilter{CollectionID: "c1"}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	failed, _, err := svc.Events(entities.AuditFilter{Status: entities.AuditStatusFailed}, 10, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "invalid project", failed[0].ErrorMsg)
}

func TestService_DeleteOldEvents(t *testing.T) {
	svc, _ := setupTestService(t)

	require.NoError(t, svc.Log(&entities.AuditEvent{EventType: entities.AuditEventImport, Action: "old", CreatedAt: time.Now().Add(-72 * time.Hour)}))
	require.NoError(t, svc.Log(&entities.AuditEvent{EventType: entities.AuditEventImport, Action: "new"}))

	deleted, err := svc.DeleteOldEvents(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

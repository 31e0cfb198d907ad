package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/mapimport/internal/entities"
)

func TestNewDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := NewDatabase(dbPath)
	require.NoError(t, err)
	defer db.Close()

	for _, model := range []any{&entities.Collection{}, &entities.Dataset{}, &entities.Project{}, &entities.AuditEvent{}} {
		assert.True(t, db.DB.Migrator().HasTable(model), "%T table", model)
	}
	assert.True(t, db.DB.Migrator().HasColumn(&entities.Collection{}, "remote_url"))
}

func TestDatabase_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := NewDatabase(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.DB.Create(&entities.Collection{ID: "c1", Name: "Cafes"}).Error)
	require.NoError(t, db.Close())

	db, err = NewDatabase(dbPath)
	require.NoError(t, err)
	defer db.Close()

	var c entities.Collection
	require.NoError(t, db.DB.First(&c, "id = ?", "c1").Error)
	assert.Equal(t, "Cafes", c.Name)
}

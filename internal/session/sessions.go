// Package session keeps the import dialog draft of each visitor in a
// server-side session and protects state-changing requests against CSRF.
package session

import (
	"context"
	"database/sql"
	"encoding/gob"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"

	"github.com/mrlokans/mapimport/internal/importer"
)

// Session data keys
const (
	KeyDraft     = "import_draft"
	KeyUpdatedAt = "draft_updated_at"
)

func init() {
	// Register types that will be stored in sessions
	gob.Register(importer.Draft{})
	gob.Register(time.Time{})
}

// Manager wraps scs.SessionManager with draft accessors.
type Manager struct {
	*scs.SessionManager
}

// NewManager creates a session manager storing sessions in sqlDB, which
// should be the underlying *sql.DB from GORM.
func NewManager(sqlDB *sql.DB, lifetime time.Duration, secureCookies bool) (*Manager, error) {
	_, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expiry REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`)
	if err != nil {
		return nil, err
	}

	sm := scs.New()
	sm.Store = sqlite3store.New(sqlDB)

	sm.Lifetime = lifetime
	sm.IdleTimeout = lifetime / 2

	sm.Cookie.Name = "mapimport_session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = secureCookies
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Path = "/"

	return &Manager{SessionManager: sm}, nil
}

// LoadDraft returns the draft stored in the session, or an empty draft.
func (m *Manager) LoadDraft(ctx context.Context) importer.Draft {
	d, ok := m.Get(ctx, KeyDraft).(importer.Draft)
	if !ok {
		return importer.Draft{}
	}
	return d
}

// SaveDraft stores the draft in the session.
func (m *Manager) SaveDraft(ctx context.Context, d importer.Draft) {
	m.Put(ctx, KeyDraft, d)
	m.Put(ctx, KeyUpdatedAt, time.Now())
}

// ClearDraft forgets the stored draft.
func (m *Manager) ClearDraft(ctx context.Context) {
	m.Remove(ctx, KeyDraft)
	m.Remove(ctx, KeyUpdatedAt)
}

// DraftUpdatedAt returns when the draft was last saved, zero if never.
func (m *Manager) DraftUpdatedAt(ctx context.Context) time.Time {
	t, _ := m.Get(ctx, KeyUpdatedAt).(time.Time)
	return t
}

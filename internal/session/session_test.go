package session

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/mapimport/internal/formats"
	"github.com/mrlokans/mapimport/internal/importer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupManager(t *testing.T) *Manager {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m, err := NewManager(db, time.Hour, false)
	require.NoError(t, err)
	return m
}

func TestNewManager(t *testing.T) {
	m := setupManager(t)

	assert.Equal(t, "mapimport_session", m.Cookie.Name)
	assert.True(t, m.Cookie.HttpOnly)
	assert.False(t, m.Cookie.Secure)
	assert.Equal(t, time.Hour, m.Lifetime)
	assert.Equal(t, 30*time.Minute, m.IdleTimeout)
}

func TestDraftSurvivesRequests(t *testing.T) {
	m := setupManager(t)

	router := gin.New()
	router.Use(m.LoadSave())
	router.PUT("/draft", func(c *gin.Context) {
		m.SaveDraft(c.Request.Context(), importer.Draft{
			URL:    "https://example.org/data.kml",
			Format: formats.KML,
			Mode:   importer.ModeLink,
		})
		c.Status(http.StatusNoContent)
	})
	router.GET("/draft", func(c *gin.Context) {
		c.JSON(http.StatusOK, m.LoadDraft(c.Request.Context()))
	})
	router.DELETE("/draft", func(c *gin.Context) {
		m.ClearDraft(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/draft", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "mapimport_session", cookies[0].Name)

	get := func() string {
		req := httptest.NewRequest(http.MethodGet, "/draft", nil)
		req.AddCookie(cookies[0])
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		return w.Body.String()
	}

	body := get()
	assert.Contains(t, body, `"url":"https://example.org/data.kml"`)
	assert.Contains(t, body, `"format":"kml"`)
	assert.Contains(t, body, `"mode":"link"`)

	req := httptest.NewRequest(http.MethodDelete, "/draft", nil)
	req.AddCookie(cookies[0])
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, get(), `"url":""`)
}

func TestLoadDraftWithoutSession(t *testing.T) {
	m := setupManager(t)

	router := gin.New()
	router.Use(m.LoadSave())
	router.GET("/draft", func(c *gin.Context) {
		assert.Equal(t, importer.Draft{}, m.LoadDraft(c.Request.Context()))
		assert.True(t, m.DraftUpdatedAt(c.Request.Context()).IsZero())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/draft", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Cookies())
}

func TestCSRFMiddleware(t *testing.T) {
	secret := []byte("test-secret-key-32-bytes-long!!!")

	var reached bool
	router := gin.New()
	router.Use(CSRFMiddleware(secret, false))
	router.GET("/form", func(c *gin.Context) {
		c.String(http.StatusOK, CSRFToken(c))
	})
	router.POST("/submit", func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})

	t.Run("safe methods pass and expose the token", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/form", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(CSRFTokenHeader))
		assert.Equal(t, w.Header().Get(CSRFTokenHeader), w.Body.String())
	})

	t.Run("posts without a token are rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/submit", nil))

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "CSRF token invalid or missing")
		assert.False(t, reached)
	})
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(SecurityHeadersMiddleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
}

func TestCSRFSecret(t *testing.T) {
	secret, generated, err := CSRFSecret("")
	require.NoError(t, err)
	assert.True(t, generated)
	assert.Len(t, secret, 32)

	secret, generated, err = CSRFSecret("00ff")
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, []byte{0x00, 0xff}, secret)

	secret, _, err = CSRFSecret("not-hex")
	require.NoError(t, err)
	assert.Equal(t, []byte("not-hex"), secret)
}

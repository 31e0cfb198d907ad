package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/mapimport/internal/tasks"
)

func setupTasksRouter(t *testing.T) *gin.Engine {
	t.Helper()

	client, err := tasks.NewClient(filepath.Join(t.TempDir(), "main.db"), tasks.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	client.Register(tasks.NewRefreshRemoteQueue(nil), tasks.NewCleanupAuditEventsQueue(nil, nil))

	return NewRouter(RouterConfig{TaskClient: client, AuditRetentionDays: 7})
}

func TestTasksController_ListTaskTypes(t *testing.T) {
	router := setupTasksRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tasks/types", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"queue":"refresh_remote"`)
	assert.Contains(t, w.Body.String(), `"queue":"cleanup_audit_events"`)
}

func TestTasksController_ListTaskTypesSkipsUnregistered(t *testing.T) {
	client, err := tasks.NewClient(filepath.Join(t.TempDir(), "main.db"), tasks.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	client.Register(tasks.NewRefreshRemoteQueue(nil))
	router := NewRouter(RouterConfig{TaskClient: client})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tasks/types", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"queue":"refresh_remote"`)
	assert.NotContains(t, w.Body.String(), "cleanup_audit_events")
}

func TestTasksController_RunTask(t *testing.T) {
	router := setupTasksRouter(t)

	run := func(taskType, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/tasks/"+taskType+"/run", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := run("cleanup_audit_events", "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var resp struct {
		TaskID string `json:"task_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.TaskID)

	status := httptest.NewRecorder()
	router.ServeHTTP(status, httptest.NewRequest(http.MethodGet, "/api/tasks/"+resp.TaskID, nil))
	require.Equal(t, http.StatusOK, status.Code)
	assert.Contains(t, status.Body.String(), `"status":"pending"`)

	w = run("refresh_remote", `{"collection_id":"6f9619ff-8b86-d011-b42d-00c04fc964ff"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = run("refresh_remote", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = run("rebuild_tiles", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTaskStatusToString(t *testing.T) {
	assert.Equal(t, "pending", taskStatusToString(backlite.TaskStatusPending))
	assert.Equal(t, "success", taskStatusToString(backlite.TaskStatusSuccess))
	assert.Equal(t, "not_found", taskStatusToString(backlite.TaskStatusNotFound))
}

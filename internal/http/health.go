package http

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/mapimport/internal/database"
)

const (
	healthy   = "healthy"
	unhealthy = "unhealthy"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Time          string            `json:"time"`
	Version       string            `json:"version,omitempty"`
	Checks        map[string]string `json:"checks"`
	FailedPlugins []string          `json:"failed_plugins,omitempty"`
}

// PluginStatus reports the outcome of plugin loading.
type PluginStatus interface {
	Names() []string
	Failures() map[string]error
}

// QueueStatus reports whether the background task workers run.
type QueueStatus interface {
	Started() bool
}

type HealthController struct {
	db      *database.Database
	plugins PluginStatus
	queue   QueueStatus
	version string
}

// NewHealthController reports the database as the only critical check. Plugins
// and the task queue are informational: without them imports still work.
func NewHealthController(db *database.Database, plugins PluginStatus, version string) *HealthController {
	return &HealthController{
		db:      db,
		plugins: plugins,
		version: version,
	}
}

// WithQueue adds the task queue to the report.
func (h *HealthController) WithQueue(queue QueueStatus) *HealthController {
	h.queue = queue
	return h
}

// Status handles GET /health
func (h *HealthController) Status(c *gin.Context) {
	response := HealthResponse{
		Status:  healthy,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  make(map[string]string),
	}

	dbStatus, ok := h.checkDatabase()
	response.Checks["database"] = dbStatus
	if !ok {
		response.Status = unhealthy
	}

	if h.plugins != nil {
		failures := h.plugins.Failures()
		response.Checks["plugins"] = fmt.Sprintf("%d loaded, %d failed", len(h.plugins.Names()), len(failures))
		for key := range failures {
			response.FailedPlugins = append(response.FailedPlugins, key)
		}
		sort.Strings(response.FailedPlugins)
	}

	switch {
	case h.queue == nil:
		response.Checks["tasks"] = "inline"
	case h.queue.Started():
		response.Checks["tasks"] = "running"
	default:
		response.Checks["tasks"] = "stopped"
	}

	statusCode := http.StatusOK
	if response.Status != healthy {
		statusCode = http.StatusServiceUnavailable
	}
	c.IndentedJSON(statusCode, response)
}

func (h *HealthController) checkDatabase() (string, bool) {
	if h.db == nil {
		return "not configured", true
	}
	sqlDB, err := h.db.DB.DB()
	if err != nil {
		return "error: " + err.Error(), false
	}
	if err := sqlDB.Ping(); err != nil {
		return "error: " + err.Error(), false
	}
	return "ok", true
}

package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/mapimport/internal/session"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.Use(session.SecurityHeadersMiddleware())

	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFSecret) > 0 {
		router.Use(session.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies))
	}

	var drafts DraftStore
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.LoadSave())
		drafts = cfg.SessionManager
	}

	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	router.MaxMultipartMemory = maxUpload

	var plugins PluginStatus
	if cfg.Plugins != nil {
		plugins = cfg.Plugins
	}
	health := NewHealthController(cfg.Database, plugins, cfg.Version)
	if queue, ok := cfg.TaskClient.(QueueStatus); ok {
		health.WithQueue(queue)
	}

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	if cfg.Host != nil {
		importer := NewImportController(cfg.Host, cfg.Plugins, drafts, maxUpload)
		router.GET("/api/import/form", importer.GetForm)
		router.PATCH("/api/import/form", importer.PatchForm)
		router.DELETE("/api/import/form", importer.ResetForm)
		router.POST("/api/import/detect", importer.Detect)
		router.POST("/api/import", importer.Submit)
		router.GET("/api/import/plugins", importer.ListPlugins)
		router.POST("/api/import/plugins/:name/open", importer.OpenPlugin)

		collections := NewCollectionsController(cfg.Host)
		router.GET("/api/collections", collections.List)
		router.GET("/api/collections/:id", collections.Get)
		router.POST("/api/collections/:id/refresh", collections.Refresh)
		router.GET("/api/project", collections.Project)
	}

	if cfg.Audit != nil {
		audit := NewAuditController(cfg.Audit)
		router.GET("/api/audit", audit.GetAuditEvents)
	}

	// Task queue endpoints
	if cfg.TaskClient != nil {
		tasks := NewTasksController(cfg.TaskClient, cfg.AuditRetentionDays)
		router.GET("/api/tasks/types", tasks.ListTaskTypes)
		router.GET("/api/tasks/:id", tasks.GetTaskStatus)
		router.POST("/api/tasks/:type/run", tasks.RunTask)
	}

	if len(cfg.Schedules) > 0 {
		schedules := NewSchedulesController(cfg.Schedules)
		router.GET("/api/schedules", schedules.List)
		router.POST("/api/schedules/:key/run", schedules.Run)
	}

	return router
}

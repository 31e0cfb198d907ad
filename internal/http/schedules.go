package http

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/mapimport/internal/scheduler"
)

// ScheduledJob is a cron job the API can inspect and trigger.
type ScheduledJob interface {
	Name() string
	Schedule() string
	IsRunning() bool
	IsBusy() bool
	GetNextRunTime() *time.Time
	RunNow()
}

// SchedulesController exposes the background schedules.
type SchedulesController struct {
	jobs map[string]ScheduledJob
}

// NewSchedulesController creates a controller over jobs keyed by URL name.
func NewSchedulesController(jobs map[string]ScheduledJob) *SchedulesController {
	return &SchedulesController{jobs: jobs}
}

// ScheduleStatus describes one scheduled job.
type ScheduleStatus struct {
	Key         string     `json:"key"`
	Name        string     `json:"name"`
	Schedule    string     `json:"schedule"`
	Description string     `json:"description"`
	IsRunning   bool       `json:"is_running"`
	IsBusy      bool       `json:"is_busy"`
	NextRun     *time.Time `json:"next_run,omitempty"`
}

// List handles GET /api/schedules
func (sc *SchedulesController) List(c *gin.Context) {
	keys := make([]string, 0, len(sc.jobs))
	for key := range sc.jobs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	statuses := make([]ScheduleStatus, 0, len(keys))
	for _, key := range keys {
		statuses = append(statuses, scheduleStatus(key, sc.jobs[key]))
	}
	c.JSON(http.StatusOK, gin.H{"schedules": statuses})
}

// Run handles POST /api/schedules/:key/run
func (sc *SchedulesController) Run(c *gin.Context) {
	key := c.Param("key")
	job, ok := sc.jobs[key]
	if !ok {
		respondNotFound(c, "schedule "+key)
		return
	}
	if job.IsBusy() {
		respondError(c, http.StatusConflict, job.Name()+" already in progress")
		return
	}

	go job.RunNow()

	respondAccepted(c, job.Name()+" started in background", scheduleStatus(key, job))
}

func scheduleStatus(key string, job ScheduledJob) ScheduleStatus {
	return ScheduleStatus{
		Key:         key,
		Name:        job.Name(),
		Schedule:    job.Schedule(),
		Description: scheduler.GetCronDescription(job.Schedule()),
		IsRunning:   job.IsRunning(),
		IsBusy:      job.IsBusy(),
		NextRun:     job.GetNextRunTime(),
	}
}

package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job runs a single function on a cron schedule. Runs never overlap: a tick
// that fires while the previous run is still busy is skipped.
type Job struct {
	name     string
	schedule string
	timeout  time.Duration
	run      func(ctx context.Context) error

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	isBusy     bool
	cancelFunc context.CancelFunc
}

func newJob(name, schedule string, timeout time.Duration, run func(ctx context.Context) error) *Job {
	return &Job{
		name:     name,
		schedule: schedule,
		timeout:  timeout,
		run:      run,
		cron:     cron.New(cron.WithParser(parser)),
	}
}

// Name returns the job name used in logs.
func (j *Job) Name() string { return j.name }

// Schedule returns the cron expression the job runs on.
func (j *Job) Schedule() string { return j.schedule }

// Start schedules the job. Cancelling ctx stops it.
func (j *Job) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.isRunning {
		return nil
	}

	if err := ValidateCronSchedule(j.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", j.schedule, err)
	}

	entryID, err := j.cron.AddFunc(j.schedule, func() {
		j.execute()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", j.name, err)
	}
	j.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, j.cancelFunc = context.WithCancel(ctx)

	j.cron.Start()
	j.isRunning = true

	nextRun, _ := GetNextRunTime(j.schedule, time.Now())
	log.Printf("%s scheduler: started with schedule '%s' (%s). Next run: %v",
		j.name, j.schedule, GetCronDescription(j.schedule), nextRun)

	go func() {
		<-cancelCtx.Done()
		j.Stop()
	}()

	return nil
}

// Stop waits for a running execution and stops the schedule.
func (j *Job) Stop() {
	j.mu.Lock()
	if !j.isRunning {
		j.mu.Unlock()
		return
	}
	j.isRunning = false
	cancel := j.cancelFunc
	j.cancelFunc = nil
	j.mu.Unlock()

	// The lock is released first: a running execution takes it on exit.
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.cron.Remove(j.entryID)

	if cancel != nil {
		cancel()
	}
	log.Printf("%s scheduler: stopped", j.name)
}

// RunNow executes the job immediately in the calling goroutine.
func (j *Job) RunNow() {
	j.execute()
}

// IsRunning returns whether the schedule is active
func (j *Job) IsRunning() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.isRunning
}

// IsBusy returns whether an execution is in progress
func (j *Job) IsBusy() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.isBusy
}

// GetNextRunTime returns when the job fires next, nil when stopped.
func (j *Job) GetNextRunTime() *time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if !j.isRunning {
		return nil
	}

	for _, entry := range j.cron.Entries() {
		if entry.ID == j.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (j *Job) execute() {
	j.mu.Lock()
	if j.isBusy {
		j.mu.Unlock()
		log.Printf("%s: skipped (previous run still busy)", j.name)
		return
	}
	j.isBusy = true
	j.mu.Unlock()

	defer func() {
		j.mu.Lock()
		j.isBusy = false
		j.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.run(ctx); err != nil {
		log.Printf("%s: %v", j.name, err)
	}
}

package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikestefanello/backlite"
)

// Client runs ingest, refresh and audit cleanup tasks on a backlite queue
// stored in its own SQLite file.
type Client struct {
	backlite *backlite.Client
	db       *sql.DB
	config   Config

	mu      sync.RWMutex
	queues  []string
	started bool
}

// TasksDBPath returns the path of the queue database kept next to the main
// database, "data/mapimport.db" becoming "data/mapimport-tasks.db".
func TasksDBPath(mainDBPath string) string {
	ext := filepath.Ext(mainDBPath)
	return strings.TrimSuffix(mainDBPath, ext) + "-tasks" + ext
}

// NewClient opens the queue database and installs the backlite schema.
// Zero config fields fall back to DefaultConfig.
func NewClient(mainDBPath string, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	db, err := openQueueDB(TasksDBPath(mainDBPath), cfg.Workers)
	if err != nil {
		return nil, err
	}

	bl, err := backlite.NewClient(backlite.ClientConfig{
		DB:              db,
		NumWorkers:      cfg.Workers,
		ReleaseAfter:    cfg.ReleaseAfter,
		CleanupInterval: cfg.CleanupInterval,
		Logger:          queueLogger{},
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create task queue: %w", err)
	}
	if err := bl.Install(); err != nil {
		db.Close()
		return nil, fmt.Errorf("install task queue schema: %w", err)
	}

	return &Client{backlite: bl, db: db, config: cfg}, nil
}

// openQueueDB opens the SQLite file in WAL mode. Workers each hold a
// connection while a task runs, plus a few for enqueueing.
func openQueueDB(path string, workers int) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open task database %s: %w", path, err)
	}
	db.SetMaxOpenConns(workers + 5)
	db.SetMaxIdleConns(workers + 2)
	db.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// Register adds queues to the client. Queues must be registered before Start.
func (c *Client) Register(queues ...backlite.Queue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range queues {
		c.backlite.Register(q)
		c.queues = append(c.queues, q.Config().Name)
	}
	sort.Strings(c.queues)
}

// Queues returns the names of the registered queues, sorted.
func (c *Client) Queues() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.queues...)
}

// Start launches the workers. Calling it again is a no-op.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	queues := strings.Join(c.queues, ", ")
	c.mu.Unlock()

	log.Printf("[TASK] %d workers serving queues: %s", c.config.Workers, queues)
	c.backlite.Start(ctx)
}

// Started reports whether Start was called.
func (c *Client) Started() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.started
}

// Stop waits for running tasks until ctx expires. It reports whether every
// worker finished in time.
func (c *Client) Stop(ctx context.Context) bool {
	if !c.Started() {
		return true
	}

	if !c.backlite.Stop(ctx) {
		log.Println("[TASK] Workers still busy at shutdown, pending imports resume on next start")
		return false
	}
	log.Println("[TASK] Workers stopped")
	return true
}

// Close releases the queue database. Call it after Stop.
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Add starts an operation to enqueue one or more tasks.
func (c *Client) Add(tasks ...backlite.Task) *backlite.TaskAddOp {
	return c.backlite.Add(tasks...)
}

// Status returns the status of a queued task.
func (c *Client) Status(ctx context.Context, taskID string) (backlite.TaskStatus, error) {
	return c.backlite.Status(ctx, taskID)
}

// queueLogger routes backlite logs through the standard logger.
type queueLogger struct{}

func (queueLogger) Info(message string, params ...any) {
	log.Printf("[TASK] "+message, params...)
}

func (queueLogger) Error(message string, params ...any) {
	log.Printf("[TASK] error: "+message, params...)
}

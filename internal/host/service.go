// Package host implements the map host the import orchestrator drives:
// collection storage, embedded copies, remote links and project replacement.
package host

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mrlokans/mapimport/internal/database/collections"
	"github.com/mrlokans/mapimport/internal/entities"
	"github.com/mrlokans/mapimport/internal/fetch"
	"github.com/mrlokans/mapimport/internal/importer"
)

// CollectionStore persists collections and their datasets.
type CollectionStore interface {
	Get(ctx context.Context, id string) (*entities.Collection, error)
	GetWithDatasets(ctx context.Context, id string) (*entities.Collection, error)
	Create(ctx context.Context, name string) (*entities.Collection, error)
	List(ctx context.Context) ([]entities.Collection, error)
	ListRemote(ctx context.Context) ([]entities.Collection, error)
	Empty(ctx context.Context, id string) error
	SetRemoteLink(ctx context.Context, id string, link entities.RemoteLink) error
	AddDataset(ctx context.Context, d *entities.Dataset) error
	StoreRemoteSnapshot(ctx context.Context, id string, data []byte, fetchedAt time.Time) error
	SetLoaded(ctx context.Context, id string, loaded bool) error
	ReplaceAll(ctx context.Context, project *entities.Project, collections []entities.Collection) error
}

// ProjectStore reads the current project settings.
type ProjectStore interface {
	Get(ctx context.Context) (*entities.Project, error)
}

// Fetcher downloads remote payloads.
type Fetcher interface {
	Get(ctx context.Context, url string, opts fetch.Options) ([]byte, error)
}

// EventLog records the outcome of imports.
type EventLog interface {
	LogImport(action, collectionID, description string, metadata map[string]any, err error)
	LogRefresh(collectionID, url string, size int, err error)
	LogProject(source, description string, layers int, err error)
}

// Archiver keeps a copy of payloads that failed to import.
type Archiver interface {
	SaveRejected(source, name string, data []byte, cause error) (string, error)
}

type Options struct {
	Collections CollectionStore
	Projects    ProjectStore
	Fetcher     Fetcher
	Events      EventLog
	Archive     Archiver
	Alerts      importer.Alerter
	Settings    importer.Settings
}

// Service implements importer.Host on top of the collection store.
type Service struct {
	collections CollectionStore
	projects    ProjectStore
	fetcher     Fetcher
	events      EventLog
	archive     Archiver
	alerts      importer.Alerter
	settings    importer.Settings
	dispatcher  Dispatcher
	now         func() time.Time
}

// NewService creates a service that runs ingestion jobs inline until
// SetDispatcher installs another dispatcher.
func NewService(opts Options) *Service {
	s := &Service{
		collections: opts.Collections,
		projects:    opts.Projects,
		fetcher:     opts.Fetcher,
		events:      opts.Events,
		archive:     opts.Archive,
		alerts:      opts.Alerts,
		settings:    opts.Settings,
		now:         time.Now,
	}
	if s.events == nil {
		s.events = nopEvents{}
	}
	if s.alerts == nil {
		s.alerts = importer.AlerterFunc(logAlert)
	}
	s.dispatcher = InlineDispatcher{Service: s}
	return s
}

func logAlert(level importer.Level, message string) {
	log.Printf("[IMPORT] %s: %s", level, message)
}

// SetDispatcher replaces the dispatcher used for ingestion and refresh jobs.
func (s *Service) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// WithAlerter returns a copy of the service reporting synchronous problems to
// alerts. Jobs run inline by the default dispatcher report there too; jobs
// handed to another dispatcher keep reporting to the service's own alerter.
func (s *Service) WithAlerter(alerts importer.Alerter) *Service {
	c := *s
	c.alerts = alerts
	if d, ok := s.dispatcher.(InlineDispatcher); ok && d.Service == s {
		c.dispatcher = InlineDispatcher{Service: &c}
	}
	return &c
}

// Settings returns the settings the orchestrator needs for remote links.
func (s *Service) Settings() importer.Settings {
	return s.settings
}

func (s *Service) GetCollection(ctx context.Context, id string) (*entities.Collection, error) {
	c, err := s.collections.Get(ctx, id)
	if errors.Is(err, collections.ErrNotFound) {
		return nil, importer.ErrCollectionNotFound
	}
	return c, err
}

// CollectionDetails returns a collection with its datasets.
func (s *Service) CollectionDetails(ctx context.Context, id string) (*entities.Collection, error) {
	c, err := s.collections.GetWithDatasets(ctx, id)
	if errors.Is(err, collections.ErrNotFound) {
		return nil, importer.ErrCollectionNotFound
	}
	return c, err
}

func (s *Service) ListCollections(ctx context.Context) ([]entities.Collection, error) {
	return s.collections.List(ctx)
}

func (s *Service) CreateCollection(ctx context.Context, name string) (*entities.Collection, error) {
	c, err := s.collections.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	log.Printf("[IMPORT] Created collection %s (%s)", c.ID, c.Name)
	return c, nil
}

func (s *Service) EmptyCollection(ctx context.Context, c *entities.Collection) error {
	if err := s.collections.Empty(ctx, c.ID); err != nil {
		return err
	}
	c.Datasets = nil
	return nil
}

func (s *Service) SetRemoteLink(ctx context.Context, c *entities.Collection, link entities.RemoteLink) error {
	return s.collections.SetRemoteLink(ctx, c.ID, link)
}

// Project returns the current project settings, nil when none was imported.
func (s *Service) Project(ctx context.Context) (*entities.Project, error) {
	if s.projects == nil {
		return nil, nil
	}
	return s.projects.Get(ctx)
}

// RequestDueRefreshes queues a refresh for every remote collection whose
// snapshot is older than its refresh interval. It returns the number of
// refreshes requested.
func (s *Service) RequestDueRefreshes(ctx context.Context) (int, error) {
	remote, err := s.collections.ListRemote(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	requested := 0
	for i := range remote {
		if !remote[i].NeedsRefresh(now) {
			continue
		}
		if err := s.dispatcher.DispatchRefresh(ctx, RefreshJob{CollectionID: remote[i].ID}); err != nil {
			log.Printf("[REFRESH] Failed to queue refresh of %s: %v", remote[i].ID, err)
			continue
		}
		requested++
	}
	return requested, nil
}

type nopEvents struct{}

func (nopEvents) LogImport(string, string, string, map[string]any, error) {}
func (nopEvents) LogRefresh(string, string, int, error)                  {}
func (nopEvents) LogProject(string, string, int, error)                  {}

func describe(c *entities.Collection) string {
	return fmt.Sprintf("%s (%s)", c.Name, c.ID)
}

package importer

import (
	"context"
	"time"

	"github.com/mrlokans/mapimport/internal/entities"
	"github.com/mrlokans/mapimport/internal/formats"
)

// ProjectImporter replaces the whole map from a native project payload. The
// implementation owns the atomicity of the replacement.
type ProjectImporter interface {
	ImportProjectFile(ctx context.Context, file formats.File) error
	ImportProjectRaw(ctx context.Context, raw string) error
	ImportProjectURL(ctx context.Context, url string) error
}

// Ingester accepts per-collection ingestion requests. Calls return once the
// request is accepted; failures while ingesting are handled by the host.
//
// IngestFile receives formats.Unset when the selected files did not agree on a
// format; the host then deduces the format of that file itself.
type Ingester interface {
	IngestFile(ctx context.Context, target *entities.Collection, file formats.File, format formats.Format)
	IngestRaw(ctx context.Context, target *entities.Collection, raw string, format formats.Format)
	IngestURL(ctx context.Context, target *entities.Collection, url string, format formats.Format)
	FetchRemote(ctx context.Context, target *entities.Collection, force bool)
}

// Collections gives access to the host's collections.
type Collections interface {
	GetCollection(ctx context.Context, id string) (*entities.Collection, error)
	ListCollections(ctx context.Context) ([]entities.Collection, error)
	CreateCollection(ctx context.Context, name string) (*entities.Collection, error)
	EmptyCollection(ctx context.Context, c *entities.Collection) error
	SetRemoteLink(ctx context.Context, c *entities.Collection, link entities.RemoteLink) error
}

// Host is everything the orchestrator needs from the map host.
type Host interface {
	ProjectImporter
	Ingester
	Collections
}

// Level is the severity of a user-facing alert.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Alerter is the user-facing notification sink.
type Alerter interface {
	Alert(level Level, message string)
}

// AlerterFunc adapts a function to Alerter.
type AlerterFunc func(level Level, message string)

func (f AlerterFunc) Alert(level Level, message string) { f(level, message) }

// Settings carries host configuration the orchestrator passes through when
// registering remote links.
type Settings struct {
	ProxyEnabled           bool
	DefaultRefreshInterval time.Duration
}

package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrlokans/mapimport/internal/entities"
	"github.com/mrlokans/mapimport/internal/formats"
)

type hostCall struct {
	Op         string
	Collection string
	Arg        string
	Format     formats.Format
	Force      bool
}

type fakeHost struct {
	collections []*entities.Collection
	calls       []hostCall

	projectErr   error
	projectPanic bool
	emptyErr     error
	linkErr      error
	getErr       error
}

func newFakeHost(existing ...*entities.Collection) *fakeHost {
	return &fakeHost{collections: existing}
}

func (h *fakeHost) record(c hostCall) {
	h.calls = append(h.calls, c)
}

func (h *fakeHost) ops() []string {
	ops := make([]string, len(h.calls))
	for i, c := range h.calls {
		ops[i] = c.Op
	}
	return ops
}

func (h *fakeHost) ImportProjectFile(_ context.Context, file formats.File) error {
	h.record(hostCall{Op: "project_file", Arg: file.Name})
	return h.projectResult()
}

func (h *fakeHost) ImportProjectRaw(_ context.Context, raw string) error {
	h.record(hostCall{Op: "project_raw", Arg: raw})
	return h.projectResult()
}

func (h *fakeHost) ImportProjectURL(_ context.Context, url string) error {
	h.record(hostCall{Op: "project_url", Arg: url})
	return h.projectResult()
}

func (h *fakeHost) projectResult() error {
	if h.projectPanic {
		panic("unexpected token")
	}
	return h.projectErr
}

func (h *fakeHost) IngestFile(_ context.Context, target *entities.Collection, file formats.File, format formats.Format) {
	h.record(hostCall{Op: "ingest_file", Collection: target.ID, Arg: file.Name, Format: format})
}

func (h *fakeHost) IngestRaw(_ context.Context, target *entities.Collection, raw string, format formats.Format) {
	h.record(hostCall{Op: "ingest_raw", Collection: target.ID, Arg: raw, Format: format})
}

func (h *fakeHost) IngestURL(_ context.Context, target *entities.Collection, url string, format formats.Format) {
	h.record(hostCall{Op: "ingest_url", Collection: target.ID, Arg: url, Format: format})
}

func (h *fakeHost) FetchRemote(_ context.Context, target *entities.Collection, force bool) {
	h.record(hostCall{Op: "fetch_remote", Collection: target.ID, Force: force})
}

func (h *fakeHost) GetCollection(_ context.Context, id string) (*entities.Collection, error) {
	if h.getErr != nil {
		return nil, h.getErr
	}
	for _, c := range h.collections {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, ErrCollectionNotFound
}

func (h *fakeHost) ListCollections(_ context.Context) ([]entities.Collection, error) {
	out := make([]entities.Collection, len(h.collections))
	for i, c := range h.collections {
		out[i] = *c
	}
	return out, nil
}

func (h *fakeHost) CreateCollection(_ context.Context, name string) (*entities.Collection, error) {
	c := &entities.Collection{ID: fmt.Sprintf("created-%d", len(h.collections)+1), Name: name, Loaded: true}
	h.collections = append(h.collections, c)
	h.record(hostCall{Op: "create", Collection: c.ID, Arg: name})
	return c, nil
}

func (h *fakeHost) EmptyCollection(_ context.Context, c *entities.Collection) error {
	h.record(hostCall{Op: "empty", Collection: c.ID})
	return h.emptyErr
}

func (h *fakeHost) SetRemoteLink(_ context.Context, c *entities.Collection, link entities.RemoteLink) error {
	if h.linkErr != nil {
		return h.linkErr
	}
	h.record(hostCall{Op: "set_remote", Collection: c.ID, Arg: link.URL, Format: formats.Format(link.Format)})
	c.Remote = link
	return nil
}

var _ Host = (*fakeHost)(nil)

type recordedAlert struct {
	Level   Level
	Message string
}

type alertRecorder struct {
	alerts []recordedAlert
}

func (a *alertRecorder) Alert(level Level, message string) {
	a.alerts = append(a.alerts, recordedAlert{Level: level, Message: message})
}

var errBoom = errors.New("boom")

package importer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mrlokans/mapimport/internal/entities"
)

// Action is the ingestion mode chosen for a request.
type Action string

const (
	ActionNone    Action = "none"
	ActionProject Action = "project"
	ActionCopy    Action = "copy"
	ActionLink    Action = "link"
)

// State is the orchestrator state reached by a submission. Idle means nothing
// was dispatched.
type State string

const (
	StateIdle        State = "idle"
	StateValidating  State = "validating"
	StateDispatching State = "dispatching"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
)

// Result describes what a submission did.
type Result struct {
	Action     Action
	State      State
	Source     SourceKind
	Collection *entities.Collection

	// Err holds the cause of a failed project import. It is reported through
	// the Alerter and never returned from Submit.
	Err error
}

// rule is one row of the decision table.
type rule struct {
	name     string
	matches  func(Request) bool
	dispatch func(context.Context, Request) (Result, error)
}

// Orchestrator validates import requests and dispatches them to the host.
type Orchestrator struct {
	host         Host
	destinations *Destinations
	alerts       Alerter
	settings     Settings
	rules        []rule
}

// New creates an orchestrator. The rules are evaluated in order and the first
// match wins.
func New(host Host, alerts Alerter, settings Settings) *Orchestrator {
	o := &Orchestrator{
		host:         host,
		destinations: NewDestinations(host),
		alerts:       alerts,
		settings:     settings,
	}
	o.rules = []rule{
		{
			name:     "project",
			matches:  func(r Request) bool { return r.Format.IsProject() },
			dispatch: o.importProject,
		},
		{
			name:     "copy",
			matches:  func(r Request) bool { return r.URL == "" },
			dispatch: o.copy,
		},
		{
			name:     "copy from url",
			matches:  func(r Request) bool { return r.Mode == ModeCopy },
			dispatch: o.copy,
		},
		{
			name:     "link",
			matches:  func(r Request) bool { return r.Mode == ModeLink },
			dispatch: o.link,
		},
	}
	return o
}

// Submit snapshots the surface and executes the resulting request.
func (o *Orchestrator) Submit(ctx context.Context, s Surface) (Result, error) {
	return o.Execute(ctx, Snapshot(s))
}

// Execute runs a single request through the decision table.
//
// Validation problems are alerted and returned as *ValidationError. Project
// import failures are alerted and reported in Result.Err only. Errors the
// orchestrator hits while preparing the destination are returned.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (Result, error) {
	for _, r := range o.rules {
		if r.matches(req) {
			log.Printf("[IMPORT] request matched %q (source: %s, format: %q)", r.name, req.Source(), req.Format)
			return r.dispatch(ctx, req)
		}
	}
	log.Printf("[IMPORT] URL given without an import mode, nothing dispatched")
	return idle(req), nil
}

func idle(req Request) Result {
	return Result{Action: ActionNone, State: StateIdle, Source: req.Source()}
}

func (o *Orchestrator) invalid(res Result, err *ValidationError) (Result, error) {
	o.alerts.Alert(LevelError, err.Message)
	res.State = StateFailed
	return res, err
}

func (o *Orchestrator) importProject(ctx context.Context, req Request) (Result, error) {
	res := Result{Action: ActionProject, Source: req.Source()}
	if res.Source == SourceNone {
		return idle(req), nil
	}

	log.Printf("[IMPORT] replacing project from %s", res.Source)
	if err := o.runProjectImport(ctx, req); err != nil {
		log.Printf("[IMPORT] project import from %s failed: %v", res.Source, err)
		o.alerts.Alert(LevelError, MsgInvalidProjectData)
		res.State = StateFailed
		res.Err = err
		return res, nil
	}

	res.State = StateSucceeded
	return res, nil
}

// runProjectImport hands the active source to the host. A panic in the host
// routine is treated like any other failure.
func (o *Orchestrator) runProjectImport(ctx context.Context, req Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("project import panicked: %v", r)
		}
	}()

	switch req.Source() {
	case SourceFiles:
		for _, f := range req.Files {
			if err := o.host.ImportProjectFile(ctx, f); err != nil {
				return fmt.Errorf("import %s: %w", f.Name, err)
			}
		}
		return nil
	case SourceRaw:
		return o.host.ImportProjectRaw(ctx, req.Raw)
	case SourceURL:
		return o.host.ImportProjectURL(ctx, req.URL)
	}
	return nil
}

func (o *Orchestrator) copy(ctx context.Context, req Request) (Result, error) {
	res := Result{Action: ActionCopy, Source: req.Source()}
	if !req.Format.IsSet() && len(req.Files) == 0 {
		return o.invalid(res, formatRequired())
	}
	if res.Source == SourceNone {
		return idle(req), nil
	}

	target, err := o.destinations.Resolve(ctx, req.DestinationID, req.LayerName)
	if err != nil {
		res.State = StateFailed
		return res, err
	}
	res.Collection = target

	if req.ClearExisting {
		if err := o.host.EmptyCollection(ctx, target); err != nil {
			res.State = StateFailed
			return res, fmt.Errorf("empty collection %s: %w", target.ID, err)
		}
	}

	switch res.Source {
	case SourceFiles:
		for _, f := range req.Files {
			o.host.IngestFile(ctx, target, f, req.Format)
		}
	case SourceRaw:
		o.host.IngestRaw(ctx, target, req.Raw, req.Format)
	case SourceURL:
		o.host.IngestURL(ctx, target, req.URL, req.Format)
	}

	log.Printf("[IMPORT] copy from %s dispatched to collection %s (%s)", res.Source, target.ID, target.Name)
	res.State = StateSucceeded
	return res, nil
}

func (o *Orchestrator) link(ctx context.Context, req Request) (Result, error) {
	res := Result{Action: ActionLink, Source: SourceURL}
	if !req.Format.IsSet() {
		return o.invalid(res, formatRequired())
	}

	target, err := o.destinations.Resolve(ctx, req.DestinationID, req.LayerName)
	if err != nil {
		res.State = StateFailed
		return res, err
	}
	res.Collection = target

	link := entities.RemoteLink{URL: req.URL, Format: req.Format.String()}
	if o.settings.ProxyEnabled {
		link.Proxied = true
		link.RefreshIntervalSeconds = int(o.settings.DefaultRefreshInterval / time.Second)
	}
	if err := o.host.SetRemoteLink(ctx, target, link); err != nil {
		res.State = StateFailed
		return res, fmt.Errorf("link collection %s: %w", target.ID, err)
	}
	target.Remote = link

	o.host.FetchRemote(ctx, target, true)

	log.Printf("[IMPORT] collection %s (%s) linked to %s", target.ID, target.Name, req.URL)
	res.State = StateSucceeded
	return res, nil
}

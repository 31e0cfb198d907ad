package importer

import (
	"strings"

	"github.com/mrlokans/mapimport/internal/formats"
)

// SourceKind identifies which of the mutually exclusive sources is active.
type SourceKind string

const (
	SourceNone  SourceKind = "none"
	SourceFiles SourceKind = "files"
	SourceRaw   SourceKind = "raw"
	SourceURL   SourceKind = "url"
)

// Request is a consistent snapshot of a Surface taken once per submission.
type Request struct {
	Files         []formats.File
	Raw           string
	URL           string
	Format        formats.Format
	DestinationID string
	ClearExisting bool
	Mode          Mode
	LayerName     string
}

// Snapshot reads every field of the surface exactly once.
func Snapshot(s Surface) Request {
	return Request{
		Files:         s.Files(),
		Raw:           s.Raw(),
		URL:           strings.TrimSpace(s.URL()),
		Format:        s.Format(),
		DestinationID: strings.TrimSpace(s.DestinationID()),
		ClearExisting: s.ClearExisting(),
		Mode:          s.Mode(),
		LayerName:     strings.TrimSpace(s.LayerName()),
	}
}

// Source returns the active source: files, else raw text, else URL.
func (r Request) Source() SourceKind {
	switch {
	case len(r.Files) > 0:
		return SourceFiles
	case r.Raw != "":
		return SourceRaw
	case r.URL != "":
		return SourceURL
	}
	return SourceNone
}

// WantsNewDestination reports whether the request targets a new collection.
func (r Request) WantsNewDestination() bool {
	return r.DestinationID == "" || r.DestinationID == NewDestination
}

// FileNames lists the names of the selected files.
func (r Request) FileNames() []string {
	names := make([]string, len(r.Files))
	for i, f := range r.Files {
		names[i] = f.Name
	}
	return names
}

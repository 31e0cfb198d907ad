package importer

import (
	"github.com/mrlokans/mapimport/internal/formats"
)

// Mode selects how a URL source is ingested.
type Mode string

const (
	ModeUnset Mode = ""
	ModeCopy  Mode = "copy"
	ModeLink  Mode = "link"
)

// ParseMode accepts "", "copy" and "link".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeUnset, ModeCopy, ModeLink:
		return Mode(s), nil
	}
	return ModeUnset, &ValidationError{Message: "Unknown import mode: " + s, Err: ErrInvalidMode}
}

// Field names reported to change listeners.
const (
	FieldURL         = "url"
	FieldFormat      = "format"
	FieldFiles       = "files"
	FieldRaw         = "raw"
	FieldClear       = "clear"
	FieldMode        = "mode"
	FieldDestination = "destination"
	FieldLayerName   = "layer_name"
)

// NewDestination is the destination id asking for a new collection. The empty
// string means the same.
const NewDestination = "new"

// Surface is the set of dialog fields the importer reads on submission and
// that quick-import plugins write to.
type Surface interface {
	URL() string
	SetURL(string)
	Format() formats.Format
	SetFormat(formats.Format)
	Files() []formats.File
	SetFiles([]formats.File)
	Raw() string
	SetRaw(string)
	ClearExisting() bool
	SetClearExisting(bool)
	Mode() Mode
	SetMode(Mode)
	DestinationID() string
	SetDestinationID(string)
	// LayerName names the collection created when the destination is new.
	LayerName() string
	SetLayerName(string)
}

// Draft holds the serializable fields of a Form. Files are never part of a
// draft; they only live for the request that uploaded them.
type Draft struct {
	URL           string         `json:"url"`
	Format        formats.Format `json:"format"`
	Raw           string         `json:"raw"`
	ClearExisting bool           `json:"clear"`
	Mode          Mode           `json:"mode"`
	DestinationID string         `json:"destination"`
	LayerName     string         `json:"layer_name,omitempty"`
}

// Form is an in-memory Surface. Every write calls OnChange with the field
// name, and replacing the file selection re-runs format resolution.
//
// A Form is not safe for concurrent use.
type Form struct {
	draft    Draft
	files    []formats.File
	OnChange func(field string)
}

// NewForm returns a Form initialised from a draft.
func NewForm(d Draft) *Form {
	return &Form{draft: d}
}

// Draft returns the serializable part of the form.
func (f *Form) Draft() Draft { return f.draft }

func (f *Form) changed(field string) {
	if f.OnChange != nil {
		f.OnChange(field)
	}
}

func (f *Form) URL() string { return f.draft.URL }

func (f *Form) SetURL(url string) {
	f.draft.URL = url
	f.changed(FieldURL)
}

func (f *Form) Format() formats.Format { return f.draft.Format }

func (f *Form) SetFormat(format formats.Format) {
	f.draft.Format = format
	f.changed(FieldFormat)
}

func (f *Form) Files() []formats.File { return f.files }

// SetFiles replaces the file selection and resolves the format of the new
// set. An ambiguous set leaves the format unset so the user has to choose.
func (f *Form) SetFiles(files []formats.File) {
	f.files = files
	f.changed(FieldFiles)
	f.SetFormat(formats.Resolve(files))
}

func (f *Form) Raw() string { return f.draft.Raw }

func (f *Form) SetRaw(raw string) {
	f.draft.Raw = raw
	f.changed(FieldRaw)
}

func (f *Form) ClearExisting() bool { return f.draft.ClearExisting }

func (f *Form) SetClearExisting(clear bool) {
	f.draft.ClearExisting = clear
	f.changed(FieldClear)
}

func (f *Form) Mode() Mode { return f.draft.Mode }

func (f *Form) SetMode(mode Mode) {
	f.draft.Mode = mode
	f.changed(FieldMode)
}

func (f *Form) DestinationID() string { return f.draft.DestinationID }

func (f *Form) SetDestinationID(id string) {
	f.draft.DestinationID = id
	f.changed(FieldDestination)
}

func (f *Form) LayerName() string { return f.draft.LayerName }

func (f *Form) SetLayerName(name string) {
	f.draft.LayerName = name
	f.changed(FieldLayerName)
}

// ClearSources drops the files, pasted text, URL and layer name once a
// submission was dispatched. Format, mode and destination are kept.
func (f *Form) ClearSources() {
	f.files = nil
	f.SetRaw("")
	f.SetURL("")
	f.SetLayerName("")
}

// UseURL makes url the active source of s, dropping any selected files and
// pasted text that would otherwise take precedence over it. A dropped file
// selection also resets the format, so callers set it afterwards.
func UseURL(s Surface, url string) {
	if len(s.Files()) > 0 {
		s.SetFiles(nil)
	}
	if s.Raw() != "" {
		s.SetRaw("")
	}
	s.SetURL(url)
}

var _ Surface = (*Form)(nil)

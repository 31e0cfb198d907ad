package importer

import "errors"

// User-facing messages.
const (
	MsgChooseFormat       = "Please choose a format"
	MsgInvalidProjectData = "Invalid project data"
)

var (
	ErrFormatRequired = errors.New("format required")
	ErrInvalidMode    = errors.New("invalid mode")
)

// ValidationError is a recoverable problem with the request itself. Its
// message is shown to the user as is.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

func formatRequired() *ValidationError {
	return &ValidationError{Message: MsgChooseFormat, Err: ErrFormatRequired}
}

// ErrCollectionNotFound is returned by Collections.GetCollection for unknown ids.
var ErrCollectionNotFound = errors.New("collection not found")

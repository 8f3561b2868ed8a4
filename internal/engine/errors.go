package engine

import "errors"

// Error codes carried by ERROR responses. Hosts map them to transport
// semantics (HTTP status, client toast) without parsing messages.
const (
	CodeNoDataset      = "NO_DATASET"
	CodeBadCommand     = "BAD_COMMAND"
	CodeUnknownCommand = "UNKNOWN_COMMAND"
	CodeUnknownFormat  = "UNKNOWN_FORMAT"
	CodeBadRequest     = "BAD_REQUEST"
	CodeInternal       = "INTERNAL"
)

// errorCode classifies a command failure for its ERROR response.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrNoDataset):
		return CodeNoDataset
	case errors.Is(err, ErrUnknownCommand):
		return CodeUnknownCommand
	case errors.Is(err, ErrUnknownFormat):
		return CodeUnknownFormat
	case errors.Is(err, ErrBadCommand):
		return CodeBadCommand
	default:
		return CodeInternal
	}
}

// Sentinel errors surfaced through ERROR responses. Callers match them with
// errors.Is to choose a user-facing message.
var (
	// ErrNoDataset rejects operations before the first load.
	ErrNoDataset = errors.New("no dataset loaded")

	// ErrBadCommand marks a command that parsed far enough to recognize
	// the verb but had malformed arguments.
	ErrBadCommand = errors.New("malformed command")

	// ErrUnknownCommand marks an unrecognized verb in strict mode. The
	// default lenient mode logs and passes the view through instead.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrUnknownFormat rejects EXPORT with an unsupported format name.
	ErrUnknownFormat = errors.New("unknown export format")

	// ErrClosed rejects requests after the engine has shut down.
	ErrClosed = errors.New("engine closed")
)

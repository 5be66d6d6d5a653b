package ingest

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport marks a network failure or a non-success status from the host.
	ErrTransport = errors.New("transport error")
	// ErrCredentialsRejected marks an export call the host refused (401/403).
	ErrCredentialsRejected = errors.New("credentials rejected")
	// ErrMalformedDataset marks an export body that is not UTF-8 CSV text.
	ErrMalformedDataset = errors.New("malformed dataset")
)

// Stage names the step of a load that failed.
type Stage string

const (
	StageSharePage Stage = "share_page"
	StageExport    Stage = "export"
	StageNormalize Stage = "normalize"
)

// StatusError is returned by fetchers for non-2xx responses.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// StageError is the terminal error of a load. It never carries request URLs
// because the export URL embeds session credentials.
type StageError struct {
	Stage      Stage
	StatusCode int
	Err        error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func transportError(stage Stage, err error) error {
	se := &StageError{Stage: stage, Err: fmt.Errorf("%w: %w", ErrTransport, err)}

	var status *StatusError
	if errors.As(err, &status) {
		se.StatusCode = status.StatusCode
		if stage == StageExport && (status.StatusCode == http.StatusUnauthorized || status.StatusCode == http.StatusForbidden) {
			se.Err = fmt.Errorf("%w: %w: %w", ErrTransport, ErrCredentialsRejected, err)
		}
	}
	return se
}

func malformedError(err error) error {
	if !errors.Is(err, ErrMalformedDataset) {
		err = fmt.Errorf("%w: %w", ErrMalformedDataset, err)
	}
	return &StageError{Stage: StageNormalize, Err: err}
}

// ErrorKind classifies a load error for operators: "credentials", "transport",
// "malformed" or "unknown".
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrCredentialsRejected):
		return "credentials"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrMalformedDataset):
		return "malformed"
	default:
		return "unknown"
	}
}

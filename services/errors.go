package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ValidationError carries every user-correctable problem found in a form.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// LocalStoreError wraps an I/O failure of the local file store.
type LocalStoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *LocalStoreError) Error() string {
	return fmt.Sprintf("local store: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *LocalStoreError) Unwrap() error { return e.Err }

// RemoteStep names the remote call that failed.
type RemoteStep string

const (
	StepToken    RemoteStep = "token"
	StepSite     RemoteStep = "site"
	StepMetadata RemoteStep = "metadata"
	StepDownload RemoteStep = "download"
	StepUpload   RemoteStep = "upload"
)

// maxErrorBody caps how much of a failed response body is kept.
const maxErrorBody = 4096

// RemoteError is a failed call to the identity endpoint or the document host.
// StatusCode is zero when no response was received.
type RemoteError struct {
	Step       RemoteStep
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s failed: status %d body %s", e.Step, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("remote %s failed: %v", e.Step, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// IsAuth reports whether the failure is an authentication problem: the token
// request failed or the host rejected the bearer token.
func (e *RemoteError) IsAuth() bool {
	return e.Step == StepToken || e.StatusCode == http.StatusUnauthorized
}

// ErrExportConflict is wrapped by the upload RemoteError when the export
// was created or changed between download and upload.
var ErrExportConflict = errors.New("export was modified concurrently")

func truncateBody(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return strings.TrimSpace(string(body))
}

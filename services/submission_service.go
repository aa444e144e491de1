package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"route-feedback-api/config"
	"route-feedback-api/models"
)

// SinkStatus is the result of one persistence sink for one submission.
type SinkStatus string

const (
	SinkSucceeded     SinkStatus = "succeeded"
	SinkFailed        SinkStatus = "failed"
	SinkNotConfigured SinkStatus = "not_configured"
	SinkSkipped       SinkStatus = "skipped"
)

// Sink names used in outcomes, metrics and alerts.
const (
	SinkLocalSave        = "local_save"
	SinkAttachmentUpload = "attachment_upload"
	SinkExportSync       = "export_sync"
)

// Error kinds attached to failed sinks.
const (
	ErrorKindLocalStore      = "local_store"
	ErrorKindRemoteAuth      = "remote_auth"
	ErrorKindRemoteTransport = "remote_transport"
	ErrorKindConfiguration   = "configuration"
	ErrorKindConflict        = "conflict"
)

// SinkOutcome records what happened to one sink.
type SinkOutcome struct {
	Status     SinkStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
	ErrorKind  string     `json:"error_kind,omitempty"`
	StatusCode int        `json:"status_code,omitempty"`
}

func (o SinkOutcome) ok() bool { return o.Status == SinkSucceeded }

// SubmissionOutcome is the composite result of an accepted submission.
type SubmissionOutcome struct {
	SubmissionID          string            `json:"submission_id"`
	Submission            models.Submission `json:"submission"`
	LocalPath             string            `json:"local_path,omitempty"`
	RemoteAttachmentPaths []string          `json:"remote_attachment_paths"`
	LocalSave             SinkOutcome       `json:"local_save"`
	AttachmentUpload      SinkOutcome       `json:"attachment_upload"`
	ExportSync            SinkOutcome       `json:"export_sync"`
	CompletedAt           time.Time         `json:"completed_at"`
}

func (o *SubmissionOutcome) sinks() map[string]SinkOutcome {
	return map[string]SinkOutcome{
		SinkLocalSave:        o.LocalSave,
		SinkAttachmentUpload: o.AttachmentUpload,
		SinkExportSync:       o.ExportSync,
	}
}

// Persisted reports whether the submission reached at least one store.
func (o *SubmissionOutcome) Persisted() bool {
	return o.LocalSave.ok() || o.ExportSync.ok()
}

// Failed reports whether any attempted sink failed. A sink that was not
// configured or had nothing to do is not a failure.
func (o *SubmissionOutcome) Failed() bool {
	for _, s := range o.sinks() {
		if s.Status == SinkFailed {
			return true
		}
	}
	return false
}

// Outcome summarizes the composite result as succeeded, partial or failed.
func (o *SubmissionOutcome) Outcome() string {
	switch {
	case !o.Persisted():
		return "failed"
	case o.Failed() || o.ExportSync.Status == SinkNotConfigured:
		return "partial"
	default:
		return "succeeded"
	}
}

// Message enumerates every sink with its error text so an operator can
// recover manually, for example from the local JSON file.
func (o *SubmissionOutcome) Message() string {
	lines := []string{fmt.Sprintf("Submission %s:", o.SubmissionID)}
	describe := func(label string, s SinkOutcome) {
		switch s.Status {
		case SinkSucceeded:
			lines = append(lines, label+": saved")
		case SinkSkipped:
			lines = append(lines, label+": nothing to do")
		case SinkNotConfigured:
			lines = append(lines, label+": not configured ("+s.Error+")")
		default:
			lines = append(lines, label+": FAILED ("+s.Error+")")
		}
	}
	describe("Local save", o.LocalSave)
	describe("Attachment upload", o.AttachmentUpload)
	describe("Export sync", o.ExportSync)
	return strings.Join(lines, "\n")
}

// LocalSink persists a submission on local storage.
type LocalSink interface {
	Save(sub models.Submission, files []models.AttachmentFile) (*LocalSaveResult, error)
}

// RemoteSink keeps the remote export and attachment folder up to date.
type RemoteSink interface {
	SyncAttachments(ctx context.Context, files []models.AttachmentFile, submissionID string, id models.IdentityFields) ([]string, error)
	SyncExcel(ctx context.Context, rec Record) error
}

// OutcomeRecorder keeps a durable trace of each accepted submission.
type OutcomeRecorder interface {
	Record(outcome *SubmissionOutcome) error
}

// FailureNotifier is told about submissions with a failed sink.
type FailureNotifier interface {
	NotifyFailure(outcome *SubmissionOutcome) error
}

// SubmissionService validates a form and fans the resulting submission out to
// the local store, the remote attachment folder and the remote export.
type SubmissionService struct {
	policy   FormPolicy
	builder  *PayloadBuilder
	local    LocalSink
	remote   RemoteSink
	recorder OutcomeRecorder
	notifier FailureNotifier
}

// NewSubmissionService wires a service. remote, recorder and notifier may be nil.
func NewSubmissionService(policy FormPolicy, builder *PayloadBuilder, local LocalSink, remote RemoteSink, recorder OutcomeRecorder, notifier FailureNotifier) *SubmissionService {
	if builder == nil {
		builder = NewPayloadBuilder(nil)
	}
	return &SubmissionService{
		policy:   policy,
		builder:  builder,
		local:    local,
		remote:   remote,
		recorder: recorder,
		notifier: notifier,
	}
}

// Policy returns the form policy submissions are validated against.
func (s *SubmissionService) Policy() FormPolicy { return s.policy }

// Submit validates form and, when it is valid, attempts every sink in turn.
// A *ValidationError means nothing was persisted. Otherwise the outcome lists
// each sink's result; one sink failing never stops the others. The form is
// reset to its defaults once the submission reached any store.
func (s *SubmissionService) Submit(ctx context.Context, form *models.FormState) (*SubmissionOutcome, error) {
	fields, errs := ValidateForm(form, s.policy)
	if len(errs) > 0 {
		submissionsTotal.WithLabelValues("rejected").Inc()
		return nil, &ValidationError{Messages: errs}
	}

	ctx = persistentContext(ctx)
	sub := s.builder.Build(fields)
	outcome := &SubmissionOutcome{
		SubmissionID:          sub.SubmissionID,
		Submission:            sub,
		RemoteAttachmentPaths: []string{},
	}

	outcome.LocalSave = s.saveLocal(sub, fields.Attachments, outcome)
	outcome.AttachmentUpload = s.uploadAttachments(ctx, sub, fields.Attachments, outcome)
	outcome.ExportSync = s.syncExport(ctx, sub, outcome.RemoteAttachmentPaths)
	outcome.CompletedAt = time.Now().UTC()

	log.Printf("submission: %s outcome=%s local=%s attachments=%s export=%s",
		sub.SubmissionID, outcome.Outcome(), outcome.LocalSave.Status, outcome.AttachmentUpload.Status, outcome.ExportSync.Status)

	statuses := make(map[string]SinkStatus, 3)
	for name, sink := range outcome.sinks() {
		statuses[name] = sink.Status
	}
	observeSubmission(outcome.Outcome(), statuses)

	if s.recorder != nil {
		if err := s.recorder.Record(outcome); err != nil {
			log.Printf("submission: ledger write for %s failed: %v", sub.SubmissionID, err)
		}
	}
	if outcome.Failed() && s.notifier != nil {
		if err := s.notifier.NotifyFailure(outcome); err != nil {
			log.Printf("submission: failure alert for %s not sent: %v", sub.SubmissionID, err)
		}
	}

	if outcome.Persisted() {
		form.Reset()
	}
	return outcome, nil
}

func (s *SubmissionService) saveLocal(sub models.Submission, files []models.AttachmentFile, outcome *SubmissionOutcome) SinkOutcome {
	if s.local == nil {
		return SinkOutcome{Status: SinkNotConfigured, Error: "local store disabled", ErrorKind: ErrorKindConfiguration}
	}
	res, err := s.local.Save(sub, files)
	if res != nil {
		outcome.LocalPath = res.RecordPath
	}
	if err != nil {
		log.Printf("submission: local save of %s failed: %v", sub.SubmissionID, err)
		return failedSink(err)
	}
	return SinkOutcome{Status: SinkSucceeded}
}

// uploadAttachments runs independently of the export: an upload failure is
// reported but the export row is still written, carrying whatever paths made it.
func (s *SubmissionService) uploadAttachments(ctx context.Context, sub models.Submission, files []models.AttachmentFile, outcome *SubmissionOutcome) SinkOutcome {
	if len(files) == 0 {
		return SinkOutcome{Status: SinkSkipped}
	}
	if s.remote == nil {
		return SinkOutcome{Status: SinkNotConfigured, Error: "remote sync disabled", ErrorKind: ErrorKindConfiguration}
	}
	paths, err := s.remote.SyncAttachments(ctx, files, sub.SubmissionID, sub.Identity())
	outcome.RemoteAttachmentPaths = append(outcome.RemoteAttachmentPaths, paths...)
	if err != nil {
		log.Printf("submission: attachment upload of %s failed after %d file(s): %v", sub.SubmissionID, len(paths), err)
		return failedSink(err)
	}
	return SinkOutcome{Status: SinkSucceeded}
}

func (s *SubmissionService) syncExport(ctx context.Context, sub models.Submission, remotePaths []string) SinkOutcome {
	if s.remote == nil {
		return SinkOutcome{Status: SinkNotConfigured, Error: "remote sync disabled", ErrorKind: ErrorKindConfiguration}
	}
	if err := s.remote.SyncExcel(ctx, RemoteExportRecord(sub, remotePaths)); err != nil {
		log.Printf("submission: export sync of %s failed: %v", sub.SubmissionID, err)
		return failedSink(err)
	}
	return SinkOutcome{Status: SinkSucceeded}
}

// RemoteExportRecord is the row written to the remote export for sub.
func RemoteExportRecord(sub models.Submission, remotePaths []string) Record {
	return ExportRecord(sub, ListColumn("sp_attachments", remotePaths))
}

// failedSink classifies a sink error. A missing remote setting is reported as
// not configured rather than failed.
func failedSink(err error) SinkOutcome {
	var cfgErr *config.ConfigurationError
	if errors.As(err, &cfgErr) {
		return SinkOutcome{Status: SinkNotConfigured, Error: cfgErr.Error(), ErrorKind: ErrorKindConfiguration}
	}

	out := SinkOutcome{Status: SinkFailed, Error: err.Error()}
	var remoteErr *RemoteError
	var localErr *LocalStoreError
	switch {
	case errors.Is(err, ErrExportConflict):
		out.ErrorKind = ErrorKindConflict
		if errors.As(err, &remoteErr) {
			out.StatusCode = remoteErr.StatusCode
		}
	case errors.As(err, &remoteErr):
		out.StatusCode = remoteErr.StatusCode
		out.ErrorKind = ErrorKindRemoteTransport
		if remoteErr.IsAuth() {
			out.ErrorKind = ErrorKindRemoteAuth
		}
	case errors.As(err, &localErr):
		out.ErrorKind = ErrorKindLocalStore
	}
	return out
}

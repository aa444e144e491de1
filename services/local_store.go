package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"route-feedback-api/models"
	"route-feedback-api/utils"
)

const attachmentsDirName = "attachments"

// StoredSubmission is the content of one local submission file.
type StoredSubmission struct {
	models.Submission
	Attachments []string `json:"attachments"`
}

// LocalSaveResult lists what the local store wrote.
type LocalSaveResult struct {
	RecordPath      string
	AttachmentPaths []string
}

// LocalStore keeps one JSON file per submission under dir, attachment bytes
// under dir/attachments, and optionally a local xlsx export.
type LocalStore struct {
	dir        string
	exportPath string

	// exportMu serialises read-modify-write of the local export file.
	exportMu sync.Mutex
}

// NewLocalStore returns a store rooted at dir. An empty exportPath disables
// the local export.
func NewLocalStore(dir, exportPath string) *LocalStore {
	return &LocalStore{dir: dir, exportPath: exportPath}
}

func (s *LocalStore) Dir() string { return s.dir }

// ExportPath is the local export file, or "" when disabled.
func (s *LocalStore) ExportPath() string { return s.exportPath }

func (s *LocalStore) attachmentsDir() string {
	return filepath.Join(s.dir, attachmentsDirName)
}

// Save writes the attachments, then the submission file, then appends the
// record to the local export. The result reflects whatever was written even
// when a later step fails.
func (s *LocalStore) Save(sub models.Submission, files []models.AttachmentFile) (*LocalSaveResult, error) {
	result := &LocalSaveResult{AttachmentPaths: make([]string, 0, len(files))}

	if err := os.MkdirAll(s.attachmentsDir(), 0o755); err != nil {
		return result, &LocalStoreError{Op: "mkdir", Path: s.attachmentsDir(), Err: err}
	}

	for _, f := range files {
		out := filepath.Join(s.attachmentsDir(), sub.SubmissionID+"__"+utils.SafeFilename(f.Name))
		if err := os.WriteFile(out, f.Data, 0o644); err != nil {
			return result, &LocalStoreError{Op: "write attachment", Path: out, Err: err}
		}
		result.AttachmentPaths = append(result.AttachmentPaths, out)
	}

	stored := StoredSubmission{Submission: sub, Attachments: result.AttachmentPaths}
	recordPath := filepath.Join(s.dir, sub.SubmissionID+".json")
	if err := writeNewJSON(recordPath, stored); err != nil {
		return result, &LocalStoreError{Op: "write record", Path: recordPath, Err: err}
	}
	result.RecordPath = recordPath

	if s.exportPath != "" {
		rec := ExportRecord(sub, ListColumn("attachments", result.AttachmentPaths))
		if err := s.appendExport(sub.SubmissionID, rec); err != nil {
			return result, &LocalStoreError{Op: "append export", Path: s.exportPath, Err: err}
		}
	}

	return result, nil
}

// writeNewJSON refuses to overwrite: a persisted submission never changes.
func writeNewJSON(path string, v interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *LocalStore) appendExport(submissionID string, rec Record) error {
	s.exportMu.Lock()
	defer s.exportMu.Unlock()

	existing, err := ReadTableFile(s.exportPath)
	if err != nil {
		backup := fmt.Sprintf("%s.unreadable-%s", s.exportPath, submissionID)
		log.Printf("local store: export %s unreadable (%v), moving it to %s and starting a new one", s.exportPath, err, backup)
		if renameErr := os.Rename(s.exportPath, backup); renameErr != nil {
			return fmt.Errorf("set aside unreadable export: %w", renameErr)
		}
		existing = nil
	}

	return WriteTableFile(s.exportPath, Reconcile(existing, rec))
}

// LoadRecords reads every submission file in the store, oldest first.
// Submission ids sort chronologically, so file-name order is submission order.
func (s *LocalStore) LoadRecords() ([]StoredSubmission, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, submissionIDPrefix+"*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	records := make([]StoredSubmission, 0, len(matches))
	for _, path := range matches {
		rec, err := ReadStoredSubmission(path)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

// ReadStoredSubmission parses one submission file.
func ReadStoredSubmission(path string) (*StoredSubmission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec StoredSubmission
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if !strings.HasPrefix(rec.SubmissionID, submissionIDPrefix) {
		return nil, fmt.Errorf("parse %s: missing submission_id", path)
	}
	return &rec, nil
}

// RebuildExport regenerates the local export from the submission files,
// keeping any columns the current export already has so none is lost.
func (s *LocalStore) RebuildExport() (int, error) {
	if s.exportPath == "" {
		return 0, fmt.Errorf("local export is disabled")
	}
	records, err := s.LoadRecords()
	if err != nil {
		return 0, err
	}

	s.exportMu.Lock()
	defer s.exportMu.Unlock()

	table := &Table{}
	if current, err := ReadTableFile(s.exportPath); err == nil {
		table.Columns = current.Columns
	}
	for _, rec := range records {
		table = Reconcile(table, ExportRecord(rec.Submission, ListColumn("attachments", rec.Attachments)))
	}
	return len(records), WriteTableFile(s.exportPath, table)
}

package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"route-feedback-api/config"
	"route-feedback-api/models"
)

// ErrSubmissionNotFound is returned by Get for an unknown submission id.
var ErrSubmissionNotFound = errors.New("submission not found")

// LedgerFilter narrows List.
type LedgerFilter struct {
	DriverID      string
	ExportPending bool
}

// SubmissionLedger records every accepted submission and how each sink fared.
// It is an index over the stores, never the source of a submission's content.
type SubmissionLedger struct {
	db *gorm.DB
}

func NewSubmissionLedger(db *gorm.DB) *SubmissionLedger {
	if db == nil {
		db = config.DB
	}
	return &SubmissionLedger{db: db}
}

// Migrate creates or updates the submissions table.
func (l *SubmissionLedger) Migrate() error {
	return l.db.AutoMigrate(&models.SubmissionRecord{})
}

// Record inserts the ledger row for an outcome.
func (l *SubmissionLedger) Record(outcome *SubmissionOutcome) error {
	return l.db.Create(recordFromOutcome(outcome)).Error
}

func recordFromOutcome(o *SubmissionOutcome) *models.SubmissionRecord {
	sub := o.Submission
	submittedAt, err := time.Parse(submittedAtLayout, sub.SubmittedAtUTC)
	if err != nil {
		submittedAt = o.CompletedAt
	}
	now := time.Now().UTC()

	return &models.SubmissionRecord{
		SubmissionID:      sub.SubmissionID,
		SubmittedAt:       submittedAt,
		DriverID:          sub.DriverID,
		IDCID:             sub.IDCID,
		Station:           sub.Station,
		RouteNumber:       sub.RouteNumber,
		RouteDate:         sub.RouteDate,
		Severity:          sub.Severity,
		MainIssueCategory: sub.MainIssueCategory,
		SubCategory:       sub.SubCategory,
		LocalPath:         o.LocalPath,
		LocalOK:           o.LocalSave.ok(),
		LocalError:        optional(o.LocalSave.Error),
		AttachmentsOK:     o.AttachmentUpload.Status != SinkFailed,
		AttachmentsError:  optional(o.AttachmentUpload.Error),
		RemotePaths:       strings.Join(o.RemoteAttachmentPaths, listSeparator),
		ExportOK:          o.ExportSync.ok(),
		ExportError:       optional(o.ExportSync.Error),
		CreateAt:          now,
		UpdateAt:          now,
	}
}

// List returns ledger rows newest first, with the total matching filter.
func (l *SubmissionLedger) List(filter LedgerFilter, limit, offset int) ([]models.SubmissionRecord, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := l.db.Model(&models.SubmissionRecord{})
	if filter.DriverID != "" {
		q = q.Where("driver_id = ?", filter.DriverID)
	}
	if filter.ExportPending {
		q = q.Where("export_ok = ?", false)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.SubmissionRecord
	if err := q.Order("submission_id DESC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (l *SubmissionLedger) Get(submissionID string) (*models.SubmissionRecord, error) {
	var rec models.SubmissionRecord
	err := l.db.Where("submission_id = ?", submissionID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PendingExport returns rows whose export sync has not succeeded yet, oldest
// first, so a resync appends them in submission order.
func (l *SubmissionLedger) PendingExport(limit int) ([]models.SubmissionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []models.SubmissionRecord
	err := l.db.Where("export_ok = ?", false).Order("submission_id ASC").Limit(limit).Find(&items).Error
	return items, err
}

// MarkExportSynced flags a row as present in the remote export.
func (l *SubmissionLedger) MarkExportSynced(submissionID string) error {
	return l.updateExport(submissionID, map[string]interface{}{
		"export_ok":    true,
		"export_error": nil,
		"update_at":    time.Now().UTC(),
	})
}

// MarkExportFailed stores the latest export error for a row.
func (l *SubmissionLedger) MarkExportFailed(submissionID string, cause error) error {
	return l.updateExport(submissionID, map[string]interface{}{
		"export_ok":    false,
		"export_error": cause.Error(),
		"update_at":    time.Now().UTC(),
	})
}

func (l *SubmissionLedger) updateExport(submissionID string, values map[string]interface{}) error {
	res := l.db.Model(&models.SubmissionRecord{}).Where("submission_id = ?", submissionID).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

// RemotePathList splits a ledger row's stored remote attachment paths.
func RemotePathList(rec *models.SubmissionRecord) []string {
	if rec.RemotePaths == "" {
		return []string{}
	}
	return strings.Split(rec.RemotePaths, listSeparator)
}

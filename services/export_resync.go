package services

import (
	"context"
	"fmt"
	"log"
)

// ResyncResult counts what a resync pass did.
type ResyncResult struct {
	Synced int
	Failed int
}

// ResyncPendingExports appends ledger rows whose export sync failed to the
// remote export, oldest first, rebuilding each row from its local submission
// file. A row without a readable local file stays pending with the reason.
// It stops at the first configuration error since no later row can succeed.
func ResyncPendingExports(ctx context.Context, ledger *SubmissionLedger, remote RemoteSink, limit int) (ResyncResult, error) {
	var result ResyncResult

	pending, err := ledger.PendingExport(limit)
	if err != nil {
		return result, fmt.Errorf("list pending exports: %w", err)
	}

	for i := range pending {
		rec := &pending[i]
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if rec.LocalPath == "" {
			result.Failed++
			if err := ledger.MarkExportFailed(rec.SubmissionID, fmt.Errorf("no local submission file to resync from")); err != nil {
				log.Printf("resync: update %s: %v", rec.SubmissionID, err)
			}
			continue
		}
		stored, err := ReadStoredSubmission(rec.LocalPath)
		if err != nil {
			result.Failed++
			if markErr := ledger.MarkExportFailed(rec.SubmissionID, err); markErr != nil {
				log.Printf("resync: update %s: %v", rec.SubmissionID, markErr)
			}
			continue
		}

		if err := remote.SyncExcel(ctx, RemoteExportRecord(stored.Submission, RemotePathList(rec))); err != nil {
			if failedSink(err).Status == SinkNotConfigured {
				return result, err
			}
			result.Failed++
			log.Printf("resync: %s still failing: %v", rec.SubmissionID, err)
			if markErr := ledger.MarkExportFailed(rec.SubmissionID, err); markErr != nil {
				log.Printf("resync: update %s: %v", rec.SubmissionID, markErr)
			}
			continue
		}

		result.Synced++
		if err := ledger.MarkExportSynced(rec.SubmissionID); err != nil {
			log.Printf("resync: mark %s synced: %v", rec.SubmissionID, err)
		}
	}
	return result, nil
}

package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"route-feedback-api/models"
)

func buildSubmission(t *testing.T, at time.Time, files ...models.AttachmentFile) models.Submission {
	t.Helper()
	f := validForm()
	f.Attachments = files
	n, errs := ValidateForm(f, PolicyFor("documents", true))
	require.Empty(t, errs)
	return NewPayloadBuilder(fixedClock(at)).Build(n)
}

func TestLocalStoreSaveWritesRecordAndAttachments(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir, filepath.Join(dir, "export.xlsx"))
	files := []models.AttachmentFile{{Name: "My File! (1).PNG", Data: []byte("png-bytes")}}
	sub := buildSubmission(t, time.Date(2024, 5, 2, 13, 4, 5, 0, time.UTC), files...)

	res, err := store.Save(sub, files)
	require.NoError(t, err)

	wantAttachment := filepath.Join(dir, "attachments", sub.SubmissionID+"__My_File_1.PNG")
	assert.Equal(t, []string{wantAttachment}, res.AttachmentPaths)
	data, err := os.ReadFile(wantAttachment)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	assert.Equal(t, filepath.Join(dir, sub.SubmissionID+".json"), res.RecordPath)
	raw, err := os.ReadFile(res.RecordPath)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, sub.SubmissionID, doc["submission_id"])
	assert.Equal(t, sub.SubmittedAtUTC, doc["submitted_at_utc"])
	assert.Nil(t, doc["stop_number"])
	assert.Contains(t, doc, "stop_address")
	assert.Equal(t, []interface{}{wantAttachment}, doc["attachments"])

	table, err := ReadTableFile(store.ExportPath())
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, wantAttachment, table.RowMap(0)["attachments"])
}

func TestLocalStoreNeverOverwritesRecord(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir, "")
	sub := buildSubmission(t, time.Date(2024, 5, 2, 13, 4, 5, 0, time.UTC))

	_, err := store.Save(sub, nil)
	require.NoError(t, err)

	_, err = store.Save(sub, nil)
	var storeErr *LocalStoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "write record", storeErr.Op)
}

func TestLocalStoreReportsUnwritableDirectory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	store := NewLocalStore(blocker, "")
	_, err := store.Save(buildSubmission(t, time.Now()), nil)

	var storeErr *LocalStoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "mkdir", storeErr.Op)
}

func TestLocalStoreSetsAsideUnreadableExport(t *testing.T) {
	dir := t.TempDir()
	exportPath := filepath.Join(dir, "export.xlsx")
	require.NoError(t, os.WriteFile(exportPath, []byte("corrupt"), 0o644))

	store := NewLocalStore(dir, exportPath)
	sub := buildSubmission(t, time.Date(2024, 5, 2, 13, 4, 5, 0, time.UTC))
	_, err := store.Save(sub, nil)
	require.NoError(t, err)

	backup, err := os.ReadFile(exportPath + ".unreadable-" + sub.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, "corrupt", string(backup))

	table, err := ReadTableFile(exportPath)
	require.NoError(t, err)
	assert.Len(t, table.Rows, 1)
}

func TestLocalStoreRebuildExportOrdersBySubmission(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir, filepath.Join(dir, "export.xlsx"))

	later := buildSubmission(t, time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC))
	earlier := buildSubmission(t, time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC))
	for _, sub := range []models.Submission{later, earlier} {
		_, err := store.Save(sub, nil)
		require.NoError(t, err)
	}
	require.NoError(t, os.Remove(store.ExportPath()))

	n, err := store.RebuildExport()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	table, err := ReadTableFile(store.ExportPath())
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, earlier.SubmissionID, table.RowMap(0)["submission_id"])
	assert.Equal(t, later.SubmissionID, table.RowMap(1)["submission_id"])
}

func TestLocalStoreRebuildKeepsExistingColumns(t *testing.T) {
	dir := t.TempDir()
	exportPath := filepath.Join(dir, "export.xlsx")
	require.NoError(t, WriteTableFile(exportPath, &Table{Columns: []string{"legacy_field"}, Rows: [][]string{{"x"}}}))

	store := NewLocalStore(dir, exportPath)
	_, err := store.Save(buildSubmission(t, time.Now()), nil)
	require.NoError(t, err)

	_, err = store.RebuildExport()
	require.NoError(t, err)
	table, err := ReadTableFile(exportPath)
	require.NoError(t, err)
	assert.Equal(t, "legacy_field", table.Columns[0])
	assert.Len(t, table.Rows, 1)
}

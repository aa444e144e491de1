package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"route-feedback-api/config"
	"route-feedback-api/models"
)

const (
	testTenant = "tenant-123"
	testSiteID = "contoso.sharepoint.com,11111111,22222222"
	testExport = "/General/route_optimization_feedback.xlsx"
)

// fakeGraph serves the token endpoint and the subset of Graph the client uses.
type fakeGraph struct {
	mu sync.Mutex

	files       map[string][]byte
	etags       map[string]string
	contentType map[string]string
	ifMatch     map[string]string
	createOnly  map[string]bool

	tokenStatus  int
	tokenCalls   int
	uploadStatus int
	// failPaths fails PUTs to the listed item paths with the given status.
	failPaths map[string]int
	// beforePut runs ahead of every PUT, under the fake's lock.
	beforePut func(itemPath string)
	// bumpOnDownload simulates another writer replacing the export
	// between download and upload.
	bumpOnDownload bool
	calls          []string
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		files:       map[string][]byte{},
		etags:       map[string]string{},
		contentType: map[string]string{},
		ifMatch:     map[string]string{},
		createOnly:  map[string]bool{},
		failPaths:   map[string]int{},
	}
}

func (f *fakeGraph) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)

	switch {
	case r.URL.Path == "/"+testTenant+"/oauth2/v2.0/token":
		f.tokenCalls++
		_ = r.ParseForm()
		if f.tokenStatus != 0 {
			w.WriteHeader(f.tokenStatus)
			_, _ = io.WriteString(w, `{"error":"invalid_client"}`)
			return
		}
		if r.PostForm.Get("grant_type") != "client_credentials" || r.PostForm.Get("client_secret") != "s3cret" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`)
		return
	}

	if r.Header.Get("Authorization") != "Bearer tok-1" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if r.URL.Path == "/v1.0/sites/contoso.sharepoint.com:/sites/Ops" {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": testSiteID})
		return
	}

	prefix := "/v1.0/sites/" + testSiteID + "/drive/root:"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	itemPath := strings.TrimPrefix(r.URL.Path, prefix)
	content := strings.HasSuffix(itemPath, ":/content")
	itemPath = strings.TrimSuffix(itemPath, ":/content")

	switch {
	case r.Method == http.MethodGet && !content:
		etag, ok := f.etags[itemPath]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"eTag": etag})
	case r.Method == http.MethodGet:
		data, ok := f.files[itemPath]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if f.bumpOnDownload {
			f.etags[itemPath] += "-changed"
		}
		_, _ = w.Write(data)
	case r.Method == http.MethodPut:
		if f.beforePut != nil {
			f.beforePut(itemPath)
		}
		status := f.uploadStatus
		if s, ok := f.failPaths[itemPath]; ok {
			status = s
		}
		if status != 0 {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":{"code":"accessDenied"}}`)
			return
		}
		if m := r.Header.Get("If-Match"); m != "" && m != f.etags[itemPath] {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		createOnly := r.URL.Query().Get("@microsoft.graph.conflictBehavior") == "fail"
		if _, exists := f.files[itemPath]; exists && createOnly {
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"error":{"code":"nameAlreadyExists"}}`)
			return
		}
		f.createOnly[itemPath] = createOnly
		data, _ := io.ReadAll(r.Body)
		f.files[itemPath] = data
		f.contentType[itemPath] = r.Header.Get("Content-Type")
		f.ifMatch[itemPath] = r.Header.Get("If-Match")
		f.etags[itemPath] = fmt.Sprintf(`"{%d}"`, len(f.calls))
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeGraph) seedExport(t *testing.T, table *Table) {
	t.Helper()
	data, err := EncodeTable(table)
	require.NoError(t, err)
	f.files[testExport] = data
	f.etags[testExport] = `"{seed}"`
}

func (f *fakeGraph) exportTable(t *testing.T) *Table {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	table, err := DecodeTable(f.files[testExport])
	require.NoError(t, err)
	return table
}

func testRemoteSettings(serverURL string) config.RemoteSettings {
	return config.RemoteSettings{
		TenantID:          testTenant,
		ClientID:          "client-abc",
		ClientSecret:      "s3cret",
		SiteHostname:      "contoso.sharepoint.com",
		SitePath:          "/sites/Ops",
		ExcelPath:         testExport,
		GraphBaseURL:      serverURL + "/v1.0",
		AuthorityURL:      serverURL,
		Timeout:           5 * time.Second,
		TransferTimeout:   5 * time.Second,
		ConditionalUpload: true,
	}
}

func newTestGraphClient(t *testing.T) (*GraphClient, *fakeGraph) {
	t.Helper()
	fake := newFakeGraph()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewGraphClient(testRemoteSettings(srv.URL), srv.Client()), fake
}

func TestSyncExcelCreatesMissingExport(t *testing.T) {
	client, fake := newTestGraphClient(t)
	sub := buildSubmission(t, time.Date(2024, 5, 2, 13, 4, 5, 0, time.UTC))

	require.NoError(t, client.SyncExcel(context.Background(), RemoteExportRecord(sub, nil)))

	table := fake.exportTable(t)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, sub.SubmissionID, table.RowMap(0)["submission_id"])
	assert.Contains(t, table.Columns, "sp_attachments")
	assert.Equal(t, xlsxContentType, fake.contentType[testExport])
	assert.Equal(t, "", fake.ifMatch[testExport])
	assert.True(t, fake.createOnly[testExport])
}

func TestSyncExcelCreateLosesToConcurrentCreate(t *testing.T) {
	client, fake := newTestGraphClient(t)
	other, err := EncodeTable(&Table{Columns: []string{"submission_id"}, Rows: [][]string{{"rof_other"}}})
	require.NoError(t, err)
	fake.beforePut = func(itemPath string) {
		if _, ok := fake.files[itemPath]; !ok && itemPath == testExport {
			fake.files[itemPath] = other
			fake.etags[itemPath] = `"{other}"`
		}
	}

	err = client.SyncExcel(context.Background(), RemoteExportRecord(buildSubmission(t, time.Now()), nil))

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusConflict, remoteErr.StatusCode)
	assert.True(t, errors.Is(err, ErrExportConflict))

	table := fake.exportTable(t)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "rof_other", table.RowMap(0)["submission_id"])
}

func TestSyncExcelAppendsWithColumnUnion(t *testing.T) {
	client, fake := newTestGraphClient(t)
	fake.seedExport(t, &Table{
		Columns: []string{"submission_id", "legacy_field"},
		Rows:    [][]string{{"rof_old", "kept"}},
	})
	sub := buildSubmission(t, time.Date(2024, 5, 2, 13, 4, 5, 0, time.UTC))

	require.NoError(t, client.SyncExcel(context.Background(), RemoteExportRecord(sub, []string{"/General/ROF_Attachments/x.png"})))

	table := fake.exportTable(t)
	assert.Equal(t, []string{"submission_id", "legacy_field"}, table.Columns[:2])
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "kept", table.RowMap(0)["legacy_field"])
	assert.Equal(t, "", table.RowMap(0)["driver_id"])
	assert.Equal(t, "", table.RowMap(1)["legacy_field"])
	assert.Equal(t, "/General/ROF_Attachments/x.png", table.RowMap(1)["sp_attachments"])
	assert.Equal(t, `"{seed}"`, fake.ifMatch[testExport])
}

func TestSyncExcelCopiesUnreadableExportAside(t *testing.T) {
	client, fake := newTestGraphClient(t)
	fake.files[testExport] = []byte("definitely not xlsx")
	fake.etags[testExport] = `"{junk}"`
	sub := buildSubmission(t, time.Now())

	require.NoError(t, client.SyncExcel(context.Background(), RemoteExportRecord(sub, nil)))
	assert.Len(t, fake.exportTable(t).Rows, 1)
	assert.Equal(t, "definitely not xlsx", string(fake.files[testExport+".unreadable-"+sub.SubmissionID]))
	assert.Equal(t, `"{junk}"`, fake.ifMatch[testExport])
}

func TestSyncExcelKeepsUnreadableExportWhenBackupFails(t *testing.T) {
	client, fake := newTestGraphClient(t)
	fake.files[testExport] = []byte("definitely not xlsx")
	fake.etags[testExport] = `"{junk}"`
	sub := buildSubmission(t, time.Now())
	fake.failPaths[testExport+".unreadable-"+sub.SubmissionID] = http.StatusInsufficientStorage

	err := client.SyncExcel(context.Background(), RemoteExportRecord(sub, nil))

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusInsufficientStorage, remoteErr.StatusCode)
	assert.Equal(t, "definitely not xlsx", string(fake.files[testExport]))
}

func TestSyncExcelUploadForbidden(t *testing.T) {
	client, fake := newTestGraphClient(t)
	fake.uploadStatus = http.StatusForbidden
	sub := buildSubmission(t, time.Now())

	err := client.SyncExcel(context.Background(), RemoteExportRecord(sub, nil))

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, StepUpload, remoteErr.Step)
	assert.Equal(t, http.StatusForbidden, remoteErr.StatusCode)
	assert.Contains(t, remoteErr.Body, "accessDenied")
	assert.False(t, remoteErr.IsAuth())
}

func TestSyncExcelDetectsConcurrentWriter(t *testing.T) {
	client, fake := newTestGraphClient(t)
	fake.seedExport(t, &Table{Columns: []string{"submission_id"}, Rows: [][]string{{"rof_old"}}})
	fake.bumpOnDownload = true

	err := client.SyncExcel(context.Background(), RemoteExportRecord(buildSubmission(t, time.Now()), nil))

	require.True(t, errors.Is(err, ErrExportConflict), "got %v", err)
	assert.Len(t, fake.exportTable(t).Rows, 1)
}

func TestSyncExcelWithoutConditionalUpload(t *testing.T) {
	fake := newFakeGraph()
	srv := httptest.NewServer(fake)
	defer srv.Close()
	settings := testRemoteSettings(srv.URL)
	settings.ConditionalUpload = false
	client := NewGraphClient(settings, srv.Client())
	fake.seedExport(t, &Table{Columns: []string{"submission_id"}, Rows: [][]string{{"rof_old"}}})

	require.NoError(t, client.SyncExcel(context.Background(), RemoteExportRecord(buildSubmission(t, time.Now()), nil)))
	assert.Equal(t, "", fake.ifMatch[testExport])
	assert.Len(t, fake.exportTable(t).Rows, 2)
}

func TestSyncExcelTokenRejected(t *testing.T) {
	client, fake := newTestGraphClient(t)
	fake.tokenStatus = http.StatusUnauthorized

	err := client.SyncExcel(context.Background(), RemoteExportRecord(buildSubmission(t, time.Now()), nil))

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, StepToken, remoteErr.Step)
	assert.Equal(t, http.StatusUnauthorized, remoteErr.StatusCode)
	assert.True(t, remoteErr.IsAuth())
	assert.NotContains(t, err.Error(), "s3cret")
}

func TestSyncExcelReusesToken(t *testing.T) {
	client, fake := newTestGraphClient(t)
	for i := 0; i < 2; i++ {
		sub := buildSubmission(t, time.Date(2024, 5, 2, 13, 4, i, 0, time.UTC))
		require.NoError(t, client.SyncExcel(context.Background(), RemoteExportRecord(sub, nil)))
	}
	assert.Equal(t, 1, fake.tokenCalls)
	assert.Len(t, fake.exportTable(t).Rows, 2)
}

func TestSyncExcelNotConfigured(t *testing.T) {
	client := NewGraphClient(config.RemoteSettings{
		GraphBaseURL: "https://graph.example.com",
		AuthorityURL: "https://login.example.com",
	}, nil)

	err := client.SyncExcel(context.Background(), Record{{Name: "a", Value: "b"}})

	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Missing, "TENANT_ID")
	assert.Contains(t, cfgErr.Missing, "SP_EXCEL_PATH")
}

func TestSyncAttachmentsUploadsToDefaultFolder(t *testing.T) {
	client, fake := newTestGraphClient(t)
	files := []models.AttachmentFile{
		{Name: "My File! (1).PNG", Data: []byte("png")},
		{Name: "route.pdf", Data: []byte("pdf")},
	}
	id := models.IdentityFields{DriverID: "D 123", IDCID: "Acme Logistics"}

	paths, err := client.SyncAttachments(context.Background(), files, "rof_20240502T130405.000000Z", id)
	require.NoError(t, err)

	want := []string{
		"/General/ROF_Attachments/rof_20240502T130405.000000Z__driver_d_123__idc_acme_logistics__My_File_1.PNG",
		"/General/ROF_Attachments/rof_20240502T130405.000000Z__driver_d_123__idc_acme_logistics__route.pdf",
	}
	assert.Equal(t, want, paths)
	assert.Equal(t, "png", string(fake.files[want[0]]))
	assert.Equal(t, "image/png", fake.contentType[want[0]])
	assert.Equal(t, "application/pdf", fake.contentType[want[1]])
}

func TestSyncAttachmentsNoFilesSkipsRemote(t *testing.T) {
	client, fake := newTestGraphClient(t)
	paths, err := client.SyncAttachments(context.Background(), nil, "rof_x", models.IdentityFields{})
	require.NoError(t, err)
	assert.Empty(t, paths)
	assert.Empty(t, fake.calls)
}

func TestSyncAttachmentsReportsPartialProgress(t *testing.T) {
	client, fake := newTestGraphClient(t)
	fake.uploadStatus = http.StatusInsufficientStorage
	files := []models.AttachmentFile{{Name: "a.png", Data: []byte("a")}}

	paths, err := client.SyncAttachments(context.Background(), files, "rof_x", models.IdentityFields{DriverID: "d", IDCID: "i"})

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusInsufficientStorage, remoteErr.StatusCode)
	assert.Empty(t, paths)
}

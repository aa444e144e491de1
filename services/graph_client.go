package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"route-feedback-api/config"
	"route-feedback-api/models"
	"route-feedback-api/utils"
)

const (
	graphScope       = "https://graph.microsoft.com/.default"
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	identityMaxChars = 60
)

// GraphClient talks to a SharePoint document library through Microsoft Graph:
// it keeps the remote tabular export up to date and uploads attachments.
type GraphClient struct {
	settings config.RemoteSettings
	client   *http.Client

	tokenOnce sync.Once
	tokens    oauth2.TokenSource
}

// NewGraphClient constructs a GraphClient. A nil client gets one bounded by
// settings.Timeout; transfers are additionally bounded by settings.TransferTimeout.
func NewGraphClient(settings config.RemoteSettings, client *http.Client) *GraphClient {
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.TransferTimeout <= 0 {
		settings.TransferTimeout = 120 * time.Second
	}
	if client == nil {
		client = &http.Client{}
	}
	return &GraphClient{settings: settings, client: client}
}

// Configured returns a *config.ConfigurationError when a required remote
// setting is missing.
func (g *GraphClient) Configured() error {
	return g.settings.Validate()
}

// ExportPath is the remote path of the tabular export.
func (g *GraphClient) ExportPath() string { return g.settings.ExcelPath }

// AttachmentsFolder is the remote folder attachments are uploaded to.
func (g *GraphClient) AttachmentsFolder() string { return g.settings.AttachmentsFolderPath() }

// RemoteAttachmentName builds the stored name of an attachment. It embeds the
// submission id and submitter identifiers so an orphaned file stays attributable.
func RemoteAttachmentName(submissionID string, id models.IdentityFields, original string) string {
	return fmt.Sprintf("%s__driver_%s__idc_%s__%s",
		submissionID,
		utils.CleanForName(id.DriverID, identityMaxChars),
		utils.CleanForName(id.IDCID, identityMaxChars),
		utils.SafeFilename(original),
	)
}

// SyncExcel appends rec to the remote export: download, reconcile, upload.
// A missing export is created and an unreadable one is copied aside first.
// When conditional upload is enabled the upload only succeeds if nobody
// created or replaced the file since it was read.
func (g *GraphClient) SyncExcel(ctx context.Context, rec Record) error {
	if err := g.Configured(); err != nil {
		return err
	}

	token, err := g.token(ctx)
	if err != nil {
		return err
	}
	siteID, err := g.siteID(ctx, token)
	if err != nil {
		return err
	}

	var etag string
	if g.settings.ConditionalUpload {
		if etag, err = g.itemETag(ctx, token, siteID, g.settings.ExcelPath); err != nil {
			return err
		}
	}

	existing, err := g.download(ctx, token, siteID, g.settings.ExcelPath)
	if err != nil {
		return err
	}

	var table *Table
	if len(existing) > 0 {
		if table, err = DecodeTable(existing); err != nil {
			backup := fmt.Sprintf("%s.unreadable-%s", g.settings.ExcelPath, backupSuffix(rec))
			log.Printf("graph: remote export %s unreadable (%v), copying it to %s and starting a new one", g.settings.ExcelPath, err, backup)
			if err := g.upload(ctx, token, siteID, backup, existing, map[string]string{"Content-Type": "application/octet-stream"}, false); err != nil {
				return err
			}
			table = nil
		}
	}

	out, err := EncodeTable(Reconcile(table, rec))
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}

	headers := map[string]string{"Content-Type": xlsxContentType}
	if etag != "" {
		headers["If-Match"] = etag
	}
	// With no eTag the export did not exist when read; creating it must fail
	// if another writer created it in the meantime.
	createOnly := g.settings.ConditionalUpload && etag == ""
	return g.upload(ctx, token, siteID, g.settings.ExcelPath, out, headers, createOnly)
}

func backupSuffix(rec Record) string {
	if id := rec.Get("submission_id"); id != "" {
		return utils.SafeFilename(id)
	}
	return time.Now().UTC().Format("20060102T150405Z")
}

// SyncAttachments uploads every file to the attachments folder and returns
// the remote paths written, in input order. On failure the paths uploaded so
// far are returned with the error.
func (g *GraphClient) SyncAttachments(ctx context.Context, files []models.AttachmentFile, submissionID string, id models.IdentityFields) ([]string, error) {
	paths := make([]string, 0, len(files))
	if len(files) == 0 {
		return paths, nil
	}
	if err := g.Configured(); err != nil {
		return paths, err
	}

	token, err := g.token(ctx)
	if err != nil {
		return paths, err
	}
	siteID, err := g.siteID(ctx, token)
	if err != nil {
		return paths, err
	}

	folder := g.settings.AttachmentsFolderPath()
	for _, f := range files {
		remotePath := strings.ReplaceAll(folder+"/"+RemoteAttachmentName(submissionID, id, f.Name), "//", "/")
		headers := map[string]string{"Content-Type": utils.ContentTypeForFilename(f.Name)}
		if err := g.upload(ctx, token, siteID, remotePath, f.Data, headers, false); err != nil {
			return paths, err
		}
		paths = append(paths, remotePath)
	}
	return paths, nil
}

func (g *GraphClient) tokenSource() oauth2.TokenSource {
	g.tokenOnce.Do(func() {
		cfg := clientcredentials.Config{
			ClientID:     g.settings.ClientID,
			ClientSecret: g.settings.ClientSecret,
			TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", g.settings.AuthorityURL, url.PathEscape(g.settings.TenantID)),
			Scopes:       []string{graphScope},
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		tokenClient := &http.Client{Transport: g.client.Transport, Timeout: g.settings.Timeout}
		g.tokens = cfg.TokenSource(context.WithValue(context.Background(), oauth2.HTTPClient, tokenClient))
	})
	return g.tokens
}

// token returns a cached bearer token, fetching a new one when it has expired.
func (g *GraphClient) token(ctx context.Context) (string, error) {
	start := time.Now()
	tok, err := g.tokenSource().Token()
	observeRemoteCall(StepToken, start, err)
	if err != nil {
		remoteErr := &RemoteError{Step: StepToken, Err: err}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			if retrieveErr.Response != nil {
				remoteErr.StatusCode = retrieveErr.Response.StatusCode
			}
			remoteErr.Body = truncateBody(retrieveErr.Body)
		}
		return "", remoteErr
	}
	if ctx.Err() != nil {
		return "", &RemoteError{Step: StepToken, Err: ctx.Err()}
	}
	return tok.AccessToken, nil
}

func (g *GraphClient) siteID(ctx context.Context, token string) (string, error) {
	reqURL := fmt.Sprintf("%s/sites/%s:%s", g.settings.GraphBaseURL, g.settings.SiteHostname, escapePath(g.settings.SitePath))
	status, body, err := g.do(ctx, StepSite, http.MethodGet, reqURL, token, nil, nil, g.settings.Timeout)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", &RemoteError{Step: StepSite, StatusCode: status, Body: truncateBody(body)}
	}

	var site struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &site); err != nil || site.ID == "" {
		return "", &RemoteError{Step: StepSite, StatusCode: status, Body: truncateBody(body), Err: fmt.Errorf("site id missing from response")}
	}
	return site.ID, nil
}

// itemETag returns the current eTag of a drive item, or "" when it does not exist.
func (g *GraphClient) itemETag(ctx context.Context, token, siteID, itemPath string) (string, error) {
	status, body, err := g.do(ctx, StepMetadata, http.MethodGet, g.itemURL(siteID, itemPath), token, nil, nil, g.settings.Timeout)
	if err != nil {
		return "", err
	}
	switch status {
	case http.StatusOK:
		var item struct {
			ETag string `json:"eTag"`
		}
		if err := json.Unmarshal(body, &item); err != nil {
			return "", &RemoteError{Step: StepMetadata, StatusCode: status, Body: truncateBody(body), Err: err}
		}
		return item.ETag, nil
	case http.StatusNotFound:
		return "", nil
	default:
		return "", &RemoteError{Step: StepMetadata, StatusCode: status, Body: truncateBody(body)}
	}
}

// download returns the item content, or nil when the item does not exist.
func (g *GraphClient) download(ctx context.Context, token, siteID, itemPath string) ([]byte, error) {
	status, body, err := g.do(ctx, StepDownload, http.MethodGet, g.itemURL(siteID, itemPath)+":/content", token, nil, nil, g.settings.TransferTimeout)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusNotFound:
		return nil, nil
	case status >= 200 && status < 300:
		return body, nil
	default:
		return nil, &RemoteError{Step: StepDownload, StatusCode: status, Body: truncateBody(body)}
	}
}

// upload replaces the item content. With createOnly the upload asks Graph to
// fail instead of replacing an item that already exists.
func (g *GraphClient) upload(ctx context.Context, token, siteID, itemPath string, content []byte, headers map[string]string, createOnly bool) error {
	reqURL := g.itemURL(siteID, itemPath) + ":/content"
	if createOnly {
		reqURL += "?@microsoft.graph.conflictBehavior=fail"
	}
	status, body, err := g.do(ctx, StepUpload, http.MethodPut, reqURL, token, bytes.NewReader(content), headers, g.settings.TransferTimeout)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		return nil
	case status == http.StatusPreconditionFailed, createOnly && status == http.StatusConflict:
		return &RemoteError{Step: StepUpload, StatusCode: status, Body: truncateBody(body), Err: ErrExportConflict}
	default:
		return &RemoteError{Step: StepUpload, StatusCode: status, Body: truncateBody(body)}
	}
}

func (g *GraphClient) itemURL(siteID, itemPath string) string {
	if !strings.HasPrefix(itemPath, "/") {
		itemPath = "/" + itemPath
	}
	return fmt.Sprintf("%s/sites/%s/drive/root:%s", g.settings.GraphBaseURL, siteID, escapePath(itemPath))
}

// do performs one bounded request and reads the whole response body.
// Transport failures come back as a RemoteError without a status.
func (g *GraphClient) do(ctx context.Context, step RemoteStep, method, reqURL, token string, body io.Reader, headers map[string]string, timeout time.Duration) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return 0, nil, &RemoteError{Step: step, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		observeRemoteCall(step, start, err)
		return 0, nil, &RemoteError{Step: step, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	observeRemoteCall(step, start, err)
	if err != nil {
		return resp.StatusCode, nil, &RemoteError{Step: step, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	return resp.StatusCode, data, nil
}

// escapePath escapes each segment of a slash-separated drive path.
func escapePath(p string) string {
	segments := strings.Split(strings.ReplaceAll(p, "\\", "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

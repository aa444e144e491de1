package controllers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"route-feedback-api/models"
	"route-feedback-api/services"
)

const (
	maxAttachmentSize  = int64(10 * 1024 * 1024) // 10MB
	maxAttachmentCount = 10
)

// SubmitFeedback accepts one feedback form (multipart, fields plus
// "attachments" files) and stores it. 422 means nothing was stored; otherwise
// the response enumerates every sink: 200 when all succeeded, 207 when some
// did, 502 when the submission reached no store.
func SubmitFeedback(c *gin.Context) {
	form := models.NewFormState()
	if err := c.ShouldBind(form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid form data: " + err.Error()})
		return
	}

	attachments, err := readAttachments(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	form.Attachments = attachments

	outcome, err := deps.Submissions.Submit(c.Request.Context(), form)
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error":   "Please fix the following",
			"errors":  validationErr.Messages,
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to process submission"})
		return
	}

	status := http.StatusOK
	switch outcome.Outcome() {
	case "partial":
		status = http.StatusMultiStatus
	case "failed":
		status = http.StatusBadGateway
	}

	c.JSON(status, gin.H{
		"success": outcome.Persisted(),
		"status":  outcome.Outcome(),
		"message": outcome.Message(),
		"data":    outcome,
		// the client replaces its form with this after any successful store
		"form": form,
	})
}

func readAttachments(c *gin.Context) ([]models.AttachmentFile, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, nil
	}
	mf, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("invalid multipart body: %w", err)
	}

	headers := append(mf.File["attachments"], mf.File["attachments[]"]...)
	if len(headers) > maxAttachmentCount {
		return nil, fmt.Errorf("at most %d attachments are allowed", maxAttachmentCount)
	}

	files := make([]models.AttachmentFile, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > maxAttachmentSize {
			return nil, fmt.Errorf("file %s exceeds 10MB limit", fh.Filename)
		}
		data, err := readPart(fh)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		files = append(files, models.AttachmentFile{Name: fh.Filename, Data: data})
	}
	return files, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxAttachmentSize+1))
}

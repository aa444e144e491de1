package controllers

import (
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"route-feedback-api/services"
)

// ListSubmissions pages through the ledger, newest first.
func ListSubmissions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	filter := services.LedgerFilter{
		DriverID:      c.Query("driver_id"),
		ExportPending: c.Query("export_pending") == "true",
	}
	items, total, err := deps.Ledger.List(filter, limit, (page-1)*limit)
	if err != nil {
		log.Printf("admin: list submissions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch submissions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetSubmission returns a ledger row and, when still on disk, the stored submission.
func GetSubmission(c *gin.Context) {
	rec, err := deps.Ledger.Get(c.Param("id"))
	if errors.Is(err, services.ErrSubmissionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Submission not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch submission"})
		return
	}

	resp := gin.H{"success": true, "data": rec}
	if rec.LocalPath != "" {
		if stored, err := services.ReadStoredSubmission(rec.LocalPath); err == nil {
			resp["submission"] = stored
		} else {
			log.Printf("admin: read %s: %v", rec.LocalPath, err)
		}
	}
	c.JSON(http.StatusOK, resp)
}

// DownloadExport serves the local tabular export.
func DownloadExport(c *gin.Context) {
	path := deps.LocalStore.ExportPath()
	if path == "" {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Local export is disabled"})
		return
	}
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "No submissions exported yet"})
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

// ResyncExport pushes ledger rows whose export sync failed.
func ResyncExport(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	result, err := services.ResyncPendingExports(c.Request.Context(), deps.Ledger, deps.Remote, limit)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error(), "data": result})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"route-feedback-api/models"
)

// GetForm returns a blank form with its defaults and every option list the
// client needs to render it.
func GetForm(c *gin.Context) {
	policy := deps.Submissions.Policy()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"form":    models.NewFormState(),
		"options": gin.H{
			"idc_liaisons":         models.IDCLiaisonOptions,
			"vehicle_types":        models.VehicleTypeOptions,
			"issue_scopes":         models.ScopeOptions,
			"severities":           models.SeverityOptions,
			"satisfaction":         models.SatisfactionOptions,
			"estimated_time_lost":  models.TimeLostOptions,
			"issue_categories":     models.IssueCategories,
			"stations":             deps.Lists.Stations,
			"idcs":                 deps.Lists.IDCs,
			"allowed_extensions":   policy.AllowedExtensions,
			"require_stop_address": policy.RequireStopAddress,
		},
	})
}

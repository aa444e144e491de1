package services

import (
	"fmt"
	"strings"
	"time"

	"route-feedback-api/models"
	"route-feedback-api/utils"
)

const routeDateLayout = "2006-01-02"

// FormPolicy holds the build-time switches between the two form variants.
type FormPolicy struct {
	RequireStopAddress bool
	AllowedExtensions  []string
	// ImagesOnly only changes the wording of the attachment error.
	ImagesOnly bool
}

// PolicyFor returns the policy for the "images" or "documents" variant.
func PolicyFor(variant string, requireStopAddress bool) FormPolicy {
	if variant == "documents" {
		return FormPolicy{RequireStopAddress: requireStopAddress, AllowedExtensions: models.DocumentExtensions}
	}
	return FormPolicy{RequireStopAddress: requireStopAddress, AllowedExtensions: models.ImageExtensions, ImagesOnly: true}
}

// NormalizedFields is a form that passed validation: every value trimmed and
// every enum checked against its option table.
type NormalizedFields struct {
	DriverID          string
	IDCID             string
	IDCLiaison        string
	Station           string
	RouteNumber       string
	RouteDate         string
	VehicleType       string
	IssueAppliesTo    string
	StopNumber        string
	StopAddress       string
	ParcelTrackingID  string
	Severity          string
	RouteSatisfaction string
	TimeLost          string
	MainIssue         string
	SubIssue          string
	WhatHappened      string
	WhatShould        string
	Suggestion        string
	Attachments       []models.AttachmentFile
}

// ValidateForm normalizes a raw form and returns every rule it breaks, in form
// order. It has no side effects; a non-empty error list means nothing may be
// persisted.
func ValidateForm(raw *models.FormState, policy FormPolicy) (NormalizedFields, []string) {
	var errs []string
	fail := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	n := NormalizedFields{
		DriverID:          utils.SanitizeInput(raw.DriverID),
		IDCID:             utils.SanitizeInput(raw.IDCID),
		IDCLiaison:        utils.SanitizeInput(raw.IDCLiaison),
		Station:           utils.SanitizeInput(raw.Station),
		RouteNumber:       utils.SanitizeInput(raw.RouteNumber),
		RouteDate:         utils.SanitizeInput(raw.RouteDate),
		VehicleType:       utils.SanitizeInput(raw.VehicleType),
		IssueAppliesTo:    utils.SanitizeInput(raw.IssueAppliesTo),
		StopNumber:        utils.SanitizeInput(raw.StopNumber),
		StopAddress:       utils.SanitizeInput(raw.StopAddress),
		ParcelTrackingID:  utils.SanitizeInput(raw.ParcelTrackingID),
		Severity:          utils.SanitizeInput(raw.Severity),
		RouteSatisfaction: utils.SanitizeInput(raw.RouteSatisfaction),
		TimeLost:          utils.SanitizeInput(raw.TimeLost),
		MainIssue:         utils.SanitizeInput(raw.MainIssue),
		SubIssue:          utils.SanitizeInput(raw.SubIssue),
		WhatHappened:      utils.SanitizeInput(raw.WhatHappened),
		WhatShould:        utils.SanitizeInput(raw.WhatShould),
		Suggestion:        utils.SanitizeInput(raw.Suggestion),
		Attachments:       raw.Attachments,
	}

	// Identification
	if n.DriverID == "" {
		fail("Driver ID is required.")
	}
	if n.IDCID == "" {
		fail("IDC ID is required.")
	}
	if n.Station == "" {
		fail("Station is required.")
	}
	if n.RouteNumber == "" {
		fail("Route number is required.")
	} else if !utils.IsDigitsOnly(n.RouteNumber) {
		fail("Route number must contain digits only (e.g., 1235).")
	}
	if n.RouteDate == "" {
		fail("Route date is required.")
	} else if d, err := time.Parse(routeDateLayout, n.RouteDate); err != nil {
		fail("Route date must be a date in YYYY-MM-DD format.")
	} else {
		n.RouteDate = d.Format(routeDateLayout)
	}
	checkOption(&errs, "IDC Liaison", n.IDCLiaison, models.IDCLiaisonOptions)
	checkOption(&errs, "Vehicle type", n.VehicleType, models.VehicleTypeOptions)

	// Problem scope
	checkOption(&errs, "Issue scope", n.IssueAppliesTo, models.ScopeOptions)
	if n.IssueAppliesTo == models.ScopeSpecificStop {
		if n.StopNumber == "" {
			fail("Stop number is required when '%s' is selected.", models.ScopeSpecificStop)
		}
		if policy.RequireStopAddress && n.StopAddress == "" {
			fail("Stop address is required when '%s' is selected.", models.ScopeSpecificStop)
		}
		if n.ParcelTrackingID == "" {
			fail("Parcel Tracking ID is required when '%s' is selected.", models.ScopeSpecificStop)
		}
	}
	checkOption(&errs, "Severity", n.Severity, models.SeverityOptions)
	if n.RouteSatisfaction == "" {
		n.RouteSatisfaction = models.SatisfactionOptions[0]
	} else if !models.ContainsOption(models.SatisfactionOptions, n.RouteSatisfaction) {
		fail("Route satisfaction must be a rating from 0 to 5.")
	}
	checkOption(&errs, "Estimated time lost", n.TimeLost, models.TimeLostOptions)

	// Issue identification
	if n.MainIssue == "" {
		fail("Main issue category is required.")
	} else if allowed, ok := models.SubcategoriesFor(n.MainIssue); !ok {
		fail("Main issue category %q is not a known category.", n.MainIssue)
	} else if n.SubIssue == "" {
		fail("Sub-category is required.")
	} else if !models.ContainsOption(allowed, n.SubIssue) {
		fail("Sub-category %q does not belong to %q.", n.SubIssue, n.MainIssue)
	}

	// Attachments
	for _, f := range n.Attachments {
		if models.ContainsOption(policy.AllowedExtensions, utils.Extension(f.Name)) {
			continue
		}
		if policy.ImagesOnly {
			fail("Only images are allowed. Invalid file: %s", f.Name)
		} else {
			fail("File type not allowed: %s", f.Name)
		}
	}

	if !raw.Agree {
		fail("You must confirm the accuracy checkbox.")
	}

	return n, errs
}

func checkOption(errs *[]string, label, value string, options []string) {
	if value == "" {
		*errs = append(*errs, label+" is required.")
		return
	}
	if !models.ContainsOption(options, value) {
		*errs = append(*errs, fmt.Sprintf("%s %q is not one of: %s.", label, value, strings.Join(options, ", ")))
	}
}

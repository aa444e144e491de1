package services

import (
	"strings"
	"time"

	"route-feedback-api/models"
)

const (
	submissionIDPrefix = "rof_"
	submissionIDLayout = "20060102T150405.000000Z"
	submittedAtLayout  = "2006-01-02T15:04:05.000000Z07:00"
	listSeparator      = "; "
)

// NewSubmissionID derives a submission id from a UTC instant, with
// microsecond precision.
func NewSubmissionID(t time.Time) string {
	return submissionIDPrefix + t.UTC().Format(submissionIDLayout)
}

// PayloadBuilder turns validated fields into a Submission. It is the only
// place a submission id is assigned.
type PayloadBuilder struct {
	now func() time.Time
}

func NewPayloadBuilder(now func() time.Time) *PayloadBuilder {
	if now == nil {
		now = time.Now
	}
	return &PayloadBuilder{now: now}
}

// Build stamps id and time from a single clock reading. Blank optional fields
// become nil. Stop number, stop address and parcel tracking id are dropped
// unless the issue concerns a specific stop.
func (b *PayloadBuilder) Build(n NormalizedFields) models.Submission {
	at := b.now().UTC()

	sub := models.Submission{
		SubmissionID:           NewSubmissionID(at),
		SubmittedAtUTC:         at.Format(submittedAtLayout),
		DriverID:               n.DriverID,
		IDCID:                  n.IDCID,
		IDCLiaison:             n.IDCLiaison,
		Station:                n.Station,
		RouteNumber:            n.RouteNumber,
		RouteDate:              n.RouteDate,
		VehicleType:            n.VehicleType,
		IssueAppliesTo:         n.IssueAppliesTo,
		Severity:               n.Severity,
		RouteSatisfaction:      n.RouteSatisfaction,
		EstimatedTimeLost:      n.TimeLost,
		MainIssueCategory:      n.MainIssue,
		SubCategory:            n.SubIssue,
		WhatHappened:           optional(n.WhatHappened),
		WhatShouldHaveHappened: optional(n.WhatShould),
		Suggestion:             optional(n.Suggestion),
		AttachmentNames:        make([]string, 0, len(n.Attachments)),
	}
	if n.IssueAppliesTo == models.ScopeSpecificStop {
		sub.StopNumber = optional(n.StopNumber)
		sub.StopAddress = optional(n.StopAddress)
		sub.ParcelTrackingID = optional(n.ParcelTrackingID)
	}
	for _, f := range n.Attachments {
		sub.AttachmentNames = append(sub.AttachmentNames, f.Name)
	}
	return sub
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ExportRecord flattens a submission into export columns, followed by any
// sink-specific extras such as stored attachment paths.
func ExportRecord(sub models.Submission, extra ...Column) Record {
	rec := Record{
		{Name: "submission_id", Value: sub.SubmissionID},
		{Name: "submitted_at_utc", Value: sub.SubmittedAtUTC},
		{Name: "driver_id", Value: sub.DriverID},
		{Name: "idc_id", Value: sub.IDCID},
		{Name: "idc_liaison", Value: sub.IDCLiaison},
		{Name: "station", Value: sub.Station},
		{Name: "route_number", Value: sub.RouteNumber},
		{Name: "route_date", Value: sub.RouteDate},
		{Name: "vehicle_type", Value: sub.VehicleType},
		{Name: "parcel_tracking_id", Value: deref(sub.ParcelTrackingID)},
		{Name: "issue_applies_to", Value: sub.IssueAppliesTo},
		{Name: "stop_number", Value: deref(sub.StopNumber)},
		{Name: "stop_address", Value: deref(sub.StopAddress)},
		{Name: "severity", Value: sub.Severity},
		{Name: "route_satisfaction", Value: sub.RouteSatisfaction},
		{Name: "estimated_time_lost", Value: sub.EstimatedTimeLost},
		{Name: "main_issue_category", Value: sub.MainIssueCategory},
		{Name: "sub_category", Value: sub.SubCategory},
		{Name: "what_happened", Value: deref(sub.WhatHappened)},
		{Name: "what_should_have_happened", Value: deref(sub.WhatShouldHaveHappened)},
		{Name: "suggestion", Value: deref(sub.Suggestion)},
		{Name: "attachment_names", Value: strings.Join(sub.AttachmentNames, listSeparator)},
	}
	return append(rec, extra...)
}

// ListColumn joins a list of paths into one export cell.
func ListColumn(name string, values []string) Column {
	return Column{Name: name, Value: strings.Join(values, listSeparator)}
}

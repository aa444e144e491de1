package models

import "time"

// Submission is one validated feedback record. It is built once per submit
// and never modified after a sink has persisted it.
type Submission struct {
	SubmissionID           string   `json:"submission_id"`
	SubmittedAtUTC         string   `json:"submitted_at_utc"`
	DriverID               string   `json:"driver_id"`
	IDCID                  string   `json:"idc_id"`
	IDCLiaison             string   `json:"idc_liaison"`
	Station                string   `json:"station"`
	RouteNumber            string   `json:"route_number"`
	RouteDate              string   `json:"route_date"`
	VehicleType            string   `json:"vehicle_type"`
	ParcelTrackingID       *string  `json:"parcel_tracking_id"`
	IssueAppliesTo         string   `json:"issue_applies_to"`
	StopNumber             *string  `json:"stop_number"`
	StopAddress            *string  `json:"stop_address"`
	Severity               string   `json:"severity"`
	RouteSatisfaction      string   `json:"route_satisfaction"`
	EstimatedTimeLost      string   `json:"estimated_time_lost"`
	MainIssueCategory      string   `json:"main_issue_category"`
	SubCategory            string   `json:"sub_category"`
	WhatHappened           *string  `json:"what_happened"`
	WhatShouldHaveHappened *string  `json:"what_should_have_happened"`
	Suggestion             *string  `json:"suggestion"`
	AttachmentNames        []string `json:"attachment_names"`
}

// IdentityFields are the submitter identifiers embedded in remote attachment names.
type IdentityFields struct {
	DriverID string
	IDCID    string
}

// Identity returns the fields used to make stored attachments attributable.
func (s Submission) Identity() IdentityFields {
	return IdentityFields{DriverID: s.DriverID, IDCID: s.IDCID}
}

// SubmissionRecord is the ledger row kept for every persisted submission,
// together with the outcome of each sink.
type SubmissionRecord struct {
	SubmissionID      string    `gorm:"primaryKey;column:submission_id;size:64" json:"submission_id"`
	SubmittedAt       time.Time `gorm:"column:submitted_at;index" json:"submitted_at"`
	DriverID          string    `gorm:"column:driver_id;size:100;index" json:"driver_id"`
	IDCID             string    `gorm:"column:idc_id;size:100" json:"idc_id"`
	Station           string    `gorm:"column:station;size:50" json:"station"`
	RouteNumber       string    `gorm:"column:route_number;size:20" json:"route_number"`
	RouteDate         string    `gorm:"column:route_date;size:10" json:"route_date"`
	Severity          string    `gorm:"column:severity;size:20" json:"severity"`
	MainIssueCategory string    `gorm:"column:main_issue_category;size:100" json:"main_issue_category"`
	SubCategory       string    `gorm:"column:sub_category;size:100" json:"sub_category"`
	LocalPath         string    `gorm:"column:local_path" json:"local_path"`
	LocalOK           bool      `gorm:"column:local_ok" json:"local_ok"`
	LocalError        *string   `gorm:"column:local_error;type:text" json:"local_error,omitempty"`
	AttachmentsOK     bool      `gorm:"column:attachments_ok" json:"attachments_ok"`
	AttachmentsError  *string   `gorm:"column:attachments_error;type:text" json:"attachments_error,omitempty"`
	RemotePaths       string    `gorm:"column:remote_paths;type:text" json:"remote_paths"`
	ExportOK          bool      `gorm:"column:export_ok;index" json:"export_ok"`
	ExportError       *string   `gorm:"column:export_error;type:text" json:"export_error,omitempty"`
	CreateAt          time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt          time.Time `gorm:"column:update_at" json:"update_at"`
}

func (SubmissionRecord) TableName() string {
	return "submissions"
}

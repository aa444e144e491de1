package models

// AttachmentFile is one user-supplied file held in memory until a sink stores it.
type AttachmentFile struct {
	Name string
	Data []byte
}

// FormState holds the raw, user-entered field set of one feedback form.
// Values are kept exactly as typed; trimming and checks happen in the validator.
type FormState struct {
	DriverID          string           `json:"driver_id" form:"driver_id"`
	IDCID             string           `json:"idc_id" form:"idc_id"`
	IDCLiaison        string           `json:"idc_liaison" form:"idc_liaison"`
	Station           string           `json:"station" form:"station"`
	RouteNumber       string           `json:"route_number" form:"route_number"`
	RouteDate         string           `json:"route_date" form:"route_date"`
	VehicleType       string           `json:"vehicle_type" form:"vehicle_type"`
	IssueAppliesTo    string           `json:"issue_applies_to" form:"issue_applies_to"`
	StopNumber        string           `json:"stop_number" form:"stop_number"`
	StopAddress       string           `json:"stop_address" form:"stop_address"`
	ParcelTrackingID  string           `json:"parcel_tracking_id" form:"parcel_tracking_id"`
	Severity          string           `json:"severity" form:"severity"`
	RouteSatisfaction string           `json:"route_satisfaction" form:"route_satisfaction"`
	TimeLost          string           `json:"estimated_time_lost" form:"estimated_time_lost"`
	MainIssue         string           `json:"main_issue_category" form:"main_issue_category"`
	SubIssue          string           `json:"sub_category" form:"sub_category"`
	WhatHappened      string           `json:"what_happened" form:"what_happened"`
	WhatShould        string           `json:"what_should_have_happened" form:"what_should_have_happened"`
	Suggestion        string           `json:"suggestion" form:"suggestion"`
	Agree             bool             `json:"agree" form:"agree"`
	Attachments       []AttachmentFile `json:"-" form:"-"`
}

// NewFormState returns the form as it looks before the user touches it.
func NewFormState() *FormState {
	return &FormState{
		IDCLiaison:        DefaultUnknownOption,
		VehicleType:       DefaultUnknownOption,
		IssueAppliesTo:    ScopeEntireRoute,
		Severity:          "Medium",
		RouteSatisfaction: "0",
		TimeLost:          TimeLostOptions[0],
	}
}

// SetMainIssue changes the main category. A different category invalidates
// whatever sub-category was picked before, so it is cleared.
func (f *FormState) SetMainIssue(category string) {
	if f.MainIssue != category {
		f.SubIssue = ""
	}
	f.MainIssue = category
}

// Reset puts the form back to its default state.
func (f *FormState) Reset() {
	*f = *NewFormState()
}

package controllers

import (
	"route-feedback-api/config"
	"route-feedback-api/services"
)

// Dependencies are the services the handlers share. Configure sets them once
// at startup, before the router serves traffic.
type Dependencies struct {
	Settings    *config.Settings
	Submissions *services.SubmissionService
	Ledger      *services.SubmissionLedger
	LocalStore  *services.LocalStore
	Remote      services.RemoteSink
	Lists       *services.ReferenceLists
}

var deps Dependencies

func Configure(d Dependencies) {
	if d.Lists == nil {
		d.Lists = &services.ReferenceLists{IDCs: []string{}, Stations: []string{}}
	}
	deps = d
}

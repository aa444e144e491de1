package services

import (
	"fmt"
	"html/template"
	"strings"

	"route-feedback-api/config"
)

// MailNotifier e-mails a summary of submissions that had a failed sink.
type MailNotifier struct {
	recipients []string
	send       func(to []string, subject, html string) error
}

// NewMailNotifier returns a notifier sending through config.SendMail. With no
// recipients it does nothing.
func NewMailNotifier(recipients []string) *MailNotifier {
	return &MailNotifier{recipients: recipients, send: config.SendMail}
}

func (n *MailNotifier) NotifyFailure(outcome *SubmissionOutcome) error {
	if len(n.recipients) == 0 {
		return nil
	}
	subject := fmt.Sprintf("[Route feedback] %s submission %s", outcome.Outcome(), outcome.SubmissionID)
	return n.send(n.recipients, subject, failureEmailHTML(outcome))
}

func failureEmailHTML(o *SubmissionOutcome) string {
	type row struct{ label, value string }
	rows := []row{
		{"Submission", o.SubmissionID},
		{"Driver ID", o.Submission.DriverID},
		{"IDC", o.Submission.IDCID},
		{"Station", o.Submission.Station},
		{"Route", o.Submission.RouteNumber + " (" + o.Submission.RouteDate + ")"},
		{"Local file", o.LocalPath},
	}
	sinks := []struct {
		label string
		out   SinkOutcome
	}{
		{"Local save", o.LocalSave},
		{"Attachment upload", o.AttachmentUpload},
		{"Export sync", o.ExportSync},
	}
	for _, s := range sinks {
		value := string(s.out.Status)
		if s.out.Error != "" {
			value += ": " + s.out.Error
		}
		rows = append(rows, row{s.label, value})
	}

	var b strings.Builder
	b.WriteString(`<p style="margin:0 0 18px 0;line-height:1.7;">A route feedback submission was not fully stored. Recover it from the local file if the export is missing it.</p>`)
	b.WriteString(`<table role="presentation" cellpadding="0" cellspacing="0" style="border:1px solid #e5e7eb;border-collapse:collapse;">`)
	for _, r := range rows {
		if strings.TrimSpace(r.value) == "" {
			continue
		}
		b.WriteString(fmt.Sprintf(`<tr><td style="padding:8px 12px;color:#6b7280;">%s</td><td style="padding:8px 12px;white-space:pre-wrap;">%s</td></tr>`,
			template.HTMLEscapeString(r.label), template.HTMLEscapeString(r.value)))
	}
	b.WriteString(`</table>`)
	return b.String()
}

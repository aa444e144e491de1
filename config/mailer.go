package config

import (
	"crypto/tls"
	"errors"
	"os"
	"strconv"

	mail "github.com/go-mail/mail/v2"
)

// ErrMailerNotConfigured is returned by SendMail when SMTP_HOST or SMTP_FROM is unset.
var ErrMailerNotConfigured = errors.New("smtp not configured (SMTP_HOST/SMTP_FROM)")

// MailerConfig holds the SMTP settings used for failure alerts.
type MailerConfig struct {
	Host          string
	Port          int
	User          string
	Pass          string
	From          string // e.g. "Route Feedback <no-reply@your.org>"
	SkipTLSVerify bool
}

var mailer MailerConfig

// ReloadMailerConfig re-reads the SMTP settings from the environment. Call it
// after godotenv has populated the environment.
func ReloadMailerConfig() {
	port, _ := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if port == 0 {
		port = 587
	}
	mailer = MailerConfig{
		Host:          os.Getenv("SMTP_HOST"),
		Port:          port,
		User:          os.Getenv("SMTP_USER"),
		Pass:          os.Getenv("SMTP_PASS"),
		From:          os.Getenv("SMTP_FROM"),
		SkipTLSVerify: os.Getenv("SMTP_SKIP_TLS_VERIFY") == "1",
	}
}

// MailerConfigured reports whether SendMail can deliver anything.
func MailerConfigured() bool {
	return mailer.Host != "" && mailer.From != ""
}

// SendMail delivers an HTML message over STARTTLS.
func SendMail(to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}
	if !MailerConfigured() {
		return ErrMailerNotConfigured
	}

	m := mail.NewMessage()
	m.SetHeader("From", mailer.From)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	d := mail.NewDialer(mailer.Host, mailer.Port, mailer.User, mailer.Pass)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         mailer.Host,
		InsecureSkipVerify: mailer.SkipTLSVerify, // dev only
	}

	return d.DialAndSend(m)
}

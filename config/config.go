package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	defaultGraphBaseURL     = "https://graph.microsoft.com/v1.0"
	defaultAuthorityURL     = "https://login.microsoftonline.com"
	defaultAttachmentSuffix = "ROF_Attachments"
)

// Settings is the resolved application configuration.
type Settings struct {
	ServerPort string
	GinMode    string

	SubmissionsDir  string
	LocalExportFile string
	IDCFile         string
	StationsFile    string

	// FormVariant selects the attachment allow-list: "images" or "documents".
	FormVariant        string
	RequireStopAddress bool

	Remote RemoteSettings

	JWTSecret         string
	JWTExpireHours    int
	AdminUsername     string
	AdminPasswordHash string
	LogsToken         string

	AllowedOrigins      []string
	AlertEmails         []string
	SubmitRatePerMinute int
}

// RemoteSettings configures the Microsoft Graph document host. The env tag
// is the key the value is read from.
type RemoteSettings struct {
	TenantID          string `env:"TENANT_ID" validate:"required"`
	ClientID          string `env:"CLIENT_ID" validate:"required"`
	ClientSecret      string `env:"CLIENT_SECRET" validate:"required"`
	SiteHostname      string `env:"SP_HOSTNAME" validate:"required"`
	SitePath          string `env:"SP_SITE_PATH" validate:"required"`
	ExcelPath         string `env:"SP_EXCEL_PATH" validate:"required"`
	AttachmentsFolder string `env:"SP_ATTACHMENTS_FOLDER"`

	GraphBaseURL      string        `env:"GRAPH_BASE_URL" validate:"required,url"`
	AuthorityURL      string        `env:"GRAPH_AUTHORITY_URL" validate:"required,url"`
	Timeout           time.Duration `env:"REMOTE_TIMEOUT_SECONDS" validate:"gt=0"`
	TransferTimeout   time.Duration `env:"REMOTE_TRANSFER_TIMEOUT_SECONDS" validate:"gt=0"`
	ConditionalUpload bool          `env:"EXPORT_CONDITIONAL_UPLOAD"`
}

// ConfigurationError lists required settings that are absent or invalid.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("remote sync is not configured (missing %s)", strings.Join(e.Missing, "/"))
}

// IsConfigurationError reports whether err is, or wraps, a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

var remoteValidate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}()

// Validate checks that every setting needed to reach the remote host is present.
func (r RemoteSettings) Validate() error {
	err := remoteValidate.Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	missing := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		missing = append(missing, fe.Field())
	}
	return &ConfigurationError{Missing: missing}
}

// AttachmentsFolderPath returns the configured remote attachments folder or,
// when unset, a folder next to the export file. The result always starts with "/".
func (r RemoteSettings) AttachmentsFolderPath() string {
	folder := strings.ReplaceAll(r.AttachmentsFolder, "\\", "/")
	if strings.TrimSpace(folder) == "" {
		base := path.Dir(strings.ReplaceAll(r.ExcelPath, "\\", "/"))
		if base == "." {
			base = ""
		}
		folder = strings.TrimSuffix(base, "/") + "/" + defaultAttachmentSuffix
	}
	if !strings.HasPrefix(folder, "/") {
		folder = "/" + folder
	}
	return folder
}

// source resolves keys from the secrets file first and the environment second.
type source struct {
	secrets map[string]string
}

func loadSecretsFile(file string) (map[string]string, error) {
	secrets := map[string]string{}
	if file == "" {
		return secrets, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return secrets, nil
		}
		return nil, fmt.Errorf("read secrets file: %w", err)
	}
	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse secrets file %s: %w", file, err)
	}
	for k, v := range raw {
		if v == nil {
			continue
		}
		secrets[k] = fmt.Sprint(v)
	}
	return secrets, nil
}

func (s source) get(key, fallback string) string {
	if v, ok := s.secrets[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (s source) getInt(key string, fallback int) int {
	v, err := strconv.Atoi(s.get(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func (s source) getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(s.get(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func (s source) getSeconds(key string, fallback int) time.Duration {
	return time.Duration(s.getInt(key, fallback)) * time.Second
}

// Load builds Settings from the secrets file named by SECRETS_FILE
// (default secrets.yaml) layered over the process environment.
func Load() (*Settings, error) {
	secretsFile := os.Getenv("SECRETS_FILE")
	if secretsFile == "" {
		secretsFile = "secrets.yaml"
	}
	secrets, err := loadSecretsFile(secretsFile)
	if err != nil {
		return nil, err
	}
	src := source{secrets: secrets}

	submissionsDir := src.get("SUBMISSIONS_DIR", "submissions")
	settings := &Settings{
		ServerPort:         src.get("SERVER_PORT", "8080"),
		GinMode:            src.get("GIN_MODE", ""),
		SubmissionsDir:     submissionsDir,
		LocalExportFile:    src.get("LOCAL_EXPORT_FILE", path.Join(submissionsDir, "route_optimization_feedback.xlsx")),
		IDCFile:            src.get("IDC_FILE", ""),
		StationsFile:       src.get("STATIONS_FILE", "Station adresses ASN.xlsx"),
		FormVariant:        strings.ToLower(src.get("FORM_VARIANT", "images")),
		RequireStopAddress: src.getBool("REQUIRE_STOP_ADDRESS", true),
		Remote: RemoteSettings{
			TenantID:          src.get("TENANT_ID", ""),
			ClientID:          src.get("CLIENT_ID", ""),
			ClientSecret:      src.get("CLIENT_SECRET", ""),
			SiteHostname:      src.get("SP_HOSTNAME", ""),
			SitePath:          src.get("SP_SITE_PATH", ""),
			ExcelPath:         src.get("SP_EXCEL_PATH", ""),
			AttachmentsFolder: src.get("SP_ATTACHMENTS_FOLDER", ""),
			GraphBaseURL:      strings.TrimSuffix(src.get("GRAPH_BASE_URL", defaultGraphBaseURL), "/"),
			AuthorityURL:      strings.TrimSuffix(src.get("GRAPH_AUTHORITY_URL", defaultAuthorityURL), "/"),
			Timeout:           src.getSeconds("REMOTE_TIMEOUT_SECONDS", 30),
			TransferTimeout:   src.getSeconds("REMOTE_TRANSFER_TIMEOUT_SECONDS", 120),
			ConditionalUpload: src.getBool("EXPORT_CONDITIONAL_UPLOAD", true),
		},
		JWTSecret:           src.get("JWT_SECRET", ""),
		JWTExpireHours:      src.getInt("JWT_EXPIRE_HOURS", 24),
		AdminUsername:       src.get("ADMIN_USERNAME", ""),
		AdminPasswordHash:   src.get("ADMIN_PASSWORD_HASH", ""),
		LogsToken:           src.get("LOGS_TOKEN", ""),
		SubmitRatePerMinute: src.getInt("SUBMIT_RATE_PER_MINUTE", 30),
	}

	settings.AlertEmails = splitList(src.get("ALERT_EMAILS", ""))
	settings.AllowedOrigins = splitList(src.get("CORS_ALLOWED_ORIGINS", ""))

	if settings.FormVariant != "images" && settings.FormVariant != "documents" {
		return nil, fmt.Errorf("FORM_VARIANT must be images or documents, got %q", settings.FormVariant)
	}

	return settings, nil
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

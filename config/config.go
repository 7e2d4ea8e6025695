package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// DefaultTimezone labels and derives the target month when none is configured.
const DefaultTimezone = "America/Argentina/Buenos_Aires"

// ErrMissingField is wrapped by Validate for every absent required field.
var ErrMissingField = errors.New("missing required configuration")

// Config holds all application configuration.
type Config struct {
	LoginURL   string
	OwnersURL  string
	Email      string
	Password   string
	WebhookURL string

	Timezone          string
	SelectorOverrides map[string]string
	UseSSOLogin       bool
	MFAWait           time.Duration

	Headless       bool
	ChromeBin      string
	WebhookTimeout time.Duration

	SessionStore     string // "sqlite" or "postgres"
	SQLitePath       string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	ArtifactDir      string
	ArtifactS3Bucket string
	ArtifactS3Prefix string
	ResultsCSVPath   string

	LogLevel string
}

// Input is the JSON input document, field-compatible with the console
// actor's input schema.
type Input struct {
	LoginURL          string            `json:"loginUrl"`
	OwnersURL         string            `json:"ownersUrl"`
	Email             string            `json:"email"`
	Password          string            `json:"password"`
	WebhookURL        string            `json:"webhookUrl"`
	N8NWebhookURL     string            `json:"n8nWebhookUrl"`
	Timezone          string            `json:"timezone"`
	SelectorOverrides map[string]string `json:"selectorOverrides"`
	Selectors         map[string]string `json:"selectors"`
	UseSSOLogin       *bool             `json:"useSSOLogin"`
	MFAWaitSeconds    *int              `json:"mfaWaitSeconds"`
}

// Load reads the optional .env file and JSON input document, then applies
// environment variables on top. An empty envFile means ".env"; a missing
// .env is not an error.
func Load(envFile, inputFile string) (*Config, error) {
	if envFile == "" {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFile); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", envFile, err)
	}

	cfg := &Config{
		Timezone:          DefaultTimezone,
		SelectorOverrides: map[string]string{},
		MFAWait:           120 * time.Second,
	}

	if inputFile == "" {
		inputFile = os.Getenv("INPUT_FILE")
	}
	if inputFile != "" {
		in, err := readInput(inputFile)
		if err != nil {
			return nil, err
		}
		cfg.applyInput(in)
	}

	cfg.LoginURL = getEnv("LOGIN_URL", cfg.LoginURL)
	cfg.OwnersURL = getEnv("OWNERS_URL", cfg.OwnersURL)
	cfg.Email = getEnv("LOGIN_EMAIL", cfg.Email)
	cfg.Password = getEnv("LOGIN_PASSWORD", cfg.Password)
	cfg.WebhookURL = getEnv("WEBHOOK_URL", getEnv("N8N_WEBHOOK_URL", cfg.WebhookURL))
	cfg.Timezone = getEnv("TIMEZONE", cfg.Timezone)
	cfg.UseSSOLogin = getEnvBool("USE_SSO_LOGIN", cfg.UseSSOLogin)
	cfg.MFAWait = time.Duration(getEnvInt("MFA_WAIT_SECONDS", int(cfg.MFAWait/time.Second))) * time.Second

	if raw := os.Getenv("SELECTOR_OVERRIDES"); raw != "" {
		var overrides map[string]string
		if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
			return nil, fmt.Errorf("config: SELECTOR_OVERRIDES is not a JSON object of strings: %w", err)
		}
		for k, v := range overrides {
			cfg.SelectorOverrides[k] = v
		}
	}

	cfg.Headless = getEnvBool("HEADLESS", true)
	cfg.ChromeBin = getEnv("CHROME_BIN", "")
	cfg.WebhookTimeout = time.Duration(getEnvInt("WEBHOOK_TIMEOUT_SECONDS", 60)) * time.Second

	cfg.SessionStore = strings.ToLower(getEnv("SESSION_STORE", "sqlite"))
	cfg.SQLitePath = getEnv("SQLITE_PATH", "./data/state.db")
	cfg.PostgresHost = getEnv("POSTGRES_HOST", "localhost")
	cfg.PostgresPort = getEnv("POSTGRES_PORT", "5432")
	cfg.PostgresUser = getEnv("POSTGRES_USER", "scraper")
	cfg.PostgresPassword = getEnv("POSTGRES_PASSWORD", "")
	cfg.PostgresDB = getEnv("POSTGRES_DB", "owner_revenue")
	cfg.PostgresSSLMode = getEnv("POSTGRES_SSLMODE", "disable")

	cfg.ArtifactDir = getEnv("ARTIFACT_DIR", "")
	cfg.ArtifactS3Bucket = getEnv("ARTIFACT_S3_BUCKET", "")
	cfg.ArtifactS3Prefix = getEnv("ARTIFACT_S3_PREFIX", "owner-revenue")
	cfg.ResultsCSVPath = getEnv("RESULTS_CSV_PATH", "")

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	return cfg, nil
}

func readInput(path string) (*Input, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read input %s: %w", path, err)
	}
	var in Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("config: parse input %s: %w", path, err)
	}
	return &in, nil
}

func (c *Config) applyInput(in *Input) {
	c.LoginURL = in.LoginURL
	c.OwnersURL = in.OwnersURL
	c.Email = in.Email
	c.Password = in.Password
	c.WebhookURL = in.WebhookURL
	if c.WebhookURL == "" {
		c.WebhookURL = in.N8NWebhookURL
	}
	if in.Timezone != "" {
		c.Timezone = in.Timezone
	}
	for k, v := range in.Selectors {
		c.SelectorOverrides[k] = v
	}
	for k, v := range in.SelectorOverrides {
		c.SelectorOverrides[k] = v
	}
	if in.UseSSOLogin != nil {
		c.UseSSOLogin = *in.UseSSOLogin
	}
	if in.MFAWaitSeconds != nil {
		c.MFAWait = time.Duration(*in.MFAWaitSeconds) * time.Second
	}
}

// Validate reports every missing required field at once, wrapped in
// ErrMissingField, plus any malformed optional value.
func (c *Config) Validate() error {
	var missing []string
	required := []struct {
		name, value string
	}{
		{"loginUrl (LOGIN_URL)", c.LoginURL},
		{"ownersUrl (OWNERS_URL)", c.OwnersURL},
		{"email (LOGIN_EMAIL)", c.Email},
		{"password (LOGIN_PASSWORD)", c.Password},
		{"webhookUrl (WEBHOOK_URL)", c.WebhookURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: invalid timezone %q: %w", c.Timezone, err)
	}
	if c.MFAWait <= 0 {
		return fmt.Errorf("config: mfaWaitSeconds must be positive, got %v", c.MFAWait)
	}
	switch c.SessionStore {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown SESSION_STORE %q (want sqlite or postgres)", c.SessionStore)
	}
	return nil
}

// Location returns the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

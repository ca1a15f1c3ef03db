package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	MQTT      MQTTConfig
	Matcher   MatcherConfig
	Alerts    AlertsConfig
	Reporting ReportingConfig
	WhatsApp  WhatsAppConfig
	Twilio    TwilioConfig
	SendGrid  SendGridConfig
	Sheets    SheetsConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port     string
	Timezone string
}

// LogConfig selects the zap level.
type LogConfig struct {
	Level string
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MaxIdle  int
}

// MongoDBConfig holds settings for MongoDB. An empty URI disables report snapshots.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// RedisConfig holds the alert cool-down store settings. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig holds the valve event broker settings. An empty BrokerURL disables it.
type MQTTConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// MatcherConfig holds the schedule poller cadence and trigger windows.
type MatcherConfig struct {
	PollInterval time.Duration
	StartWindow  time.Duration
	EndWindow    time.Duration
}

// AlertsConfig holds the dry-parcel monitor settings.
type AlertsConfig struct {
	CheckInterval     time.Duration
	HumidityThreshold float64
	Cooldown          time.Duration
}

// ReportingConfig holds scheduler-related settings.
type ReportingConfig struct {
	CronSchedule string
	Recipient    string
}

// WhatsAppConfig contains credentials and options for the Meta WhatsApp Cloud API.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	VerifyToken   string
	BaseURL       string
	APIVersion    string
}

// Enabled reports whether outbound WhatsApp messages can be sent.
func (c WhatsAppConfig) Enabled() bool {
	return c.AccessToken != "" && c.PhoneNumberID != ""
}

// TwilioConfig contains the SMS provider credentials.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
}

// Enabled reports whether SMS delivery is configured.
func (c TwilioConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

// SendGridConfig contains the email provider credentials.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	BaseURL   string
}

// Enabled reports whether email delivery is configured.
func (c SendGridConfig) Enabled() bool {
	return c.APIKey != "" && c.FromEmail != ""
}

// SheetsConfig contains configuration required to interact with Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// Enabled reports whether the usage mirror is configured.
func (c SheetsConfig) Enabled() bool {
	return c.CredentialsPath != "" && c.SpreadsheetID != ""
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	var parseErrs []error
	duration := func(key string, fallback time.Duration) time.Duration {
		d, err := getDurationWithDefault(key, fallback)
		parseErrs = append(parseErrs, err)
		return d
	}
	integer := func(key string, fallback int) int {
		n, err := getIntWithDefault(key, fallback)
		parseErrs = append(parseErrs, err)
		return n
	}
	float := func(key string, fallback float64) float64 {
		f, err := getFloatWithDefault(key, fallback)
		parseErrs = append(parseErrs, err)
		return f
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     getenvWithDefault("APP_PORT", "8080"),
			Timezone: getenvWithDefault("TIMEZONE", "America/Guatemala"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			MaxConns: integer("DB_MAX_CONNS", 10),
			MaxIdle:  integer("DB_MAX_IDLE", 5),
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "agroirrigate"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       integer("REDIS_DB", 0),
		},
		MQTT: MQTTConfig{
			BrokerURL:   os.Getenv("MQTT_BROKER_URL"),
			ClientID:    getenvWithDefault("MQTT_CLIENT_ID", "agroirrigate-server"),
			Username:    os.Getenv("MQTT_USERNAME"),
			Password:    os.Getenv("MQTT_PASSWORD"),
			TopicPrefix: getenvWithDefault("MQTT_TOPIC_PREFIX", "agroirrigate"),
		},
		Matcher: MatcherConfig{
			PollInterval: duration("MATCHER_POLL_INTERVAL", 10*time.Second),
			StartWindow:  duration("MATCHER_START_WINDOW", 15*time.Second),
			EndWindow:    duration("MATCHER_END_WINDOW", 30*time.Second),
		},
		Alerts: AlertsConfig{
			CheckInterval:     duration("ALERT_CHECK_INTERVAL", 2*time.Minute),
			HumidityThreshold: float("ALERT_HUMIDITY_THRESHOLD", 20),
			Cooldown:          duration("ALERT_COOLDOWN", 24*time.Hour),
		},
		Reporting: ReportingConfig{
			CronSchedule: getenvWithDefault("REPORT_CRON_SCHEDULE", "0 20 * * *"),
			Recipient:    os.Getenv("REPORT_RECIPIENT"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			VerifyToken:   os.Getenv("META_VERIFY_TOKEN"),
			BaseURL:       getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:    getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
		},
		Twilio: TwilioConfig{
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			FromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
			BaseURL:    getenvWithDefault("TWILIO_BASE_URL", "https://api.twilio.com"),
		},
		SendGrid: SendGridConfig{
			APIKey:    os.Getenv("SENDGRID_API_KEY"),
			FromEmail: os.Getenv("SENDGRID_FROM_EMAIL"),
			FromName:  getenvWithDefault("SENDGRID_FROM_NAME", "AgroIrrigate"),
			BaseURL:   getenvWithDefault("SENDGRID_BASE_URL", "https://api.sendgrid.com"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
		},
	}

	if err := errors.Join(parseErrs...); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("TIMEZONE is invalid: %w", err)
	}

	if c.Database.URL == "" {
		return errors.New("DATABASE_URL must be provided")
	}

	switch {
	case c.Matcher.PollInterval <= 0:
		return errors.New("MATCHER_POLL_INTERVAL must be positive")
	case c.Matcher.StartWindow <= 0:
		return errors.New("MATCHER_START_WINDOW must be positive")
	case c.Matcher.EndWindow <= 0:
		return errors.New("MATCHER_END_WINDOW must be positive")
	}

	if c.Alerts.CheckInterval <= 0 {
		return errors.New("ALERT_CHECK_INTERVAL must be positive")
	}

	if c.Alerts.HumidityThreshold < 0 || c.Alerts.HumidityThreshold > 100 {
		return errors.New("ALERT_HUMIDITY_THRESHOLD must be within 0-100")
	}

	if c.Alerts.Cooldown <= 0 {
		return errors.New("ALERT_COOLDOWN must be positive")
	}

	if c.Reporting.CronSchedule == "" {
		return errors.New("REPORT_CRON_SCHEDULE must be provided")
	}

	if c.WhatsApp.AccessToken != "" && c.WhatsApp.PhoneNumberID == "" {
		return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided with WHATSAPP_TOKEN")
	}

	if c.WhatsApp.Enabled() && c.WhatsApp.BaseURL == "" {
		return errors.New("WHATSAPP_BASE_URL must not be empty")
	}

	if c.WhatsApp.Enabled() && c.WhatsApp.APIVersion == "" {
		return errors.New("WHATSAPP_API_VERSION must not be empty")
	}

	if (c.Sheets.CredentialsPath == "") != (c.Sheets.SpreadsheetID == "") {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH and GOOGLE_SHEET_DATABASE_ID must be provided together")
	}

	return nil
}

// Location resolves the single time zone every schedule is authored and matched in.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Server.Timezone)
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDurationWithDefault(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getIntWithDefault(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloatWithDefault(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

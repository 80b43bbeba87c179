package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Store        StoreConfig
	Ingest       IngestConfig
	Admin        AdminConfig
	Notification NotificationConfig
	Mail         MailConfig
	SMTP         SMTPConfig
	Uptime       UptimeConfig
	MQTT         MQTTConfig
	Kafka        KafkaConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
}

type ServerConfig struct {
	Port        string
	Host        string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type StoreConfig struct {
	Driver string // postgres or memory
}

// IngestConfig controls the optional credential guard in front of status ingestion.
// APIKeys maps an API key to the campus whose recipients receive alerts for it.
type IngestConfig struct {
	APIKeys           map[string]string
	DefaultCampus     string
	RequireDeviceName bool
	Workers           int
	QueueSize         int
}

// AdminConfig gates the mutating read-model endpoints. No keys leaves them open.
type AdminConfig struct {
	APIKeys []string
}

type NotificationConfig struct {
	Cooldown  time.Duration
	Delay     time.Duration
	TimeZone  string
	Workers   int
	QueueSize int
	// SendTimeout bounds a single delivery attempt.
	SendTimeout time.Duration
}

type MailConfig struct {
	Driver         string // smtp, postmark or log
	From           string
	PostmarkAPIKey string
	PostmarkURL    string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

type UptimeConfig struct {
	Interval time.Duration
	TimeZone string
}

type MQTTConfig struct {
	Broker       string
	ClientID     string
	Username     string
	Password     string
	StatusTopic  string
	TriggerTopic string
	QoS          int
}

type KafkaConfig struct {
	Brokers     []string
	StatusTopic string
}

type RateLimitConfig struct {
	GeneralRPS   float64 // Requests per second for general endpoints
	GeneralBurst int     // Burst size for general endpoints
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("STORE_DRIVER", "postgres")
	viper.SetDefault("DEFAULT_CAMPUS", "default")
	viper.SetDefault("INGEST_WORKERS", 4)
	viper.SetDefault("INGEST_QUEUE_SIZE", 512)
	viper.SetDefault("NOTIFY_COOLDOWN", "6h")
	viper.SetDefault("NOTIFY_DELAY", "30s")
	viper.SetDefault("NOTIFY_TIMEZONE", "America/New_York")
	viper.SetDefault("NOTIFY_WORKERS", 2)
	viper.SetDefault("NOTIFY_QUEUE_SIZE", 256)
	viper.SetDefault("NOTIFY_SEND_TIMEOUT", "30s")
	viper.SetDefault("MAIL_DRIVER", "log")
	viper.SetDefault("NOTIFY_FROM", "Uptime <uptime@example.com>")
	viper.SetDefault("POSTMARK_URL", "https://api.postmarkapp.com/email")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("UPTIME_INTERVAL", "15m")
	viper.SetDefault("UPTIME_TIMEZONE", "Local")
	viper.SetDefault("MQTT_CLIENT_ID", "facility-uptime-monitor")
	viper.SetDefault("MQTT_STATUS_TOPIC", "facility/+/status")
	viper.SetDefault("MQTT_TRIGGER_TOPIC", "facility/calculate-uptime")
	viper.SetDefault("MQTT_QOS", 1)
	viper.SetDefault("KAFKA_STATUS_TOPIC", "facility.device-status")
	viper.SetDefault("RATE_LIMIT_GENERAL_RPS", 50)
	viper.SetDefault("RATE_LIMIT_GENERAL_BURST", 100)
	viper.SetDefault("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "OPTIONS"})
	viper.SetDefault("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "X-API-Key", "X-Request-ID"})
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AddConfigPath(".")
	if homeDir, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(homeDir)
	}
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Printf("Warning: config file not found: %v. Falling back to environment variables only.", err)
	}

	apiKeys, err := ParseAPIKeys(viper.GetString("INGEST_API_KEYS"))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server: ServerConfig{
			Port:        viper.GetString("SERVER_PORT"),
			Host:        viper.GetString("SERVER_HOST"),
			Environment: viper.GetString("ENVIRONMENT"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(viper.GetString("STORE_DRIVER")),
		},
		Ingest: IngestConfig{
			APIKeys:           apiKeys,
			DefaultCampus:     viper.GetString("DEFAULT_CAMPUS"),
			RequireDeviceName: viper.GetBool("INGEST_REQUIRE_DEVICE_NAME"),
			Workers:           viper.GetInt("INGEST_WORKERS"),
			QueueSize:         viper.GetInt("INGEST_QUEUE_SIZE"),
		},
		Admin: AdminConfig{
			APIKeys: splitList(viper.GetString("ADMIN_API_KEYS")),
		},
		Notification: NotificationConfig{
			Cooldown:    viper.GetDuration("NOTIFY_COOLDOWN"),
			Delay:       viper.GetDuration("NOTIFY_DELAY"),
			TimeZone:    viper.GetString("NOTIFY_TIMEZONE"),
			Workers:     viper.GetInt("NOTIFY_WORKERS"),
			QueueSize:   viper.GetInt("NOTIFY_QUEUE_SIZE"),
			SendTimeout: viper.GetDuration("NOTIFY_SEND_TIMEOUT"),
		},
		Mail: MailConfig{
			Driver:         strings.ToLower(viper.GetString("MAIL_DRIVER")),
			From:           viper.GetString("NOTIFY_FROM"),
			PostmarkAPIKey: viper.GetString("POSTMARK_API_KEY"),
			PostmarkURL:    viper.GetString("POSTMARK_URL"),
		},
		SMTP: SMTPConfig{
			Host:     viper.GetString("SMTP_HOST"),
			Port:     viper.GetInt("SMTP_PORT"),
			User:     viper.GetString("SMTP_USER"),
			Password: viper.GetString("SMTP_PASSWORD"),
		},
		Uptime: UptimeConfig{
			Interval: viper.GetDuration("UPTIME_INTERVAL"),
			TimeZone: viper.GetString("UPTIME_TIMEZONE"),
		},
		MQTT: MQTTConfig{
			Broker:       viper.GetString("MQTT_BROKER"),
			ClientID:     viper.GetString("MQTT_CLIENT_ID"),
			Username:     viper.GetString("MQTT_USERNAME"),
			Password:     viper.GetString("MQTT_PASSWORD"),
			StatusTopic:  viper.GetString("MQTT_STATUS_TOPIC"),
			TriggerTopic: viper.GetString("MQTT_TRIGGER_TOPIC"),
			QoS:          viper.GetInt("MQTT_QOS"),
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(viper.GetString("KAFKA_BROKERS")),
			StatusTopic: viper.GetString("KAFKA_STATUS_TOPIC"),
		},
		RateLimit: RateLimitConfig{
			GeneralRPS:   viper.GetFloat64("RATE_LIMIT_GENERAL_RPS"),
			GeneralBurst: viper.GetInt("RATE_LIMIT_GENERAL_BURST"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
			AllowedMethods:   viper.GetStringSlice("CORS_ALLOWED_METHODS"),
			AllowedHeaders:   viper.GetStringSlice("CORS_ALLOWED_HEADERS"),
			ExposedHeaders:   viper.GetStringSlice("CORS_EXPOSED_HEADERS"),
			AllowCredentials: viper.GetBool("CORS_ALLOW_CREDENTIALS"),
			MaxAge:           viper.GetInt("CORS_MAX_AGE"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres":
		if c.Database.Host == "" || c.Database.DBName == "" {
			return errors.New("database configuration is missing: set DB_HOST and DB_NAME or STORE_DRIVER=memory")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	switch c.Mail.Driver {
	case "smtp":
		if c.SMTP.Host == "" {
			return errors.New("MAIL_DRIVER=smtp requires SMTP_HOST")
		}
	case "postmark":
		if c.Mail.PostmarkAPIKey == "" {
			return errors.New("MAIL_DRIVER=postmark requires POSTMARK_API_KEY")
		}
	case "log":
	default:
		return fmt.Errorf("unknown MAIL_DRIVER %q", c.Mail.Driver)
	}

	if c.Notification.Cooldown < 0 || c.Notification.Delay < 0 {
		return errors.New("notification cooldown and delay must not be negative")
	}
	if c.Uptime.Interval <= 0 {
		return errors.New("UPTIME_INTERVAL must be positive")
	}
	if _, err := LoadLocation(c.Notification.TimeZone); err != nil {
		return fmt.Errorf("invalid NOTIFY_TIMEZONE: %w", err)
	}
	if _, err := LoadLocation(c.Uptime.TimeZone); err != nil {
		return fmt.Errorf("invalid UPTIME_TIMEZONE: %w", err)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// GuardEnabled reports whether status reports must carry an API key.
func (c *IngestConfig) GuardEnabled() bool {
	return len(c.APIKeys) > 0
}

// ParseAPIKeys parses "key1:campusA,key2:campusB". A key without a campus maps to
// an empty campus, which callers replace with the default campus.
func ParseAPIKeys(raw string) (map[string]string, error) {
	keys := make(map[string]string)
	for _, entry := range splitList(raw) {
		key, campus, _ := strings.Cut(entry, ":")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid INGEST_API_KEYS entry %q", entry)
		}
		if _, dup := keys[key]; dup {
			return nil, fmt.Errorf("duplicate API key in INGEST_API_KEYS")
		}
		keys[key] = strings.TrimSpace(campus)
	}
	return keys, nil
}

// LoadLocation resolves a zone name; "Local" and "" mean the process zone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

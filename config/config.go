package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every runtime setting. It is built once in the entrypoint
// and handed to each component; nothing reads the environment afterwards.
type Config struct {
	ListenAddr string
	BaseURL    string
	Debug      bool

	DataDir       string
	DirectoryMode os.FileMode
	FileMode      os.FileMode

	DefaultLifetime int
	MaxFileCount    int
	AllowZip        bool
	AllowCrypt      bool
	CryptBinary     string
	CryptSuffix     string

	SessionSecret string
	SessionTTL    time.Duration

	MaxEmail int

	DBHost     string
	DBPort     string
	DBUser     string
	DBPass     string
	DBName     string
	DBNameTest string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	RabbitMQURL      string
	RabbitMQPrefetch int

	MailWorkerConcurrency int
	MailRate              float64
	MailBurst             int
	MailRetryMax          int
	MailRetryDelays       []time.Duration

	SMTP SMTPConfig

	MirrorEnabled  bool
	MirrorHost     string
	MirrorPort     string
	MirrorUsername string
	MirrorPassword string
	MirrorBucket   string
	MirrorUseSSL   bool

	SweepLockTTL time.Duration

	LogLevel  string
	LogFormat string
}

// SMTPConfig holds the outbound mail collaborator settings.
type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Pass     string
	From     string
	TLS      bool
	StartTLS bool
}

// getEnv returns the environment value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if value == "" {
		return defaultValue
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvDurationList(key string, defaultValue []time.Duration) []time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	parts := strings.Split(raw, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		parsed, err := time.ParseDuration(part)
		if err != nil {
			return defaultValue
		}
		out = append(out, parsed)
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvFileMode(key string, defaultValue os.FileMode) os.FileMode {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseUint(raw, 8, 32)
	if err != nil {
		return defaultValue
	}
	return os.FileMode(parsed)
}

// Load assembles the configuration from the environment.
func Load() *Config {
	rabbitURL := getEnv("RABBITMQ_URL", "")
	if rabbitURL == "" && getEnv("RABBITMQ_HOST", "") != "" {
		rabbitURL = fmt.Sprintf(
			"amqp://%s:%s@%s:%s/%s",
			url.PathEscape(getEnv("RABBITMQ_USER", "guest")),
			url.PathEscape(getEnv("RABBITMQ_PASSWORD", "guest")),
			getEnv("RABBITMQ_HOST", "localhost"),
			getEnv("RABBITMQ_PORT", "5672"),
			url.PathEscape(getEnv("RABBITMQ_VHOST", "/")),
		)
	}
	retryDelays := getEnvDurationList(
		"MAIL_RETRY_DELAYS",
		[]time.Duration{10 * time.Second, 30 * time.Second, 2 * time.Minute, 10 * time.Minute},
	)

	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8000"),
		BaseURL:    strings.TrimRight(getEnv("BASE_URL", "http://localhost:8000"), "/"),
		Debug:      getEnvBool("DEBUG", false),

		DataDir:       getEnv("DATA_DIR", "data"),
		DirectoryMode: getEnvFileMode("DIRECTORY_MODE", 0o755),
		FileMode:      getEnvFileMode("FILE_MODE", 0o644),

		DefaultLifetime: getEnvInt("DEFAULT_LIFETIME", 7),
		MaxFileCount:    getEnvInt("MAX_FILE_COUNT", 10),
		AllowZip:        getEnvBool("ALLOW_ZIP", true),
		AllowCrypt:      getEnvBool("ALLOW_CRYPT", false),
		CryptBinary:     getEnv("CRYPT_BINARY", "/usr/bin/gpg"),
		CryptSuffix:     getEnv("CRYPT_SUFFIX", ".gpg"),

		SessionSecret: getEnv("SESSION_SECRET", "change-me"),
		SessionTTL:    getEnvDuration("SESSION_TTL", 4*time.Hour),

		MaxEmail: getEnvInt("MAX_EMAIL", 10),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPass:     getEnv("DB_PASS", "root"),
		DBName:     getEnv("DB_NAME", "ShareDrop"),
		DBNameTest: getEnv("DB_NAME_TEST", "ShareDrop_Test"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RabbitMQURL:      rabbitURL,
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 8),

		MailWorkerConcurrency: getEnvInt("MAIL_WORKER_CONCURRENCY", 4),
		MailRate:              getEnvFloat("MAIL_RATE", 2),
		MailBurst:             getEnvInt("MAIL_BURST", 4),
		MailRetryMax:          getEnvInt("MAIL_RETRY_MAX", 4),
		MailRetryDelays:       retryDelays,

		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnv("SMTP_PORT", "25"),
			User:     getEnv("SMTP_USER", ""),
			Pass:     getEnv("SMTP_PASS", ""),
			From:     getEnv("SMTP_FROM", ""),
			TLS:      getEnvBool("SMTP_TLS", false),
			StartTLS: getEnvBool("SMTP_STARTTLS", false),
		},

		MirrorEnabled:  getEnvBool("MIRROR_ENABLED", false),
		MirrorHost:     getEnv("MIRROR_HOST", "localhost"),
		MirrorPort:     getEnv("MIRROR_PORT", "9000"),
		MirrorUsername: getEnv("MIRROR_USERNAME", "minioadmin"),
		MirrorPassword: getEnv("MIRROR_PASSWORD", "minioadmin"),
		MirrorBucket:   getEnv("MIRROR_BUCKET", "sharedrop"),
		MirrorUseSSL:   getEnvBool("MIRROR_USE_SSL", false),

		SweepLockTTL: getEnvDuration("SWEEP_LOCK_TTL", 30*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}
}

// DSN builds the MySQL connection string for the given database name.
func (c *Config) DSN(dbName string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, dbName)
}

// RedisAddr returns the redis host:port pair.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

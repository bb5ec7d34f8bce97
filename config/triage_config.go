package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"complaint_triage/core/domain"
)

// generateWorkerID creates a unique worker ID using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseURL string
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	// Kafka
	KafkaBrokers []string
	KafkaTopic   string

	// JWT
	JWTSecret string

	// OpenAI
	OpenAIAPIKey   string
	LLMBaseURL     string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeout     time.Duration

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Notification
	NotifyTimeout   time.Duration
	SlackWebhookURL string
	Teams           domain.TeamDirectory

	// Intake worker
	IntakeEnabled      bool
	WorkerID           string
	IntakeMaxPerCycle  int
	IntakeWorkers      int
	IntakeBlock        time.Duration
	IntakeMaxRetries   int
	IntakePendingIdle  time.Duration
	IntakeStreamMaxLen int64

	// Cache & limits
	AnalyticsCacheTTL time.Duration
	IntakeRateLimit   int
	AuditRetention    time.Duration
	SnowflakeNode     int64
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "complaint_triage"),
		RedisURL:    getEnv("REDIS_URL", ""),

		// Kafka
		KafkaBrokers: getEnvSlice("KAFKA_BROKERS", nil),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "complaint-triage-events"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),

		// OpenAI
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMBaseURL:     getEnv("LLM_BASE_URL", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 1000),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.1),
		LLMTimeout:     getEnvDuration("LLM_TIMEOUT_SEC", 30*time.Second),

		// SMTP
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Customer Support"),

		// Notification
		NotifyTimeout:   getEnvDuration("NOTIFY_TIMEOUT_SEC", 10*time.Second),
		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
		Teams:           teamDirectoryFromEnv(),

		// Intake worker
		IntakeEnabled:      getEnvBool("INTAKE_ENABLED", true),
		WorkerID:           getEnv("WORKER_ID", generateWorkerID()),
		IntakeMaxPerCycle:  getEnvInt("INTAKE_MAX_PER_CYCLE", 50),
		IntakeWorkers:      getEnvInt("INTAKE_WORKERS", 5),
		IntakeBlock:        time.Duration(getEnvInt("INTAKE_BLOCK_MS", 5000)) * time.Millisecond,
		IntakeMaxRetries:   getEnvInt("INTAKE_MAX_RETRIES", 3),
		IntakePendingIdle:  getEnvDuration("INTAKE_PENDING_IDLE_SEC", 2*time.Minute),
		IntakeStreamMaxLen: int64(getEnvInt("INTAKE_STREAM_MAX_LEN", 100000)),

		// Cache & limits
		AnalyticsCacheTTL: getEnvDuration("ANALYTICS_CACHE_TTL_SEC", 60*time.Second),
		IntakeRateLimit:   getEnvInt("INTAKE_RATE_LIMIT_PER_MIN", 60),
		AuditRetention:    time.Duration(getEnvInt("AUDIT_RETENTION_DAYS", 90)) * 24 * time.Hour,
		SnowflakeNode:     int64(getEnvInt("SNOWFLAKE_NODE", 1)),
	}

	if path := getEnv("TEAM_DIRECTORY_FILE", ""); path != "" {
		dir, err := LoadTeamDirectory(path, cfg.Teams)
		if err != nil {
			return nil, err
		}
		cfg.Teams = dir
	}

	return cfg, nil
}

// Validate checks the settings a process mode cannot run without.
func (c *Config) Validate(needsQueue bool) error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if needsQueue && c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required for the intake worker"))
	}
	if c.IsProduction() && c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}
	if c.IntakeMaxPerCycle <= 0 {
		errs = append(errs, errors.New("INTAKE_MAX_PER_CYCLE must be positive"))
	}
	return errors.Join(errs...)
}

// =============================================================================
// Team Directory
// =============================================================================

func teamDirectoryFromEnv() domain.TeamDirectory {
	def := domain.DefaultTeamDirectory()
	envKeys := map[domain.Team]string{
		domain.TeamBilling:        "BILLING_TEAM_EMAIL",
		domain.TeamTechnical:      "TECH_TEAM_EMAIL",
		domain.TeamRefunds:        "REFUNDS_TEAM_EMAIL",
		domain.TeamDelivery:       "DELIVERY_TEAM_EMAIL",
		domain.TeamAccount:        "ACCOUNTS_TEAM_EMAIL",
		domain.TeamGeneralSupport: "SUPPORT_TEAM_EMAIL",
	}

	dir := domain.TeamDirectory{
		Teams:   make(map[domain.Team]string, len(envKeys)),
		Manager: getEnv("MANAGER_EMAIL", def.Manager),
	}
	for team, key := range envKeys {
		dir.Teams[team] = getEnv(key, def.Teams[team])
	}
	return dir
}

// LoadTeamDirectory overlays the YAML file at path on base. Entries the
// file leaves out keep their base value; unknown team names are rejected.
func LoadTeamDirectory(path string, base domain.TeamDirectory) (domain.TeamDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read team directory: %w", err)
	}

	var file domain.TeamDirectory
	if err := yaml.Unmarshal(data, &file); err != nil {
		return base, fmt.Errorf("parse team directory %s: %w", path, err)
	}

	out := domain.TeamDirectory{
		Teams:   make(map[domain.Team]string, len(base.Teams)),
		Manager: base.Manager,
	}
	for team, email := range base.Teams {
		out.Teams[team] = email
	}
	for team, email := range file.Teams {
		if !team.Valid() {
			return base, fmt.Errorf("team directory %s: unknown team %q", path, team)
		}
		if email = strings.TrimSpace(email); email != "" {
			out.Teams[team] = email
		}
	}
	if m := strings.TrimSpace(file.Manager); m != "" {
		out.Manager = m
	}
	return out, nil
}

// =============================================================================
// Env helpers
// =============================================================================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration reads a whole number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

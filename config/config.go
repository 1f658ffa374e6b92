package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"notion-lite/workspace/models"
)

const defaultWorkflowPages = "now=now,next=next,waiting=waiting,someday=someday,done=done"

type Config struct {
	AppEnv         string
	AppPort        string
	AllowedOrigins string

	DBDriver       string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBMaxIdleConns int
	DBMaxOpenConns int
	SQLitePath     string

	NatsURL string

	EventPollInterval   time.Duration
	OperationCooldown   time.Duration
	StatusCooldown      time.Duration
	StatusDebounce      time.Duration
	StatusSweepSchedule string
	WorkflowPages       models.WorkflowPages
	InboxPageID         string
	CaptureURL          string
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("%s not set, defaulting to %s", key, defaultValue)
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Invalid integer value for %s, defaulting to %d", key, defaultValue)
	}
	return defaultValue
}

func getEnvAsMillis(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultValue)) * time.Millisecond
}

func getWorkflowPages(key string) models.WorkflowPages {
	raw := getEnv(key, defaultWorkflowPages)
	pages, err := models.ParseWorkflowPages(raw)
	if err != nil {
		log.Printf("Invalid value for %s (%v), defaulting to %s", key, err, defaultWorkflowPages)
		pages, _ = models.ParseWorkflowPages(defaultWorkflowPages)
	}
	return pages
}

func Load() Config {
	log.Println("Loading configuration...")

	return Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		AppPort:             getEnv("APP_PORT", "8080"),
		AllowedOrigins:      getEnv("ALLOWED_ORIGINS", "*"),
		DBDriver:            getEnv("DB_DRIVER", "sqlite"),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnv("DB_PORT", "5432"),
		DBUser:              getEnv("DB_USER", "workspace"),
		DBPassword:          getEnv("DB_PASSWORD", "workspace"),
		DBName:              getEnv("DB_NAME", "workspace"),
		DBMaxIdleConns:      getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns:      getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
		SQLitePath:          getEnv("SQLITE_PATH", "workspace.db"),
		NatsURL:             getEnv("NATS_URL", "nats://localhost:4222"),
		EventPollInterval:   getEnvAsMillis("EVENT_POLL_INTERVAL_MS", 250),
		OperationCooldown:   getEnvAsMillis("OPERATION_COOLDOWN_MS", 100),
		StatusCooldown:      getEnvAsMillis("STATUS_COOLDOWN_MS", 3000),
		StatusDebounce:      getEnvAsMillis("STATUS_DEBOUNCE_MS", 500),
		StatusSweepSchedule: getEnv("STATUS_SWEEP_SCHEDULE", "@every 30s"),
		WorkflowPages:       getWorkflowPages("WORKFLOW_PAGES"),
		InboxPageID:         getEnv("INBOX_PAGE_ID", "inbox"),
		CaptureURL:          getEnv("CAPTURE_URL", "http://localhost:8080"),
	}
}

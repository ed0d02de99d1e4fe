package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	strutil "eventreg/pkg/platform/strings"
)

// Config is the full runtime configuration of the registration server.
type Config struct {
	Server    Server
	Redis     RedisConfig
	Postgres  PostgresConfig
	Kafka     KafkaConfig
	Audit     AuditConfig
	Directory DirectoryConfig
	Workflow  WorkflowConfig
	Event     Event
	Session   SessionConfig
	RateLimit RateLimitConfig
	LogLevel  string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// RedisConfig configures the form session store. An empty URL keeps sessions
// in memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures direct access to the student records table. When
// DSN is empty the REST record store (or the seeded directory) is used.
type PostgresConfig struct {
	DSN      string
	MaxConns int32
}

// KafkaConfig configures the audit stream. No brokers keeps audit in memory.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// AuditConfig selects where audit events go: "memory", "kafka" or
// "postgres".
type AuditConfig struct {
	Backend    string
	BufferSize int
	// MemoryCapacity bounds the memory backend; older events are dropped.
	MemoryCapacity int
}

// DirectoryConfig points at the remote student record store.
type DirectoryConfig struct {
	URL     string
	APIKey  string
	Table   string
	Timeout time.Duration
}

// WorkflowConfig points at the webhook that registers the purchase and
// returns the payment link.
type WorkflowConfig struct {
	URL     string
	Timeout time.Duration
}

// SessionConfig bounds the lifetime of a form session.
type SessionConfig struct {
	TTL time.Duration
}

// RateLimitConfig bounds requests per client IP for each endpoint class.
type RateLimitConfig struct {
	Disabled        bool
	Window          time.Duration
	OpenPerWindow   int
	EditPerWindow   int
	SubmitPerWindow int
	AllowlistIPs    []string
}

// Event holds the constants of the single event this server sells tickets
// for. Defaults can be overridden by the YAML file at EVENT_CONFIG_PATH.
type Event struct {
	Tag           string        `yaml:"tag"`
	Name          string        `yaml:"name"`
	Shift         string        `yaml:"shift"`
	Grades        []string      `yaml:"grades"`
	RedirectDelay time.Duration `yaml:"redirect_delay"`
}

// DefaultEvent is the event configured when no YAML file is given.
func DefaultEvent() Event {
	return Event{
		Tag:   "Amadeus-autonatalmatutino",
		Name:  "Auto de Natal - Matutino",
		Shift: "Manhã",
		Grades: []string{
			"Grupo IV", "Grupo V", "Maternal(3)", "Maternalzinho(2)",
			"1º Ano", "2º Ano", "3º Ano", "4º Ano", "5º Ano",
			"6º Ano", "7º Ano", "8º Ano", "9º Ano",
		},
		RedirectDelay: time.Second,
	}
}

// HasGrade reports whether grade is one of the configured grades.
func (e Event) HasGrade(grade string) bool {
	for _, g := range e.Grades {
		if g == grade {
			return true
		}
	}
	return false
}

// FromEnv builds the configuration from environment variables so main stays
// lean.
func FromEnv() (Config, error) {
	event := DefaultEvent()
	if path := os.Getenv("EVENT_CONFIG_PATH"); path != "" {
		loaded, err := LoadEvent(path, event)
		if err != nil {
			return Config{}, err
		}
		event = loaded
	}

	cfg := Config{
		Server: Server{
			Addr:            envOr("EVENTREG_ADDR", ":8080"),
			ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			DSN:      os.Getenv("DATABASE_URL"),
			MaxConns: int32(envInt("DATABASE_MAX_CONNS", 5)),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic: envOr("KAFKA_AUDIT_TOPIC", "eventreg.audit"),
		},
		Audit: AuditConfig{
			Backend:        envOr("AUDIT_BACKEND", "memory"),
			BufferSize:     envInt("AUDIT_BUFFER_SIZE", 256),
			MemoryCapacity: envInt("AUDIT_MEMORY_CAPACITY", 10000),
		},
		Directory: DirectoryConfig{
			URL:     os.Getenv("STUDENT_DIRECTORY_URL"),
			APIKey:  os.Getenv("STUDENT_DIRECTORY_KEY"),
			Table:   envOr("STUDENT_DIRECTORY_TABLE", "alunos"),
			Timeout: envDuration("STUDENT_DIRECTORY_TIMEOUT", 5*time.Second),
		},
		Workflow: WorkflowConfig{
			URL:     envOr("WORKFLOW_WEBHOOK_URL", "https://webhook.escolaamadeus.com/webhook/amadeuseventos"),
			Timeout: envDuration("WORKFLOW_TIMEOUT", 30*time.Second),
		},
		Event: event,
		Session: SessionConfig{
			TTL: envDuration("SESSION_TTL", 2*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Disabled:        os.Getenv("DISABLE_RATE_LIMITING") == "true",
			Window:          envDuration("RATE_LIMIT_WINDOW", time.Minute),
			OpenPerWindow:   envInt("RATE_LIMIT_OPEN", 20),
			EditPerWindow:   envInt("RATE_LIMIT_EDIT", 300),
			SubmitPerWindow: envInt("RATE_LIMIT_SUBMIT", 5),
			AllowlistIPs:    splitList(os.Getenv("RATE_LIMIT_ALLOWLIST")),
		},
		LogLevel: envOr("LOG_LEVEL", "info"),
	}
	return cfg, nil
}

// LoadEvent reads an event YAML file over base. Fields missing from the file
// keep their base values.
func LoadEvent(path string, base Event) (Event, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Event{}, fmt.Errorf("read event config: %w", err)
	}
	return ParseEvent(raw, base)
}

// ParseEvent decodes event YAML over base and normalizes the grade list.
func ParseEvent(raw []byte, base Event) (Event, error) {
	event := base
	if err := yaml.Unmarshal(raw, &event); err != nil {
		return Event{}, fmt.Errorf("parse event config: %w", err)
	}
	event.Tag = strings.TrimSpace(event.Tag)
	event.Shift = strings.TrimSpace(event.Shift)
	event.Grades = strutil.DedupeAndTrim(event.Grades)
	if event.Tag == "" {
		return Event{}, fmt.Errorf("event tag is required")
	}
	if event.Shift == "" {
		return Event{}, fmt.Errorf("event shift is required")
	}
	if event.RedirectDelay < 0 {
		return Event{}, fmt.Errorf("redirect delay must not be negative")
	}
	return event, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	return strutil.DedupeAndTrim(strings.Split(v, ","))
}

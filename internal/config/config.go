package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"secevents/internal/domain"
)

type Config struct {
	Profile    string           `yaml:"profile"`
	API        APIConfig        `yaml:"api"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Sink       SinkConfig       `yaml:"sink"`
	Sync       SyncConfig       `yaml:"sync"`
	Ops        OpsConfig        `yaml:"ops"`
	Tracing    TracingConfig    `yaml:"tracing"`
	LogLevel   string           `yaml:"log_level"`
}

type APIConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Token    string        `yaml:"token"`
	PageSize int           `yaml:"page_size"`
	MaxPages int           `yaml:"max_pages"`
	Timeout  time.Duration `yaml:"timeout"`
	Retry    RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type CheckpointConfig struct {
	// URL selects the store: file://, sqlite://, postgres://, mem://.
	URL string `yaml:"url"`
}

type SinkConfig struct {
	DialTimeout time.Duration  `yaml:"dial_timeout"`
	RabbitMQ    RabbitMQConfig `yaml:"rabbitmq"`
	Kafka       KafkaConfig    `yaml:"kafka"`
	NATS        NATSConfig     `yaml:"nats"`
}

// The broker address of every network sink comes from the send-to
// argument; these settings only name where records go on that broker.
type RabbitMQConfig struct {
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

type KafkaConfig struct {
	Topic string `yaml:"topic"`
}

type NATSConfig struct {
	Subject string `yaml:"subject"`
}

type SyncConfig struct {
	Interval   time.Duration `yaml:"interval"`
	RunTimeout time.Duration `yaml:"run_timeout"`
}

type OpsConfig struct {
	// Addr for /health, /ready and /metrics in follow mode. Empty disables.
	Addr string `yaml:"addr"`
}

type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Load reads the YAML file at path after loading .env into the environment
// and expanding ${VAR} references. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("%w: parse config: %w", domain.ErrConfiguration, err)
		}
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Profile == "" {
		c.Profile = "default"
	}
	if c.API.PageSize == 0 {
		c.API.PageSize = 500
	}
	if c.API.MaxPages == 0 {
		c.API.MaxPages = 1000
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = 30 * time.Second
	}
	if c.API.Retry.MaxAttempts == 0 {
		c.API.Retry.MaxAttempts = 3
	}
	if c.API.Retry.InitialBackoff == 0 {
		c.API.Retry.InitialBackoff = 1 * time.Second
	}
	if c.API.Retry.MaxBackoff == 0 {
		c.API.Retry.MaxBackoff = 30 * time.Second
	}
	if c.Checkpoint.URL == "" {
		c.Checkpoint.URL = DefaultCheckpointURL(c.Profile)
	}
	if c.Sink.DialTimeout == 0 {
		c.Sink.DialTimeout = 10 * time.Second
	}
	if c.Sink.RabbitMQ.Exchange == "" {
		c.Sink.RabbitMQ.Exchange = "secevents"
	}
	if c.Sink.Kafka.Topic == "" {
		c.Sink.Kafka.Topic = "secevents"
	}
	if c.Sink.NATS.Subject == "" {
		c.Sink.NATS.Subject = "secevents"
	}
	if c.Sync.Interval == 0 {
		c.Sync.Interval = 5 * time.Minute
	}
	if c.Sync.RunTimeout == 0 {
		c.Sync.RunTimeout = 30 * time.Minute
	}
	if c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = 1
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// DefaultCheckpointURL keeps checkpoints of each profile in their own
// directory under the user's home.
func DefaultCheckpointURL(profile string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return "file://" + filepath.ToSlash(filepath.Join(home, ".secevents", "checkpoints", profile))
}

// Validate rejects malformed settings. Every returned error wraps
// domain.ErrConfiguration.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.API.BaseURL != "" && !govalidator.IsRequestURL(c.API.BaseURL) {
		add("api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if c.API.PageSize < 1 {
		add("api.page_size must be positive")
	}
	if c.API.MaxPages < 1 {
		add("api.max_pages must be positive")
	}
	if c.API.Retry.MaxAttempts < 1 {
		add("api.retry.max_attempts must be positive")
	}
	if c.API.Retry.InitialBackoff > c.API.Retry.MaxBackoff {
		add("api.retry.initial_backoff exceeds max_backoff")
	}
	if !strings.Contains(c.Checkpoint.URL, "://") {
		add("checkpoint.url %q has no scheme", c.Checkpoint.URL)
	}
	if !govalidator.IsIn(strings.ToLower(c.LogLevel), "debug", "info", "warn", "error") {
		add("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	if !govalidator.Matches(c.Sink.Kafka.Topic, `^[a-zA-Z0-9._-]{1,249}$`) {
		add("sink.kafka.topic %q is not a valid topic name", c.Sink.Kafka.Topic)
	}
	if strings.ContainsAny(c.Sink.NATS.Subject, " \t*>") {
		add("sink.nats.subject %q must be a literal subject", c.Sink.NATS.Subject)
	}
	if c.Ops.Addr != "" {
		if _, port, err := net.SplitHostPort(c.Ops.Addr); err != nil || !govalidator.IsPort(port) {
			add("ops.addr %q is not [host]:port", c.Ops.Addr)
		}
	}
	if !govalidator.InRangeFloat64(c.Tracing.SampleRatio, 0, 1) {
		add("tracing.sample_ratio must be within [0, 1]")
	}
	if c.Sync.Interval <= 0 {
		add("sync.interval must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

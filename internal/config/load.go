package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/visiblee-backend/internal/platform/envutil"
)

const (
	QueueBackendAsynq    = "asynq"
	QueueBackendTemporal = "temporal"
)

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	s := strings.TrimSpace(node.Value)
	if s == "" || s == "null" || s == "~" {
		d.Duration = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		d.Duration = time.Duration(n) * time.Second
		return nil
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration must look like \"30s\" or be an integer number of seconds: %w", err)
	}
	d.Duration = dd
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:         "development",
			ServiceName: "visiblee-backend",
			Version:     "dev",
			LogMode:     "development",
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: Duration{15 * time.Second},
			CORSOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		},
		Postgres: PostgresConfig{
			Host:         "localhost",
			Port:         5432,
			User:         "postgres",
			Name:         "visiblee",
			SSLMode:      "disable",
			MaxOpenConns: 20,
			MaxIdleConns: 5,
			SlowQuery:    Duration{time.Second},
		},
		Redis: RedisConfig{
			Addr:          "localhost:6379",
			EventsChannel: "visiblee:jobs",
		},
		Engine: EngineConfig{
			BaseURL:       "http://localhost:8000",
			Timeout:       Duration{60 * time.Second},
			QueryTimeout:  Duration{10 * time.Second},
			CrawlTimeout:  Duration{5 * time.Minute},
			StreamTimeout: Duration{10 * time.Minute},
			MaxRetries:    2,
		},
		Queue: QueueConfig{
			Backend:          QueueBackendAsynq,
			Concurrency:      4,
			MaxRetry:         3,
			AnalysisTimeout:  Duration{30 * time.Minute},
			DiscoveryTimeout: Duration{15 * time.Minute},
		},
		Jobs: JobsConfig{
			StaleAfter:       Duration{30 * time.Minute},
			OrphanAfter:      Duration{10 * time.Minute},
			PendingMaxAge:    Duration{2 * time.Hour},
			SweepInterval:    Duration{time.Minute},
			StageConcurrency: 4,
			HeartbeatEvery:   Duration{30 * time.Second},
		},
		Neo4j: Neo4jConfig{
			User:        "neo4j",
			Timeout:     Duration{10 * time.Second},
			MaxPoolSize: 50,
		},
		Temporal: TemporalConfig{
			Address:         "localhost:7233",
			Namespace:       "default",
			TaskQueuePrefix: "visiblee",
			DialMaxWait:     Duration{time.Minute},
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Otel: OtelConfig{
			SampleRatio: 0.1,
		},
	}
}

// Load builds the config from defaults, an optional YAML file, then environment
// overrides, and validates the result.
func Load() (*Config, error) {
	cfg := defaultConfig()

	cfgPath := strings.TrimSpace(os.Getenv("VISIBLEE_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "config.yaml")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}
	if cfgPath != "" {
		b, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.App.Env = envutil.String("APP_ENV", cfg.App.Env)
	cfg.App.Version = envutil.String("APP_VERSION", cfg.App.Version)
	cfg.App.LogMode = envutil.String("LOG_MODE", cfg.App.LogMode)
	cfg.App.LogLevel = envutil.String("LOG_LEVEL", cfg.App.LogLevel)

	cfg.HTTP.Addr = envutil.String("HTTP_ADDR", cfg.HTTP.Addr)
	if v := envutil.String("CORS_ORIGINS", ""); v != "" {
		cfg.HTTP.CORSOrigins = splitList(v)
	}

	cfg.Postgres.DSN = envutil.String("POSTGRES_DSN", cfg.Postgres.DSN)
	cfg.Postgres.Host = envutil.String("POSTGRES_HOST", cfg.Postgres.Host)
	cfg.Postgres.Port = envutil.Int("POSTGRES_PORT", cfg.Postgres.Port)
	cfg.Postgres.User = envutil.String("POSTGRES_USER", cfg.Postgres.User)
	cfg.Postgres.Password = envutil.String("POSTGRES_PASSWORD", cfg.Postgres.Password)
	cfg.Postgres.Name = envutil.String("POSTGRES_NAME", cfg.Postgres.Name)
	cfg.Postgres.SSLMode = envutil.String("POSTGRES_SSLMODE", cfg.Postgres.SSLMode)

	cfg.Redis.URL = envutil.String("REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.EventsChannel = envutil.String("REDIS_EVENTS_CHANNEL", cfg.Redis.EventsChannel)

	cfg.Engine.BaseURL = envutil.String("ENGINE_URL", cfg.Engine.BaseURL)
	cfg.Engine.APIKey = envutil.String("ENGINE_API_KEY", cfg.Engine.APIKey)
	cfg.Engine.Timeout.Duration = envutil.Seconds("ENGINE_TIMEOUT_SECONDS", cfg.Engine.Timeout.Duration)
	cfg.Engine.QueryTimeout.Duration = envutil.Seconds("ENGINE_QUERY_TIMEOUT_SECONDS", cfg.Engine.QueryTimeout.Duration)
	cfg.Engine.CrawlTimeout.Duration = envutil.Seconds("ENGINE_CRAWL_TIMEOUT_SECONDS", cfg.Engine.CrawlTimeout.Duration)
	cfg.Engine.MaxRetries = envutil.Int("ENGINE_MAX_RETRIES", cfg.Engine.MaxRetries)

	cfg.Queue.Backend = strings.ToLower(envutil.String("QUEUE_BACKEND", cfg.Queue.Backend))
	cfg.Queue.Concurrency = envutil.Int("WORKER_CONCURRENCY", cfg.Queue.Concurrency)

	cfg.Jobs.StaleAfter.Duration = envutil.Minutes("JOB_STALE_AFTER_MINUTES", cfg.Jobs.StaleAfter.Duration)
	cfg.Jobs.OrphanAfter.Duration = envutil.Minutes("JOB_ORPHAN_AFTER_MINUTES", cfg.Jobs.OrphanAfter.Duration)
	cfg.Jobs.PendingMaxAge.Duration = envutil.Minutes("JOB_PENDING_MAX_AGE_MINUTES", cfg.Jobs.PendingMaxAge.Duration)
	cfg.Jobs.SweepInterval.Duration = envutil.Seconds("JOB_SWEEP_INTERVAL_SECONDS", cfg.Jobs.SweepInterval.Duration)
	cfg.Jobs.StageConcurrency = envutil.Int("JOB_STAGE_CONCURRENCY", cfg.Jobs.StageConcurrency)

	cfg.Auth.JWTSecret = envutil.String("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.Issuer = envutil.String("JWT_ISSUER", cfg.Auth.Issuer)

	cfg.Neo4j.URI = envutil.String("NEO4J_URI", cfg.Neo4j.URI)
	cfg.Neo4j.User = envutil.String("NEO4J_USER", cfg.Neo4j.User)
	cfg.Neo4j.Password = envutil.String("NEO4J_PASSWORD", cfg.Neo4j.Password)
	cfg.Neo4j.Database = envutil.String("NEO4J_DATABASE", cfg.Neo4j.Database)
	cfg.Neo4j.Timeout.Duration = envutil.Seconds("NEO4J_TIMEOUT_SECONDS", cfg.Neo4j.Timeout.Duration)
	cfg.Neo4j.MaxPoolSize = envutil.Int("NEO4J_MAX_POOL_SIZE", cfg.Neo4j.MaxPoolSize)

	cfg.Temporal.Address = envutil.String("TEMPORAL_ADDRESS", cfg.Temporal.Address)
	cfg.Temporal.Namespace = envutil.String("TEMPORAL_NAMESPACE", cfg.Temporal.Namespace)
	cfg.Temporal.TaskQueuePrefix = envutil.String("TEMPORAL_TASK_QUEUE_PREFIX", cfg.Temporal.TaskQueuePrefix)
	cfg.Temporal.AutoRegisterNamespace = envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", cfg.Temporal.AutoRegisterNamespace)
	cfg.Temporal.DialMaxWait.Duration = envutil.Seconds("TEMPORAL_DIAL_MAX_WAIT_SECONDS", cfg.Temporal.DialMaxWait.Duration)
	cfg.Temporal.ClientCertPath = envutil.String("TEMPORAL_CLIENT_CERT_PATH", cfg.Temporal.ClientCertPath)
	cfg.Temporal.ClientKeyPath = envutil.String("TEMPORAL_CLIENT_KEY_PATH", cfg.Temporal.ClientKeyPath)
	cfg.Temporal.ClientCAPath = envutil.String("TEMPORAL_CLIENT_CA_PATH", cfg.Temporal.ClientCAPath)

	cfg.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Addr = envutil.String("METRICS_ADDR", cfg.Metrics.Addr)

	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint)
	cfg.Otel.Headers = envutil.String("OTEL_EXPORTER_OTLP_HEADERS", cfg.Otel.Headers)
	cfg.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure)
	cfg.Otel.SampleRatio = envutil.Float("OTEL_SAMPLER_RATIO", cfg.Otel.SampleRatio)
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	c.Engine.BaseURL = strings.TrimRight(strings.TrimSpace(c.Engine.BaseURL), "/")
	if c.Engine.BaseURL == "" {
		errs = append(errs, errors.New("engine.base_url is required"))
	}
	if c.Engine.MaxRetries < 0 {
		errs = append(errs, errors.New("engine.max_retries must be >= 0"))
	}
	switch c.Queue.Backend {
	case QueueBackendAsynq:
		if strings.TrimSpace(c.Redis.URL) == "" && strings.TrimSpace(c.Redis.Addr) == "" {
			errs = append(errs, errors.New("queue.backend asynq needs redis.url or redis.addr"))
		}
	case QueueBackendTemporal:
		if strings.TrimSpace(c.Temporal.Address) == "" {
			errs = append(errs, errors.New("queue.backend temporal needs temporal.address"))
		}
	default:
		errs = append(errs, fmt.Errorf("queue.backend must be %q or %q, got %q", QueueBackendAsynq, QueueBackendTemporal, c.Queue.Backend))
	}
	if c.Queue.Concurrency < 1 {
		c.Queue.Concurrency = 1
	}
	if c.Jobs.StageConcurrency < 1 {
		c.Jobs.StageConcurrency = 1
	}
	if c.Jobs.StaleAfter.Duration <= 0 {
		errs = append(errs, errors.New("jobs.stale_after must be positive"))
	}
	if c.Jobs.PendingMaxAge.Duration <= c.Jobs.OrphanAfter.Duration {
		errs = append(errs, errors.New("jobs.pending_max_age must exceed jobs.orphan_after"))
	}
	if c.Otel.SampleRatio < 0 {
		c.Otel.SampleRatio = 0
	}
	if c.Otel.SampleRatio > 1 {
		c.Otel.SampleRatio = 1
	}
	if c.Jobs.SweepInterval.Duration <= 0 {
		c.Jobs.SweepInterval.Duration = time.Minute
	}
	return errors.Join(errs...)
}

// PostgresDSN returns the explicit DSN or one assembled from the discrete fields.
func (c *Config) PostgresDSN() string {
	if dsn := strings.TrimSpace(c.Postgres.DSN); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Postgres.Host, c.Postgres.Port, c.Postgres.User, c.Postgres.Password, c.Postgres.Name, c.Postgres.SSLMode)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

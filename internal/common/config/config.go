// internal/common/config/config.go
package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	App     AppConfig         `mapstructure:"app"`
	Server  ServerConfig      `mapstructure:"server"`
	Render  RetryClientConfig `mapstructure:"render"`
	Upload  RetryClientConfig `mapstructure:"upload"`
	Storage StorageConfig     `mapstructure:"storage"`
	Logging LoggingConfig     `mapstructure:"logging"`
	Metrics MetricsConfig     `mapstructure:"metrics"`
	Tracing TracingConfig     `mapstructure:"tracing"`
	Camunda CamundaConfig     `mapstructure:"camunda"`
	Cache   CacheConfig       `mapstructure:"cache"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	RequestTimeout  int `mapstructure:"request_timeout"`  // milliseconds, whole generation; 0 derives it from the retry budgets
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // milliseconds
	MaxUploadSizeMB int `mapstructure:"max_upload_size_mb"`
}

// RetryClientConfig configures one of the outbound retrying clients.
type RetryClientConfig struct {
	URL         string `mapstructure:"url"`
	Timeout     int    `mapstructure:"timeout"` // milliseconds, per attempt
	MaxAttempts int    `mapstructure:"max_attempts"`
	Backoff     []int  `mapstructure:"backoff"` // milliseconds
}

// BackoffSchedule returns the configured delays as durations.
func (r RetryClientConfig) BackoffSchedule() []time.Duration {
	out := make([]time.Duration, 0, len(r.Backoff))
	for _, ms := range r.Backoff {
		out = append(out, GetDuration(ms))
	}
	return out
}

// WorstCase is the longest the client can spend on one call when every
// attempt runs into its timeout.
func (r RetryClientConfig) WorstCase() time.Duration {
	total := time.Duration(r.MaxAttempts) * GetDuration(r.Timeout)
	for n := 1; n < r.MaxAttempts && len(r.Backoff) > 0; n++ {
		idx := n - 1
		if idx >= len(r.Backoff) {
			idx = len(r.Backoff) - 1
		}
		total += GetDuration(r.Backoff[idx])
	}
	return total
}

// GenerationBudget is the worst case of an upload followed by a render, plus
// slack for validation and mapping.
func (c *Config) GenerationBudget() time.Duration {
	return c.Upload.WorstCase() + c.Render.WorstCase() + generationSlack
}

const generationSlack = 15 * time.Second

// StorageConfig describes where the render service writes images and how
// they are exposed publicly.
type StorageConfig struct {
	Domain     string `mapstructure:"domain"`
	OutputDir  string `mapstructure:"output_dir"`
	PublicPath string `mapstructure:"public_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// TracingConfig enables span export. Spans are still created when disabled,
// they are just dropped.
type TracingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds; 0 means request timeout + 1m
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type CacheConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the optional upload cache. An empty Address
// disables it.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTL      int    `mapstructure:"ttl"` // seconds
}

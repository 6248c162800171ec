// internal/common/config/loader.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultRenderURL  = "https://stageapi.pixelbreeze.xyz/generate"
	DefaultUploadURL  = "https://stageadmin.pixelbreeze.xyz/upload-file"
	DefaultDomain     = "https://stageadmin.pixelbreeze.xyz"
	DefaultOutputDir  = "/var/www/html/stageadmin/storage/app/public/uploads"
	DefaultPublicPath = "/storage/uploads"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on
// top, then applies environment variables.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finalize(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finalize(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	registerDefaults(v)
	return v
}

func finalize(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// registerDefaults makes every key known to viper so AutomaticEnv can bind
// it (RENDER_URL, SERVER_PORT, CACHE_REDIS_ADDRESS, ...).
func registerDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "template-service")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.environment", "development")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 0)
	v.SetDefault("server.shutdown_timeout", 15000)
	v.SetDefault("server.max_upload_size_mb", 20)

	v.SetDefault("render.url", DefaultRenderURL)
	v.SetDefault("render.timeout", 60000)
	v.SetDefault("render.max_attempts", 3)
	v.SetDefault("render.backoff", []int{2000, 4000, 6000})

	v.SetDefault("upload.url", DefaultUploadURL)
	v.SetDefault("upload.timeout", 30000)
	v.SetDefault("upload.max_attempts", 3)
	v.SetDefault("upload.backoff", []int{1000, 2000, 3000})

	v.SetDefault("storage.domain", DefaultDomain)
	v.SetDefault("storage.output_dir", DefaultOutputDir)
	v.SetDefault("storage.public_path", DefaultPublicPath)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "http://localhost:14268/api/traces")

	v.SetDefault("camunda.enabled", false)
	v.SetDefault("camunda.broker_address", "")
	v.SetDefault("camunda.max_jobs_active", 5)
	v.SetDefault("camunda.timeout", 0)
	v.SetDefault("camunda.request_timeout", 30000)

	v.SetDefault("cache.redis.address", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.ttl", 600)
}

// loadEnvFile loads the first .env found walking from the working directory
// towards the project root. Missing files are fine.
func loadEnvFile() string {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// applyDefaults repairs values that unmarshalled to something unusable.
func applyDefaults(cfg *Config) {
	if cfg.Render.MaxAttempts <= 0 {
		cfg.Render.MaxAttempts = 3
	}
	if len(cfg.Render.Backoff) == 0 {
		cfg.Render.Backoff = []int{2000, 4000, 6000}
	}
	if cfg.Render.Timeout <= 0 {
		cfg.Render.Timeout = 60000
	}

	if cfg.Upload.MaxAttempts <= 0 {
		cfg.Upload.MaxAttempts = 3
	}
	if len(cfg.Upload.Backoff) == 0 {
		cfg.Upload.Backoff = []int{1000, 2000, 3000}
	}
	if cfg.Upload.Timeout <= 0 {
		cfg.Upload.Timeout = 30000
	}

	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = int(cfg.GenerationBudget().Milliseconds())
	}
	if cfg.Camunda.Timeout <= 0 {
		cfg.Camunda.Timeout = cfg.Server.RequestTimeout + 60000
	}

	if cfg.Storage.PublicPath == "" {
		cfg.Storage.PublicPath = DefaultPublicPath
	}
	cfg.Storage.Domain = strings.TrimRight(cfg.Storage.Domain, "/")
	cfg.Storage.OutputDir = strings.TrimRight(cfg.Storage.OutputDir, "/")

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 5
	}
	if cfg.Cache.Redis.TTL <= 0 {
		cfg.Cache.Redis.TTL = 600
	}
}

// applyEnvOverrides honours the endpoint variables the deployment scripts
// have always exported, on top of whatever the yaml says.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("NEXT_PYTHON_API_URL"); val != "" {
		cfg.Render.URL = val
	}
	if val := os.Getenv("PHP_UPLOAD_URL"); val != "" {
		cfg.Upload.URL = val
	}
	if val := os.Getenv("STORAGE_DOMAIN"); val != "" {
		cfg.Storage.Domain = strings.TrimRight(val, "/")
	}
	if val := os.Getenv("REDIS_ADDRESS"); val != "" && cfg.Cache.Redis.Address == "" {
		cfg.Cache.Redis.Address = val
	}
	if val := os.Getenv("JAEGER_ENDPOINT"); val != "" {
		cfg.Tracing.JaegerEndpoint = val
	}
	if val := os.Getenv("ZEEBE_ADDRESS"); val != "" && cfg.Camunda.BrokerAddress == "" {
		cfg.Camunda.BrokerAddress = val
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	for name, raw := range map[string]string{
		"render.url":     cfg.Render.URL,
		"upload.url":     cfg.Upload.URL,
		"storage.domain": cfg.Storage.Domain,
	} {
		if raw == "" {
			return fmt.Errorf("%s is required", name)
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}

	if cfg.Storage.OutputDir == "" {
		return fmt.Errorf("storage.output_dir is required")
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}
	if cfg.Tracing.Enabled && cfg.Tracing.JaegerEndpoint == "" {
		return fmt.Errorf("tracing.jaeger_endpoint is required when tracing.enabled is true")
	}
	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda.enabled is true")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

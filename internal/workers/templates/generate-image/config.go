package generateimage

import (
	"fmt"
	"strings"
	"time"

	"template-service/internal/common/config"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	JobTimeout    time.Duration `mapstructure:"job_timeout"`

	// RequestTimeout bounds one whole generation, retries included.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	RenderURL     string `mapstructure:"render_url"`
	UploadURL     string `mapstructure:"upload_url"`
	StorageDomain string `mapstructure:"storage_domain"`
	OutputDir     string `mapstructure:"output_dir"`
	PublicPath    string `mapstructure:"public_path"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:        false,
		MaxJobsActive:  5,
		JobTimeout:     6 * time.Minute,
		RequestTimeout: 5 * time.Minute,
		RenderURL:      config.DefaultRenderURL,
		UploadURL:      config.DefaultUploadURL,
		StorageDomain:  config.DefaultDomain,
		OutputDir:      config.DefaultOutputDir,
		PublicPath:     config.DefaultPublicPath,
	}
}

// ConfigFromAppConfig derives the pipeline settings from the loaded
// application configuration.
func ConfigFromAppConfig(appConfig *config.Config) *Config {
	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}

	cfg.Enabled = appConfig.Camunda.Enabled
	if appConfig.Camunda.MaxJobsActive > 0 {
		cfg.MaxJobsActive = appConfig.Camunda.MaxJobsActive
	}
	if appConfig.Camunda.Timeout > 0 {
		cfg.JobTimeout = config.GetDuration(appConfig.Camunda.Timeout)
	}
	if appConfig.Server.RequestTimeout > 0 {
		cfg.RequestTimeout = config.GetDuration(appConfig.Server.RequestTimeout)
	}

	cfg.RenderURL = appConfig.Render.URL
	cfg.UploadURL = appConfig.Upload.URL
	cfg.StorageDomain = appConfig.Storage.Domain
	cfg.OutputDir = appConfig.Storage.OutputDir
	if appConfig.Storage.PublicPath != "" {
		cfg.PublicPath = appConfig.Storage.PublicPath
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.RenderURL == "" {
		return fmt.Errorf("render_url is required")
	}
	if c.UploadURL == "" {
		return fmt.Errorf("upload_url is required")
	}
	if c.StorageDomain == "" {
		return fmt.Errorf("storage_domain is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	return nil
}

// OutputPath is where the render service must write filename.
func (c *Config) OutputPath(filename string) string {
	return strings.TrimRight(c.OutputDir, "/") + "/" + filename
}

// PublicURL is the URL under which filename is served.
func (c *Config) PublicURL(filename string) string {
	return strings.TrimRight(c.StorageDomain, "/") + "/" + strings.Trim(c.PublicPath, "/") + "/" + filename
}

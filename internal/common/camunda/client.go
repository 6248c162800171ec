// internal/common/camunda/client.go
package camunda

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client wraps the Zeebe gRPC client used by the generation worker.
type Client struct {
	client zbc.Client
	config *ClientConfig
	retry  *RetryConfig
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	// ConnectionTimeout bounds the topology request at startup and in health checks.
	ConnectionTimeout time.Duration
	// RequestTimeout bounds each attempt of a job command (complete, fail).
	RequestTimeout time.Duration
	RetryConfig    *RetryConfig
}

// RetryConfig controls how job commands are retried on transient broker errors.
type RetryConfig struct {
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

func (rc *RetryConfig) delay(attempt int) time.Duration {
	d := rc.BaseDelay * time.Duration(1<<attempt)
	if d > rc.MaxDelay {
		return rc.MaxDelay
	}
	return d
}

// NewClientWithConfig creates a client and checks the broker topology once so
// that a wrong gateway address fails at startup.
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	if config.ConnectionTimeout <= 0 {
		config.ConnectionTimeout = 10 * time.Second
	}

	retry := *DefaultRetryConfig
	if config.RetryConfig != nil {
		retry = *config.RetryConfig
	}
	if retry.AttemptTimeout == 0 {
		retry.AttemptTimeout = config.RequestTimeout
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	c := &Client{client: zeebeClient, config: config, retry: &retry}
	if err := c.HealthCheck(context.Background()); err != nil {
		_ = zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}
	return c, nil
}

// GetClient returns the raw Zeebe client for job polling and deployments.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) RetryConfig() *RetryConfig {
	return c.retry
}

// HealthCheck asks the gateway for the cluster topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe topology request failed: %w", err)
	}
	return nil
}

// ExecuteWithRetry runs a broker command with exponential backoff. Each
// attempt gets its own deadline when rc.AttemptTimeout is set. Only
// transient errors are retried.
func ExecuteWithRetry(ctx context.Context, rc *RetryConfig, operationName string, commandFunc func(context.Context) error) error {
	if rc == nil {
		rc = DefaultRetryConfig
	}

	var lastErr error
	for attempt := 0; attempt <= rc.MaxRetries; attempt++ {
		lastErr = runAttempt(ctx, rc.AttemptTimeout, commandFunc)
		if lastErr == nil {
			return nil
		}
		if !isRetryableZeebeError(lastErr) || attempt == rc.MaxRetries {
			break
		}

		select {
		case <-time.After(rc.delay(attempt)):
		case <-ctx.Done():
			return fmt.Errorf("%s cancelled after %d attempts: %w", operationName, attempt+1, ctx.Err())
		}
	}

	return fmt.Errorf("zeebe operation %s failed: %w", operationName, lastErr)
}

func runAttempt(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

var retryablePhrases = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"deadline exceeded",
	"unavailable",
	"broken pipe",
	"resource_exhausted",
}

// isRetryableZeebeError prefers the gRPC status code and falls back to the
// message for errors that lost it while being wrapped.
func isRetryableZeebeError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return true
		default:
			return false
		}
	}

	msg := strings.ToLower(err.Error())
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

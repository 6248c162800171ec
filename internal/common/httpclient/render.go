package httpclient

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "template-service/internal/common/errors"
	"template-service/internal/common/logger"
)

// RenderResult is the decoded success body of the render service.
type RenderResult struct {
	StatusCode int
	Body       map[string]interface{}
}

// RenderClient posts render requests to the image rendering service.
type RenderClient struct {
	base
}

func NewRenderClient(policy RetryPolicy, log logger.Logger, opts ...Option) *RenderClient {
	return &RenderClient{base: newBase("render", policy, log, opts...)}
}

// RenderWithRetry sends payload as multipart form fields. Retry state is
// independent of any upload that preceded it.
func (c *RenderClient) RenderWithRetry(ctx context.Context, apiURL string, payload map[string]string) (*RenderResult, error) {
	return withRetry(ctx, &c.base, func(ctx context.Context, attempt int) (*RenderResult, error) {
		c.logger.Debug("sending render request", map[string]interface{}{
			"attempt":      attempt,
			"templateType": payload["template_type"],
			"sessionId":    payload["session_id"],
		})
		return c.renderOnce(ctx, apiURL, payload)
	})
}

func (c *RenderClient) renderOnce(ctx context.Context, apiURL string, payload map[string]string) (*RenderResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetMultipartFormData(payload).
		Post(apiURL)
	if bodyUnreadable(resp, err) {
		return nil, apperrors.NewRenderError(unreadableMessage("render request failed", resp), unreadableBody, err)
	}
	if err != nil {
		return nil, apperrors.NewRenderError("render request failed", err.Error(), err)
	}

	if !resp.IsSuccess() {
		return nil, apperrors.NewRenderError(
			fmt.Sprintf("render request failed with status %d", resp.StatusCode()),
			bodyText(resp.Body()),
			nil,
		)
	}

	result := &RenderResult{StatusCode: resp.StatusCode()}
	if err := json.Unmarshal(resp.Body(), &result.Body); err != nil {
		return nil, apperrors.NewInvalidResponseError("render service", fmt.Errorf("decode render response: %w", err))
	}
	return result, nil
}

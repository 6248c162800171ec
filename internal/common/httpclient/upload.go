package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "template-service/internal/common/errors"
	"template-service/internal/common/logger"

	"github.com/xeipuuv/gojsonschema"
)

const uploadFieldName = "file"

// uploadResponseSchema describes the storage endpoint's reply,
// e.g. {"status": 1, "file_path": "uploads/abc.jpg"}.
var uploadResponseSchema = mustSchema(`{
	"type": "object",
	"required": ["status"],
	"properties": {
		"status": {"type": ["integer", "string", "boolean"]},
		"message": {"type": ["string", "null"]},
		"file_path": {"type": ["string", "null"]}
	}
}`)

// UploadFile is a binary image received from the caller.
type UploadFile struct {
	Name string
	Data []byte
}

type uploadResponse struct {
	Status   interface{} `json:"status"`
	Message  string      `json:"message"`
	FilePath string      `json:"file_path"`
}

func (r uploadResponse) ok() bool {
	switch v := r.Status.(type) {
	case float64:
		return v == 1
	case string:
		return strings.TrimSpace(v) == "1"
	case bool:
		return v
	}
	return false
}

// UploadClient posts images to the storage endpoint.
type UploadClient struct {
	base
}

func NewUploadClient(policy RetryPolicy, log logger.Logger, opts ...Option) *UploadClient {
	return &UploadClient{base: newBase("upload", policy, log, opts...)}
}

// UploadWithRetry uploads file and returns the server side file path.
func (c *UploadClient) UploadWithRetry(ctx context.Context, file UploadFile, uploadURL string) (string, error) {
	return withRetry(ctx, &c.base, func(ctx context.Context, attempt int) (string, error) {
		c.logger.Debug("uploading file", map[string]interface{}{
			"attempt":  attempt,
			"fileName": file.Name,
			"size":     len(file.Data),
		})
		return c.uploadOnce(ctx, file, uploadURL)
	})
}

func (c *UploadClient) uploadOnce(ctx context.Context, file UploadFile, uploadURL string) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetFileReader(uploadFieldName, file.Name, bytes.NewReader(file.Data)).
		Post(uploadURL)
	if bodyUnreadable(resp, err) {
		return "", apperrors.NewUploadError(unreadableMessage("upload failed", resp), unreadableBody, err)
	}
	if err != nil {
		return "", apperrors.NewUploadError("upload request failed", err.Error(), err)
	}

	body := resp.Body()
	if !resp.IsSuccess() {
		return "", apperrors.NewUploadError(
			fmt.Sprintf("upload failed with status %d", resp.StatusCode()),
			bodyText(body),
			nil,
		)
	}

	parsed, err := parseUploadResponse(body)
	if err != nil {
		return "", apperrors.NewInvalidResponseError("upload service", err)
	}
	if !parsed.ok() {
		msg := parsed.Message
		if msg == "" {
			msg = "storage rejected the file"
		}
		return "", apperrors.NewUploadError("upload failed: "+msg, "", nil)
	}
	if parsed.FilePath == "" {
		return "", apperrors.NewInvalidResponseError("upload service", fmt.Errorf("missing file_path"))
	}
	return parsed.FilePath, nil
}

func parseUploadResponse(body []byte) (*uploadResponse, error) {
	result, err := uploadResponseSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("unexpected upload response: %s", strings.Join(msgs, "; "))
	}

	var parsed uploadResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &parsed, nil
}

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid schema: %v", err))
	}
	return schema
}

// bodyText returns a trimmed response body for error messages.
func bodyText(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "<empty response body>"
	}
	return text
}

package template

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"template-service/internal/api/middleware"
	"template-service/internal/api/respond"
	apperrors "template-service/internal/common/errors"
	"template-service/internal/common/logger"
	generateimage "template-service/internal/workers/templates/generate-image"

	"github.com/gin-gonic/gin"
)

const (
	multipartMemory = 8 << 20

	msgInvalidForm = "Invalid form data"
	msgUnexpected  = "An unexpected error occurred while generating the image"
)

// service runs one generation request.
type service interface {
	Generate(ctx context.Context, req *generateimage.TemplateRequest) (*generateimage.TemplateResponse, error)
}

// Handler serves the template generation endpoint.
type Handler struct {
	service        service
	logger         logger.Logger
	maxUploadBytes int64
}

// NewHandler creates a Handler. maxUploadMB bounds the request body; zero
// disables the limit.
func NewHandler(s service, log logger.Logger, maxUploadMB int) *Handler {
	return &Handler{
		service:        s,
		logger:         log,
		maxUploadBytes: int64(maxUploadMB) << 20,
	}
}

// Generate handles POST /api/templates/generate. The body is multipart form
// data with an optional "image" file.
func (h *Handler) Generate(c *gin.Context) {
	requestID := middleware.GetRequestID(c)
	log := h.logger.With(map[string]interface{}{"requestId": requestID})

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		log.Warn("failed to parse form", map[string]interface{}{"error": err.Error()})
		respond.Failed(c, http.StatusBadRequest, formErrorMessage(err))
		return
	}

	req := &generateimage.TemplateRequest{
		RequestID: requestID,
		Fields:    generateimage.FieldsFromMap(formValues(c)),
	}

	image, err := readImage(c)
	if err != nil {
		log.Warn("failed to read image", map[string]interface{}{"error": err.Error()})
		respond.Failed(c, http.StatusBadRequest, formErrorMessage(err))
		return
	}
	req.Image = image

	resp, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		log.WithError(err).Error("template generation aborted", nil)
		respond.Failed(c, http.StatusInternalServerError, internalMessage(err))
		return
	}

	log.Info("template generation finished", map[string]interface{}{
		"templateType": req.Fields.TemplateType,
		"status":       resp.Status,
		"durationMs":   respond.Elapsed(c).Milliseconds(),
	})
	respond.Generated(c, *resp)
}

func formValues(c *gin.Context) map[string]string {
	values := make(map[string]string)
	form := c.Request.PostForm
	if c.Request.MultipartForm != nil {
		form = c.Request.MultipartForm.Value
	}
	for key, vals := range form {
		if len(vals) > 0 {
			values[key] = vals[0]
		}
	}
	return values
}

// readImage returns nil when no file or an empty file was submitted.
func readImage(c *gin.Context) (*generateimage.Image, error) {
	header, err := c.FormFile(generateimage.FieldImage)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if header.Size == 0 {
		return nil, nil
	}

	data, err := readFileHeader(header)
	if err != nil {
		return nil, err
	}
	return &generateimage.Image{Name: header.Filename, Data: data}, nil
}

func readFileHeader(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open uploaded file: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func formErrorMessage(err error) string {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.MsgFileTooLarge
	}
	return msgInvalidForm
}

// internalMessage prefers the error's own short message and never returns
// the wrapped details.
func internalMessage(err error) string {
	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) && stdErr.Message != "" {
		return stdErr.Message
	}
	return msgUnexpected
}

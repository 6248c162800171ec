package generateimage

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"template-service/internal/common/cache"
	apperrors "template-service/internal/common/errors"
	"template-service/internal/common/httpclient"
	"template-service/internal/common/logger"
	"template-service/internal/common/metrics"
	"template-service/internal/common/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const msgGenerated = "Image generated successfully"

// Uploader stores a submitted image and returns its server-side path.
type Uploader interface {
	UploadWithRetry(ctx context.Context, file httpclient.UploadFile, uploadURL string) (string, error)
}

// Renderer asks the rendering service to produce an image.
type Renderer interface {
	RenderWithRetry(ctx context.Context, apiURL string, payload map[string]string) (*httpclient.RenderResult, error)
}

// UploadCache remembers where identical image bytes were uploaded.
type UploadCache interface {
	Get(ctx context.Context, digest string) (string, bool, error)
	Set(ctx context.Context, digest, filePath string) error
}

// Generator runs one generation request end to end.
type Generator interface {
	Generate(ctx context.Context, req *TemplateRequest) (*TemplateResponse, error)
}

type Service struct {
	config    *Config
	logger    logger.Logger
	validator *Validator
	uploader  Uploader
	renderer  Renderer
	cache     UploadCache
	obs       *observability.Observability
	clock     func() time.Time
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	s := &Service{
		config:    config,
		logger:    deps.Logger,
		validator: NewValidator(),
		uploader:  deps.Uploader,
		renderer:  deps.Renderer,
		cache:     deps.Cache,
		obs:       deps.Observability,
		clock:     deps.Clock,
	}
	if s.logger == nil {
		s.logger = logger.NewNoOpLogger()
	}
	if s.obs == nil {
		s.obs = observability.NewNoop()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s
}

// Generate validates req, uploads its image when present and renders the
// template. Pipeline failures are reported through a status 0 response; the
// returned error is reserved for requests that could not be processed at
// all.
func (s *Service) Generate(ctx context.Context, req *TemplateRequest) (*TemplateResponse, error) {
	if req == nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("nil template request"))
	}

	started := time.Now()
	templateType := req.Fields.TemplateType

	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	ctx, span := s.obs.StartSpan(ctx, "template.generate",
		attribute.String("template_type", metricLabel(templateType)),
		attribute.String("request_id", req.RequestID),
	)
	defer span.End()

	log := s.logger.WithFields(map[string]interface{}{
		"requestId":    req.RequestID,
		"templateType": templateType,
		"traceId":      observability.TraceID(ctx),
	})

	// Validating
	if err := s.stage(ctx, "validate", func(context.Context) error {
		result := s.validator.Validate(s.validationFields(req), templateType)
		if !result.IsValid {
			log.Info("template request rejected", map[string]interface{}{
				"errors": result.Errors,
			})
			return apperrors.NewValidationError(result.Message())
		}
		return nil
	}); err != nil {
		s.finish(ctx, templateType, "invalid", started)
		return &TemplateResponse{Status: StatusFailed, Msg: validationMessage(err)}, nil
	}

	// MappingFields
	stamp := s.clock().UnixMilli()
	outputFile := fmt.Sprintf("output_%d.jpg", stamp)
	payload := s.basePayload(req, stamp, outputFile)
	MapFields(payload, req.Fields)

	// UploadingFile
	if req.hasImage() {
		var imagePath string
		err := s.stage(ctx, "upload", func(ctx context.Context) error {
			var err error
			imagePath, err = s.upload(ctx, log, req.Image)
			return err
		})
		if err != nil {
			return s.fail(ctx, log, templateType, "upload", err, started), nil
		}
		payload.Set(ParamImagePath, imagePath)
	}

	// Rendering
	var rendered *httpclient.RenderResult
	err := s.stage(ctx, "render", func(ctx context.Context) error {
		var err error
		rendered, err = s.renderer.RenderWithRetry(ctx, s.config.RenderURL, payload.Map())
		return err
	})
	if err != nil {
		return s.fail(ctx, log, templateType, "render", err, started), nil
	}

	img := s.config.PublicURL(outputFile)
	log.Info("template image generated", map[string]interface{}{
		"img":          img,
		"renderStatus": rendered.StatusCode,
		"durationMs":   time.Since(started).Milliseconds(),
	})
	s.finish(ctx, templateType, "success", started)

	return &TemplateResponse{Status: StatusSuccess, Msg: msgGenerated, Img: img}, nil
}

// Execute adapts Generate to workflow job variables.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	resp, err := s.Generate(ctx, &TemplateRequest{Fields: input.toFields()})
	if err != nil {
		return nil, err
	}
	return &Output{
		TemplateStatus:  resp.Status,
		TemplateMessage: resp.Msg,
		TemplateImage:   resp.Img,
		GeneratedAt:     s.clock(),
	}, nil
}

func (s *Service) validationFields(req *TemplateRequest) map[string]string {
	fields := req.Fields.Map()
	if req.hasImage() {
		name := req.Image.Name
		if name == "" {
			name = "upload"
		}
		fields[FieldImage] = name
	}
	return fields
}

func (s *Service) basePayload(req *TemplateRequest, stamp int64, outputFile string) *RenderPayload {
	p := NewRenderPayload()
	p.Set(ParamSessionID, fmt.Sprintf("session_%d", stamp))
	p.Set(ParamOutputPath, s.config.OutputPath(outputFile))
	if req.Fields.CropMode != "" {
		p.Set(ParamCropMode, req.Fields.CropMode)
	}
	if req.Fields.ArticleURL != "" {
		p.Set(ParamArticleURL, req.Fields.ArticleURL)
		p.Set(ParamIsArticle, "1")
	}
	return p
}

func (s *Service) upload(ctx context.Context, log logger.Logger, img *Image) (string, error) {
	var digest string
	if s.cache != nil {
		digest = cache.ContentKey(img.Data)
		path, found, err := s.cache.Get(ctx, digest)
		switch {
		case err != nil:
			metrics.UploadCacheLookups.WithLabelValues("error").Inc()
			log.WithError(err).Warn("upload cache lookup failed", nil)
		case found:
			metrics.UploadCacheLookups.WithLabelValues("hit").Inc()
			log.Debug("reusing uploaded image", map[string]interface{}{"filePath": path})
			return path, nil
		default:
			metrics.UploadCacheLookups.WithLabelValues("miss").Inc()
		}
	}

	path, err := s.uploader.UploadWithRetry(ctx, httpclient.UploadFile{Name: img.Name, Data: img.Data}, s.config.UploadURL)
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, digest, path); err != nil {
			log.WithError(err).Warn("upload cache store failed", nil)
		}
	}
	return path, nil
}

func (s *Service) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := s.obs.StartSpan(ctx, "template."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	status := "success"
	if err != nil {
		status = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
	}
	s.obs.RecordStage(ctx, name, time.Since(start), status)
	return err
}

func (s *Service) fail(ctx context.Context, log logger.Logger, templateType, stage string, err error, started time.Time) *TemplateResponse {
	msg := apperrors.ToUserMessage(err)
	code := apperrors.CodeOf(err)

	log.WithError(err).Error("template generation failed", map[string]interface{}{
		"stage":       stage,
		"errorCode":   code,
		"category":    apperrors.GetErrorCategory(code),
		"userMessage": msg,
		"durationMs":  time.Since(started).Milliseconds(),
	})
	s.finish(ctx, templateType, "failed", started)

	return &TemplateResponse{Status: StatusFailed, Msg: msg}
}

func (s *Service) finish(ctx context.Context, templateType, outcome string, started time.Time) {
	label := metricLabel(templateType)
	metrics.GenerationRequests.WithLabelValues(label, outcome).Inc()
	metrics.GenerationDuration.WithLabelValues(label).Observe(time.Since(started).Seconds())
	s.obs.RecordGeneration(ctx, label, outcome)
}

const otherTemplateType = "other"

// metricLabel keeps template_type label values to the known catalogue.
func metricLabel(templateType string) string {
	if _, ok := variants[templateType]; ok {
		return templateType
	}
	if _, ok := templateRules[templateType]; ok {
		return templateType
	}
	return otherTemplateType
}

// validationMessage returns the joined rule messages carried by a validation
// error.
func validationMessage(err error) string {
	var stdErr *apperrors.StandardError
	if stderrors.As(err, &stdErr) && stdErr.Details != "" {
		return stdErr.Details
	}
	return err.Error()
}

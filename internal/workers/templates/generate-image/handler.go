package generateimage

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"template-service/internal/common/camunda"
	"template-service/internal/common/errors"
	"template-service/internal/common/logger"
	"template-service/internal/common/metrics"
	"template-service/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"
)

const TaskType = "templates.image.generate"

// Executor runs a generation from workflow job variables.
type Executor interface {
	Execute(ctx context.Context, input *Input) (*Output, error)
}

type Handler struct {
	config    *Config
	logger    logger.Logger
	zapLogger *zap.Logger
	camunda   *camunda.Client
	service   Executor
	worker    *camunda.CamundaWorker
}

type HandlerOptions struct {
	Config    *Config
	Camunda   *camunda.Client
	Service   Executor
	Logger    logger.Logger
	ZapLogger *zap.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Service == nil {
		return nil, fmt.Errorf("service is required for %s", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	zl := opts.ZapLogger
	if zl == nil {
		zl = zap.NewNop()
	}

	return &Handler{
		config:    cfg,
		logger:    log.With(map[string]interface{}{"worker": TaskType}),
		zapLogger: zl,
		camunda:   opts.Camunda,
		service:   opts.Service,
	}, nil
}

// Handle processes one job. Pipeline failures (status 0) still complete the
// job so the process can branch on templateStatus.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.JobTimeout)
	defer cancel()

	h.logger.Info("Processing template generation job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
		h.failJob(ctx, client, job, err)
		return err
	}

	output, err := h.service.Execute(ctx, input)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
		h.failJob(ctx, client, job, err)
		return err
	}

	if err := h.completeJob(ctx, client, job, output); err != nil {
		return err
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	return nil
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, &errors.StandardError{
			Code:      errors.ErrCodeValidationFailed,
			Message:   "Failed to parse job variables",
			Details:   err.Error(),
			Retryable: false,
			Timestamp: time.Now(),
		}
	}

	result := validation.ValidateInput(variables, GetInputSchema())
	if !result.Valid {
		return nil, errors.NewValidationError(fmt.Sprintf("Validation errors: %v", result.GetErrorMessages()))
	}

	return &Input{
		TemplateType:       stringVar(variables, FieldTemplateType),
		CustomTemplateType: stringVar(variables, FieldCustomTemplateType),
		Title:              stringVar(variables, FieldTitle),
		Description:        stringVar(variables, FieldDescription),
		Category:           stringVar(variables, FieldCategory),
		ArticleURL:         stringVar(variables, FieldArticleURL),
		SubText:            stringVar(variables, FieldSubText),
		CropMode:           stringVar(variables, FieldCropMode),
		ShowArrow:          stringVar(variables, FieldShowArrow),
		Location:           stringVar(variables, FieldLocation),
		LogoPosition:       stringVar(variables, FieldLogoPosition),
		TextToHighlight:    stringVar(variables, FieldTextToHighlight),
	}, nil
}

func stringVar(variables map[string]interface{}, key string) string {
	switch v := variables[key].(type) {
	case string:
		return v
	case bool:
		if v {
			return "1"
		}
		return "0"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	variables := map[string]interface{}{
		"templateStatus": output.TemplateStatus,
		"generatedAt":    output.GeneratedAt.Format(time.RFC3339),
	}
	if output.TemplateMessage != "" {
		variables["templateMessage"] = output.TemplateMessage
	}
	if output.TemplateImage != "" {
		variables["templateImage"] = output.TemplateImage
	}

	err := camunda.ExecuteWithRetry(ctx, h.retryConfig(), "complete job", func(ctx context.Context) error {
		request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(variables)
		if err != nil {
			return err
		}
		_, err = request.Send(ctx)
		return err
	})
	if err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return err
	}

	h.logger.Info("Completed template generation job", map[string]interface{}{
		"jobKey":         job.GetKey(),
		"templateStatus": output.TemplateStatus,
		"templateImage":  output.TemplateImage,
	})
	return nil
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := toStandardError(err)
	retries := failRetries(stdErr, job.GetRetries())

	h.logger.Error("Template generation job failed", map[string]interface{}{
		"jobKey":    job.GetKey(),
		"errorCode": stdErr.Code,
		"error":     stdErr.Error(),
		"retryable": stdErr.Retryable,
		"retries":   retries,
	})

	failCmd := client.NewFailJobCommand().
		JobKey(job.GetKey()).
		Retries(retries).
		ErrorMessage(fmt.Sprintf("[%s] %s", stdErr.Code, stdErr.Message))

	var finalCmd interface {
		Send(context.Context) (*pb.FailJobResponse, error)
	} = failCmd
	if varCmd, varErr := failCmd.VariablesFromMap(stdErr.ToJobVariables()); varErr == nil {
		finalCmd = varCmd
	}

	sendErr := camunda.ExecuteWithRetry(ctx, h.retryConfig(), "fail job", func(ctx context.Context) error {
		_, err := finalCmd.Send(ctx)
		return err
	})
	if sendErr != nil {
		h.logger.Error("Failed to report job failure", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  sendErr.Error(),
		})
	}
}

func toStandardError(err error) *errors.StandardError {
	var stdErr *errors.StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return errors.NewInternalError(err)
}

// failRetries keeps the broker's remaining retries only for transient
// failures.
func failRetries(err *errors.StandardError, current int32) int32 {
	if !err.Retryable || current <= 1 {
		return 0
	}
	return current - 1
}

func (h *Handler) retryConfig() *camunda.RetryConfig {
	if h.camunda != nil {
		return h.camunda.RetryConfig()
	}
	return camunda.DefaultRetryConfig
}

func (h *Handler) Register() error {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", nil)
		return nil
	}
	if h.camunda == nil {
		return fmt.Errorf("camunda client is required to register %s", TaskType)
	}

	h.worker = camunda.NewWorker(h.camunda.GetClient(), camunda.WorkerOptions{
		TaskType:      TaskType,
		MaxJobsActive: h.config.MaxJobsActive,
		Timeout:       h.config.JobTimeout,
	}, h, h.zapLogger)
	return nil
}

func (h *Handler) Close() {
	if h.worker != nil {
		h.worker.Stop()
		h.worker = nil
	}
}

func (h *Handler) HealthCheck(ctx context.Context) error {
	if h.camunda == nil {
		return nil
	}
	if err := h.camunda.HealthCheck(ctx); err != nil {
		return fmt.Errorf("camunda health check failed: %w", err)
	}
	return nil
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

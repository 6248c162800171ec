package generateimage

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"template-service/internal/common/config"
	"template-service/internal/common/errors"
	"template-service/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Service Implementation
// ==========================

type MockService struct {
	mock.Mock
}

func (m *MockService) Execute(ctx context.Context, input *Input) (*Output, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Output), args.Error(1)
}

// ==========================
// Mock Job Helper
// ==========================

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	activatedJob := &pb.ActivatedJob{
		Key:                      key,
		Type:                     TaskType,
		ProcessInstanceKey:       key * 10,
		BpmnProcessId:            "template-process",
		ProcessDefinitionVersion: 1,
		ProcessDefinitionKey:     1,
		ElementId:                "Activity_GenerateImage",
		ElementInstanceKey:       1,
		CustomHeaders:            "{}",
		Worker:                   "test-worker",
		Retries:                  3,
		Deadline:                 0,
		Variables:                string(variablesJSON),
	}

	return entities.Job{ActivatedJob: activatedJob}
}

func newTestHandler(t *testing.T, svc Executor) *Handler {
	h, err := NewHandler(HandlerOptions{
		Config:  createTestConfig(),
		Service: svc,
		Logger:  logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func TestHandler_NewHandler(t *testing.T) {
	tests := []struct {
		name    string
		opts    HandlerOptions
		wantErr string
	}{
		{
			name: "valid options",
			opts: HandlerOptions{Config: createTestConfig(), Service: &MockService{}, Logger: logger.NewNoOpLogger()},
		},
		{
			name:    "missing service",
			opts:    HandlerOptions{Config: createTestConfig()},
			wantErr: "service is required",
		},
		{
			name: "invalid config",
			opts: HandlerOptions{
				Config:  &Config{MaxJobsActive: 1},
				Service: &MockService{},
			},
			wantErr: "render_url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, err := NewHandler(tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, handler)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, TaskType, handler.GetTaskType())
		})
	}
}

func TestHandler_ParseInput(t *testing.T) {
	h := newTestHandler(t, &MockService{})

	t.Run("maps variables", func(t *testing.T) {
		job := createMockJob(1, map[string]interface{}{
			"template_type":  TypeFeedLocation,
			"title":          "Hello",
			"category":       "Sport",
			"location":       "Tirana",
			"show_arrow":     true,
			"unrelatedValue": 42,
		})

		input, err := h.parseInput(job)

		require.NoError(t, err)
		assert.Equal(t, TypeFeedLocation, input.TemplateType)
		assert.Equal(t, "Hello", input.Title)
		assert.Equal(t, "Sport", input.Category)
		assert.Equal(t, "Tirana", input.Location)
		assert.Equal(t, "1", input.ShowArrow)
	})

	t.Run("missing template type", func(t *testing.T) {
		job := createMockJob(2, map[string]interface{}{"title": "Hello"})

		_, err := h.parseInput(job)

		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeValidationFailed, errors.CodeOf(err))
		assert.Contains(t, err.Error(), "template_type")
	})

	t.Run("wrong type", func(t *testing.T) {
		job := createMockJob(3, map[string]interface{}{"template_type": 7})

		_, err := h.parseInput(job)

		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeValidationFailed, errors.CodeOf(err))
	})
}

func TestFailRetries(t *testing.T) {
	transient := errors.NewRenderError("render request failed with status 503", "", nil)
	permanent := errors.NewValidationError("Title is required")

	assert.True(t, transient.Retryable)
	assert.Equal(t, int32(2), failRetries(transient, 3))
	assert.Equal(t, int32(0), failRetries(transient, 1))
	assert.Equal(t, int32(0), failRetries(permanent, 3))
}

func TestToStandardError(t *testing.T) {
	wrapped := fmt.Errorf("execute: %w", errors.NewValidationError("bad"))
	assert.Equal(t, errors.ErrCodeValidationFailed, toStandardError(wrapped).Code)

	plain := toStandardError(fmt.Errorf("boom"))
	assert.Equal(t, errors.ErrCodeInternal, plain.Code)
	assert.False(t, plain.Retryable)
}

func TestHandler_RegisterDisabled(t *testing.T) {
	h := newTestHandler(t, &MockService{})

	assert.NoError(t, h.Register())
	assert.NoError(t, h.HealthCheck(context.Background()))
	h.Close()
}

func TestHandler_RegisterEnabledWithoutClient(t *testing.T) {
	cfg := createTestConfig()
	cfg.Enabled = true
	h, err := NewHandler(HandlerOptions{Config: cfg, Service: &MockService{}, Logger: logger.NewNoOpLogger()})
	require.NoError(t, err)

	assert.Error(t, h.Register())
}

func TestConfig_FromAppConfig(t *testing.T) {
	app := &config.Config{}
	app.Camunda.Enabled = true
	app.Camunda.MaxJobsActive = 9
	app.Camunda.Timeout = 120000
	app.Server.RequestTimeout = 90000
	app.Render.URL = "https://render.test/generate"
	app.Upload.URL = "https://storage.test/upload-file"
	app.Storage.Domain = "https://storage.test/"
	app.Storage.OutputDir = "/srv/out/"

	cfg := ConfigFromAppConfig(app)

	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 9, cfg.MaxJobsActive)
	assert.Equal(t, 2*time.Minute, cfg.JobTimeout)
	assert.Equal(t, 90*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "/srv/out/output_1.jpg", cfg.OutputPath("output_1.jpg"))
	assert.Equal(t, "https://storage.test/storage/uploads/output_1.jpg", cfg.PublicURL("output_1.jpg"))
}

func TestDefaultConfig_CoversRetryBudget(t *testing.T) {
	app := &config.Config{}
	app.Render = config.RetryClientConfig{Timeout: 60000, MaxAttempts: 3, Backoff: []int{2000, 4000, 6000}}
	app.Upload = config.RetryClientConfig{Timeout: 30000, MaxAttempts: 3, Backoff: []int{1000, 2000, 3000}}

	cfg := DefaultConfig()

	assert.GreaterOrEqual(t, cfg.RequestTimeout, app.GenerationBudget())
	assert.Greater(t, cfg.JobTimeout, cfg.RequestTimeout)
}

func TestService_Integration(t *testing.T) {
	t.Run("service executes with valid input", func(t *testing.T) {
		mockService := &MockService{}
		expected := &Output{TemplateStatus: StatusSuccess, TemplateImage: "https://storage.test/storage/uploads/output_1.jpg"}
		mockService.On("Execute", mock.Anything, mock.MatchedBy(func(i *Input) bool {
			return i.TemplateType == TypeFeedBasic && i.Title == "Hello"
		})).Return(expected, nil)

		h := newTestHandler(t, mockService)
		input, err := h.parseInput(createMockJob(5, map[string]interface{}{
			"template_type": TypeFeedBasic,
			"title":         "Hello",
		}))
		require.NoError(t, err)

		out, err := h.service.Execute(context.Background(), input)

		require.NoError(t, err)
		assert.Equal(t, expected, out)
		mockService.AssertExpectations(t)
	})

	t.Run("service reports internal error", func(t *testing.T) {
		mockService := &MockService{}
		mockService.On("Execute", mock.Anything, mock.Anything).Return(nil, errors.NewInternalError(fmt.Errorf("nil template request")))

		h := newTestHandler(t, mockService)
		_, err := h.service.Execute(context.Background(), &Input{TemplateType: TypeFeedBasic})

		require.Error(t, err)
		assert.Equal(t, int32(0), failRetries(toStandardError(err), 3))
		mockService.AssertExpectations(t)
	})
}

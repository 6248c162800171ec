// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

// JobHandler processes one activated job. A returned error has already been
// reported to the broker; it is only logged here.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job) error
}

// WorkerOptions configures job activation for one task type.
type WorkerOptions struct {
	TaskType      string
	MaxJobsActive int
	// Timeout is how long an activated job stays locked to this worker.
	Timeout      time.Duration
	PollInterval time.Duration
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   *zap.Logger
	taskType string
}

// NewWorker opens a job worker that polls until Stop is called.
func NewWorker(client zbc.Client, opts WorkerOptions, handler JobHandler, logger *zap.Logger) *CamundaWorker {
	log := logger.With(zap.String("taskType", opts.TaskType))

	step := client.NewJobWorker().
		JobType(opts.TaskType).
		Handler(func(client worker.JobClient, job entities.Job) {
			if err := handler.Handle(client, job); err != nil {
				log.Error("job handler returned error",
					zap.Error(err),
					zap.Int64("jobKey", job.GetKey()),
					zap.Int64("processInstanceKey", job.GetProcessInstanceKey()),
					zap.String("bpmnProcessId", job.GetBpmnProcessId()),
				)
			}
		}).
		MaxJobsActive(opts.MaxJobsActive).
		Timeout(opts.Timeout).
		Name(opts.TaskType + "-worker")
	if opts.PollInterval > 0 {
		step = step.PollInterval(opts.PollInterval)
	}
	jobWorker := step.Open()

	log.Info("job worker started",
		zap.Int("maxJobsActive", opts.MaxJobsActive),
		zap.Duration("timeout", opts.Timeout),
	)

	return &CamundaWorker{worker: jobWorker, logger: log, taskType: opts.TaskType}
}

// Stop closes the job worker and waits for in-flight handlers.
func (w *CamundaWorker) Stop() {
	w.logger.Info("stopping job worker")
	w.worker.Close()
	w.worker.AwaitClose()
}

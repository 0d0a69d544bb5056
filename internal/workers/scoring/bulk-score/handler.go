// internal/workers/scoring/bulk-score/handler.go
package bulkscore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"follicle-match/internal/common/errors"
	"follicle-match/internal/common/logger"
	"follicle-match/internal/common/metrics"
	"follicle-match/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "scoring.bulk-score"

// maxReportedFailures bounds the ids echoed back into process variables.
const maxReportedFailures = 50

// Scorer scores every entity of a type for one user.
type Scorer interface {
	ScoreAll(ctx context.Context, userID string, et models.EntityType) ([]models.RescoreResult, error)
}

type Handler struct {
	config *Config
	scorer Scorer
	logger logger.Logger
}

func NewHandler(config *Config, scorer Scorer, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		scorer: scorer,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("Processing bulk score job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := parseInput(job.GetVariables())
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
		return h.failJob(ctx, client, job, err)
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
		return h.failJob(ctx, client, job, err)
	}

	if err := h.completeJob(ctx, client, job, output); err != nil {
		return err
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	return nil
}

func parseInput(variables string) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("parse job variables: %v", err))
	}
	if input.UserID == "" {
		return nil, errors.NewValidationError("userId is required")
	}
	if _, ok := models.ParseEntityType(input.EntityType); !ok {
		return nil, errors.NewValidationError(fmt.Sprintf("unknown entityType %q", input.EntityType))
	}
	return &input, nil
}

// Execute scores every entity of the input type. Individual failures are
// counted, not fatal.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	et, ok := models.ParseEntityType(input.EntityType)
	if !ok {
		return nil, errors.NewValidationError(fmt.Sprintf("unknown entityType %q", input.EntityType))
	}

	results, err := h.scorer.ScoreAll(ctx, input.UserID, et)
	if err != nil {
		return nil, err
	}

	out := &Output{EntityType: et, Total: len(results)}
	for _, r := range results {
		if r.Outcome == models.RescoreOK {
			out.Succeeded++
			continue
		}
		out.Failed++
		if len(out.FailedIDs) < maxReportedFailures {
			out.FailedIDs = append(out.FailedIDs, r.EntityID)
		}
	}

	h.logger.Info("Bulk scoring finished", map[string]interface{}{
		"userId":     input.UserID,
		"entityType": string(et),
		"total":      out.Total,
		"failed":     out.Failed,
	})
	return out, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err,
		})
		return err
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err,
		})
		return err
	}
	return nil
}

// failJob hands retryable errors back to the broker with one retry fewer;
// everything else is thrown as a BPMN error.
func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, cause error) error {
	appErr := errors.Normalize(cause)
	h.logger.Error("Bulk score job failed", map[string]interface{}{
		"jobKey":    job.GetKey(),
		"errorCode": string(appErr.Code),
		"retryable": appErr.Retryable,
		"error":     cause.Error(),
	})

	var err error
	if appErr.Retryable && job.GetRetries() > 0 {
		_, err = client.NewFailJobCommand().
			JobKey(job.GetKey()).
			Retries(job.GetRetries() - 1).
			ErrorMessage(appErr.Error()).
			Send(ctx)
	} else {
		_, err = client.NewThrowErrorCommand().
			JobKey(job.GetKey()).
			ErrorCode(string(appErr.Code)).
			ErrorMessage(appErr.Error()).
			Send(ctx)
	}
	if err != nil {
		h.logger.Error("Failed to report job failure", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err,
		})
	}
	return cause
}

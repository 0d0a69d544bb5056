package bulkscore

import (
	"context"
	"sync"
	"time"

	"follicle-match/internal/common/errors"
	"follicle-match/internal/common/logger"
	"follicle-match/internal/models"
)

// ProcessStarter starts a BPMN process instance.
type ProcessStarter interface {
	CreateInstance(ctx context.Context, processID string, variables interface{}) (int64, error)
}

// CamundaDispatcher starts the bulk scoring process; a worker for TaskType
// picks up its service task.
type CamundaDispatcher struct {
	starter   ProcessStarter
	processID string
	logger    logger.Logger
}

func NewCamundaDispatcher(starter ProcessStarter, processID string, log logger.Logger) *CamundaDispatcher {
	return &CamundaDispatcher{starter: starter, processID: processID, logger: log}
}

func (d *CamundaDispatcher) Dispatch(ctx context.Context, userID string, et models.EntityType) error {
	key, err := d.starter.CreateInstance(ctx, d.processID, Input{UserID: userID, EntityType: string(et)})
	if err != nil {
		return errors.NewExternalServiceError("zeebe", err)
	}
	d.logger.Info("Bulk scoring process started", map[string]interface{}{
		"userId":             userID,
		"entityType":         string(et),
		"processInstanceKey": key,
	})
	return nil
}

// LocalDispatcher runs bulk scoring in process. A run already in flight for
// the same user and type absorbs the new request.
type LocalDispatcher struct {
	scorer  Scorer
	timeout time.Duration
	logger  logger.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup
}

func NewLocalDispatcher(scorer Scorer, timeout time.Duration, log logger.Logger) *LocalDispatcher {
	return &LocalDispatcher{
		scorer:   scorer,
		timeout:  timeout,
		logger:   log,
		inFlight: map[string]struct{}{},
	}
}

func (d *LocalDispatcher) Dispatch(_ context.Context, userID string, et models.EntityType) error {
	key := userID + "/" + string(et)

	d.mu.Lock()
	if _, running := d.inFlight[key]; running {
		d.mu.Unlock()
		return nil
	}
	d.inFlight[key] = struct{}{}
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			d.mu.Lock()
			delete(d.inFlight, key)
			d.mu.Unlock()
		}()

		// Detached from the request, which ends before scoring does.
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		results, err := d.scorer.ScoreAll(ctx, userID, et)
		if err != nil {
			d.logger.Error("Local bulk scoring failed", map[string]interface{}{
				"userId":     userID,
				"entityType": string(et),
				"error":      err.Error(),
			})
			return
		}
		d.logger.Info("Local bulk scoring finished", map[string]interface{}{
			"userId":     userID,
			"entityType": string(et),
			"count":      len(results),
		})
	}()
	return nil
}

// Wait blocks until every dispatched run has returned.
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}

// Package scoreclient waits for bulk scoring to finish by polling the
// completion-status endpoint. The server keeps no per-client state.
package scoreclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	httpclient "follicle-match/internal/common/http"
	"follicle-match/internal/models"
)

const (
	DefaultInterval  = 5 * time.Second
	defaultMaxErrors = 3
)

type Options struct {
	BaseURL  string
	Token    string
	Interval time.Duration
	// MaxErrors is the number of consecutive transient failures tolerated.
	MaxErrors int
	// OnProgress is called after every successful poll.
	OnProgress func(models.CompletionStatus)
}

type Poller struct {
	client *httpclient.Client
	opts   Options
}

func NewPoller(opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = defaultMaxErrors
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Poller{client: httpclient.NewClient(30 * time.Second), opts: opts}
}

type statusEnvelope struct {
	Success bool                    `json:"success"`
	Data    models.CompletionStatus `json:"data"`
}

// Status fetches the completion status once.
func (p *Poller) Status(ctx context.Context, et models.EntityType) (*models.CompletionStatus, error) {
	url := fmt.Sprintf("%s/api/%s/scores", p.opts.BaseURL, et.Collection())
	var env statusEnvelope
	err := p.client.GetJSON(ctx, url, map[string]string{
		"Authorization": "Bearer " + p.opts.Token,
		"Accept":        "application/json",
	}, &env)
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// Wait polls until scoredCount reaches totalCount or ctx ends. Client errors
// (4xx) end polling at once.
func (p *Poller) Wait(ctx context.Context, et models.EntityType) (*models.CompletionStatus, error) {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	failures := 0
	for {
		status, err := p.Status(ctx, et)
		switch {
		case err == nil:
			failures = 0
			if p.opts.OnProgress != nil {
				p.opts.OnProgress(*status)
			}
			if status.ScoredCount >= status.TotalCount {
				return status, nil
			}
		case isClientError(err):
			return nil, err
		default:
			failures++
			if failures >= p.opts.MaxErrors {
				return nil, fmt.Errorf("polling %s scores: %w", et, err)
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func isClientError(err error) bool {
	var statusErr *httpclient.StatusError
	return stderrors.As(err, &statusErr) && statusErr.StatusCode >= 400 && statusErr.StatusCode < 500
}

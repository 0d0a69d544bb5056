// internal/workers/scoring/bulk-score/config.go
package bulkscore

import (
	"fmt"
	"time"

	"follicle-match/internal/common/config"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
	ProcessID     string
}

// ConfigFromApp reads the worker entry keyed by TaskType.
func ConfigFromApp(cfg *config.Config) *Config {
	w := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		Enabled:       w.Enabled,
		MaxJobsActive: w.MaxJobsActive,
		Timeout:       config.GetDuration(w.Timeout),
		ProcessID:     cfg.Scoring.BulkProcessID,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.ProcessID == "" {
		return fmt.Errorf("process id is required")
	}
	return nil
}

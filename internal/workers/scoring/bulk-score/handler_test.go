// internal/workers/scoring/bulk-score/handler_test.go
package bulkscore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"follicle-match/internal/common/config"
	apperrors "follicle-match/internal/common/errors"
	"follicle-match/internal/common/logger"
	"follicle-match/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type stubScorer struct {
	mu      sync.Mutex
	results []models.RescoreResult
	err     error
	calls   int32
	block   chan struct{}
	got     []models.EntityType
}

func (s *stubScorer) ScoreAll(_ context.Context, _ string, et models.EntityType) ([]models.RescoreResult, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	s.got = append(s.got, et)
	s.mu.Unlock()
	return s.results, s.err
}

type stubStarter struct {
	processID string
	variables interface{}
	err       error
}

func (s *stubStarter) CreateInstance(_ context.Context, processID string, variables interface{}) (int64, error) {
	s.processID = processID
	s.variables = variables
	return 42, s.err
}

func createTestConfig() *Config {
	return &Config{Enabled: true, MaxJobsActive: 2, Timeout: 5 * time.Second, ProcessID: "bulk-score-entities"}
}

// ==========================
// Input parsing
// ==========================

func TestParseInput(t *testing.T) {
	tests := []struct {
		name      string
		variables string
		wantErr   bool
	}{
		{"valid", `{"userId":"u1","entityType":"products"}`, false},
		{"singular type", `{"userId":"u1","entityType":"routine"}`, false},
		{"missing user", `{"entityType":"products"}`, true},
		{"bad type", `{"userId":"u1","entityType":"hats"}`, true},
		{"not json", `{`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := parseInput(tt.variables)
			if tt.wantErr {
				assert.True(t, apperrors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", input.UserID)
		})
	}
}

// ==========================
// Execute
// ==========================

func TestExecute_CountsOutcomes(t *testing.T) {
	scorer := &stubScorer{results: []models.RescoreResult{
		{EntityID: "p1", Outcome: models.RescoreOK},
		{EntityID: "p2", Outcome: models.RescoreFailed, Reason: "not found"},
		{EntityID: "p3", Outcome: models.RescoreOK},
	}}
	h := NewHandler(createTestConfig(), scorer, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{UserID: "u1", EntityType: "products"})
	require.NoError(t, err)
	assert.Equal(t, models.EntityProduct, out.EntityType)
	assert.Equal(t, 3, out.Total)
	assert.Equal(t, 2, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, []string{"p2"}, out.FailedIDs)
}

func TestExecute_ScorerError(t *testing.T) {
	scorer := &stubScorer{err: apperrors.NewQueryExecutionFailedError("list routines", errors.New("conn reset"))}
	h := NewHandler(createTestConfig(), scorer, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{UserID: "u1", EntityType: "routines"})
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.True(t, appErr.Retryable)
}

// ==========================
// Config
// ==========================

func TestConfigFromApp(t *testing.T) {
	cfg := &config.Config{
		Scoring: config.ScoringConfig{BulkProcessID: "bulk"},
		Workers: map[string]config.WorkerConfig{
			TaskType: {Enabled: true, MaxJobsActive: 3, Timeout: 60000},
		},
	}
	c := ConfigFromApp(cfg)
	require.NoError(t, c.Validate())
	assert.Equal(t, time.Minute, c.Timeout)
	assert.Equal(t, 3, c.MaxJobsActive)
	assert.Equal(t, "bulk", c.ProcessID)

	assert.Error(t, (&Config{}).Validate())
}

// ==========================
// Dispatchers
// ==========================

func TestCamundaDispatcher(t *testing.T) {
	starter := &stubStarter{}
	d := NewCamundaDispatcher(starter, "bulk-score-entities", logger.NewTestLogger(t))

	require.NoError(t, d.Dispatch(context.Background(), "u1", models.EntityRoutine))
	assert.Equal(t, "bulk-score-entities", starter.processID)
	assert.Equal(t, Input{UserID: "u1", EntityType: "routine"}, starter.variables)

	starter.err = errors.New("unavailable")
	err := d.Dispatch(context.Background(), "u1", models.EntityRoutine)
	assert.Equal(t, apperrors.ErrCodeExternalService, apperrors.CodeOf(err))
}

func TestLocalDispatcher_CoalescesInFlightRuns(t *testing.T) {
	scorer := &stubScorer{block: make(chan struct{})}
	d := NewLocalDispatcher(scorer, time.Second, logger.NewTestLogger(t))
	ctx := context.Background()

	require.NoError(t, d.Dispatch(ctx, "u1", models.EntityProduct))
	require.NoError(t, d.Dispatch(ctx, "u1", models.EntityProduct))
	require.NoError(t, d.Dispatch(ctx, "u1", models.EntityRoutine))

	close(scorer.block)
	d.Wait()

	assert.Equal(t, int32(2), atomic.LoadInt32(&scorer.calls))
	assert.ElementsMatch(t, []models.EntityType{models.EntityProduct, models.EntityRoutine}, scorer.got)

	// A finished run no longer blocks a new one.
	require.NoError(t, d.Dispatch(ctx, "u1", models.EntityProduct))
	d.Wait()
	assert.Equal(t, int32(3), atomic.LoadInt32(&scorer.calls))
}

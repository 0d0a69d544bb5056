package routines

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "follicle-match/internal/common/errors"
	"follicle-match/internal/common/logger"
	"follicle-match/internal/docstore"
	"follicle-match/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTracker struct {
	tracked   [][]string
	untracked [][]string
	active    map[string]bool
	err       error
}

func (f *fakeTracker) Track(_ context.Context, userID string, ids []string) error {
	f.tracked = append(f.tracked, ids)
	if f.err != nil {
		return f.err
	}
	for _, id := range ids {
		f.active[userID+"/"+id] = true
	}
	return nil
}

func (f *fakeTracker) Untrack(_ context.Context, userID string, ids []string) error {
	f.untracked = append(f.untracked, ids)
	if f.err != nil {
		return f.err
	}
	for _, id := range ids {
		delete(f.active, userID+"/"+id)
	}
	return nil
}

type fakeScores struct {
	rescored [][]models.EntityRef
	deleted  []models.EntityRef
}

func (f *fakeScores) Rescore(_ context.Context, _ string, refs []models.EntityRef) []models.RescoreResult {
	f.rescored = append(f.rescored, refs)
	out := make([]models.RescoreResult, len(refs))
	for i, r := range refs {
		out[i] = models.RescoreResult{EntityID: r.ID, EntityType: r.Type, Outcome: models.RescoreOK}
	}
	return out
}

func (f *fakeScores) DeleteScore(_ context.Context, _ string, ref models.EntityRef) error {
	f.deleted = append(f.deleted, ref)
	return nil
}

type fixture struct {
	store   *docstore.MemoryStore
	tracker *fakeTracker
	scores  *fakeScores
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	store := docstore.NewMemoryStore()
	tracker := &fakeTracker{active: map[string]bool{}}
	scores := &fakeScores{}
	svc := NewService(ServiceDependencies{
		Store: store, Tracker: tracker, Scores: scores, Logger: logger.NewTestLogger(t),
	}).WithClock(func() time.Time { return time.Date(2026, 4, 4, 8, 0, 0, 0, time.UTC) })
	n := 0
	svc.newID = func() string {
		n++
		return "r" + string(rune('0'+n))
	}
	return &fixture{store: store, tracker: tracker, scores: scores, svc: svc}
}

func input(productIDs ...string) models.RoutineInput {
	steps := make([]models.RoutineStep, len(productIDs))
	for i, id := range productIDs {
		steps[i] = models.RoutineStep{ProductID: id, Order: (len(productIDs) - i) * 10, Frequency: models.FrequencyWeekly}
	}
	return models.RoutineInput{Name: "Wash day", Steps: steps}
}

func refs(et models.EntityType, ids ...string) []models.EntityRef {
	out := make([]models.EntityRef, len(ids))
	for i, id := range ids {
		out[i] = models.EntityRef{Type: et, ID: id}
	}
	return out
}

// ==========================
// Create
// ==========================

func TestCreate(t *testing.T) {
	f := newFixture(t)

	report, err := f.svc.Create(context.Background(), "u1", input("A", "B", "A"))
	require.NoError(t, err)

	r := report.Routine
	assert.Equal(t, "r1", r.ID)
	assert.Equal(t, "u1", r.UserID)
	require.Len(t, r.Steps, 3)
	assert.Equal(t, "A", r.Steps[0].ProductID, "steps sorted by order")
	assert.Equal(t, 0, r.Steps[0].Order)
	assert.Equal(t, 2, r.Steps[2].Order)

	assert.Equal(t, [][]string{{"A", "B"}}, f.tracker.tracked)
	want := append(refs(models.EntityProduct, "A", "B"), models.EntityRef{Type: models.EntityRoutine, ID: "r1"})
	assert.Equal(t, [][]models.EntityRef{want}, f.scores.rescored)

	got, err := f.svc.Get(context.Background(), "u1", "r1")
	require.NoError(t, err)
	assert.Equal(t, "Wash day", got.Name)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input models.RoutineInput
	}{
		{"empty name", models.RoutineInput{Name: " ", Steps: input("A").Steps}},
		{"no steps", models.RoutineInput{Name: "x"}},
		{"missing product", models.RoutineInput{Name: "x", Steps: []models.RoutineStep{{Frequency: models.FrequencyDaily}}}},
		{"bad frequency", models.RoutineInput{Name: "x", Steps: []models.RoutineStep{{ProductID: "A", Frequency: "hourly"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Create(context.Background(), "u1", tt.input)
			assert.True(t, apperrors.IsValidation(err))
			assert.Empty(t, f.tracker.tracked)
		})
	}
}

func TestCreate_TrackFailureKeepsRoutine(t *testing.T) {
	f := newFixture(t)
	f.tracker.err = errors.New("batch failed")

	report, err := f.svc.Create(context.Background(), "u1", input("A"))
	require.NoError(t, err)
	assert.Empty(t, report.Tracked)
	require.Len(t, report.Warnings, 1)

	_, err = f.svc.Get(context.Background(), "u1", report.Routine.ID)
	assert.NoError(t, err)
}

// ==========================
// Update
// ==========================

func TestUpdate_TracksOnlyDeltas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, "u1", input("P1", "P2"))
	require.NoError(t, err)
	f.tracker.tracked = nil
	f.scores.rescored = nil

	report, err := f.svc.Update(ctx, "u1", created.Routine.ID, input("P2", "P3"))
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"P3"}}, f.tracker.tracked)
	assert.Equal(t, [][]string{{"P1"}}, f.tracker.untracked)
	want := append(refs(models.EntityProduct, "P3", "P1"), models.EntityRef{Type: models.EntityRoutine, ID: created.Routine.ID})
	assert.Equal(t, [][]models.EntityRef{want}, f.scores.rescored)
	assert.True(t, report.Routine.CreatedAt.Equal(created.Routine.CreatedAt))
}

func TestUpdate_Ownership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, "u1", input("A"))
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, "intruder", created.Routine.ID, input("B"))
	assert.True(t, apperrors.IsForbidden(err))

	_, err = f.svc.Update(ctx, "u1", "missing", input("B"))
	assert.True(t, apperrors.IsNotFound(err))
}

// ==========================
// Delete
// ==========================

func TestDelete_UntracksDistinctProductsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, "u1", input("A", "B", "A"))
	require.NoError(t, err)
	f.scores.rescored = nil

	report, err := f.svc.Delete(ctx, "u1", created.Routine.ID)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"A", "B"}}, f.tracker.untracked)
	assert.Equal(t, [][]models.EntityRef{refs(models.EntityProduct, "A", "B")}, f.scores.rescored)
	assert.Equal(t, refs(models.EntityRoutine, created.Routine.ID), f.scores.deleted)
	assert.NotNil(t, report.Routine.DeletedAt)

	_, err = f.svc.Get(ctx, "u1", created.Routine.ID)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = f.svc.Delete(ctx, "u1", created.Routine.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDelete_Forbidden(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), "u1", input("A"))
	require.NoError(t, err)

	_, err = f.svc.Delete(context.Background(), "u2", created.Routine.ID)
	assert.True(t, apperrors.IsForbidden(err))
	assert.Empty(t, f.tracker.untracked)
}

func TestDelete_KeepsProductsOfOtherRoutines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r1, err := f.svc.Create(ctx, "u1", input("A"))
	require.NoError(t, err)
	r2, err := f.svc.Create(ctx, "u1", input("A", "B"))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, "u2", input("A"))
	require.NoError(t, err)

	report, err := f.svc.Delete(ctx, "u1", r1.Routine.ID)
	require.NoError(t, err)
	assert.Empty(t, report.Untracked)
	assert.Empty(t, f.tracker.untracked)

	renamed := input("A", "B")
	renamed.Name = "Renamed"
	_, err = f.svc.Update(ctx, "u1", r2.Routine.ID, renamed)
	require.NoError(t, err)
	assert.True(t, f.tracker.active["u1/A"], "A is still used by a live routine")
	assert.True(t, f.tracker.active["u1/B"])

	report, err = f.svc.Delete(ctx, "u1", r2.Routine.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B"}, report.Untracked)
	assert.False(t, f.tracker.active["u1/A"])
	assert.True(t, f.tracker.active["u2/A"])
}

func TestUpdate_KeepsRemovedProductUsedElsewhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, "u1", input("A"))
	require.NoError(t, err)
	r2, err := f.svc.Create(ctx, "u1", input("A", "B"))
	require.NoError(t, err)

	report, err := f.svc.Update(ctx, "u1", r2.Routine.ID, input("C"))
	require.NoError(t, err)

	assert.Equal(t, []string{"B"}, report.Untracked)
	assert.Equal(t, [][]string{{"B"}}, f.tracker.untracked)
	assert.True(t, f.tracker.active["u1/A"])
	assert.False(t, f.tracker.active["u1/B"])
	assert.True(t, f.tracker.active["u1/C"])
}

func TestGet_Ownership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, "u1", input("A"))
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, "u2", created.Routine.ID)
	assert.True(t, apperrors.IsForbidden(err))

	_, err = f.svc.Get(ctx, "u1", "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestList_ExcludesDeletedAndOthers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.svc.Create(ctx, "u1", input("A"))
	b, _ := f.svc.Create(ctx, "u1", input("B"))
	_, _ = f.svc.Create(ctx, "u2", input("C"))
	_, err := f.svc.Delete(ctx, "u1", a.Routine.ID)
	require.NoError(t, err)

	list, err := f.svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.Routine.ID, list[0].ID)
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name          string
		prev, next    []string
		added, remove []string
	}{
		{"swap one", []string{"P1", "P2"}, []string{"P2", "P3"}, []string{"P3"}, []string{"P1"}},
		{"unchanged", []string{"A", "B"}, []string{"B", "A"}, []string{}, []string{}},
		{"duplicates", []string{"A", "A"}, []string{"B", "B"}, []string{"B"}, []string{"A"}},
		{"from empty", nil, []string{"A"}, []string{"A"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			added, removed := Diff(tt.prev, tt.next)
			assert.Equal(t, tt.added, added)
			assert.Equal(t, tt.remove, removed)
		})
	}
}

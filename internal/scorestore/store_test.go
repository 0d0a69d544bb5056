package scorestore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	apperrors "follicle-match/internal/common/errors"
	"follicle-match/internal/common/logger"
	"follicle-match/internal/docstore"
	"follicle-match/internal/models"
	"follicle-match/internal/scoring"
	"follicle-match/internal/users"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	analysisAt = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	before     = analysisAt.Add(-time.Hour)
	after      = analysisAt.Add(time.Hour)
)

type fakeComputer struct {
	fail  map[string]bool
	calls []models.EntityRef
}

func (f *fakeComputer) Compute(_ context.Context, _ *models.User, ref models.EntityRef) (scoring.Outcome, error) {
	f.calls = append(f.calls, ref)
	if f.fail[ref.ID] {
		return scoring.Outcome{}, apperrors.NewNotFoundError(string(ref.Type), ref.ID)
	}
	return scoring.Outcome{Score: models.MatchScore{
		EntityID: ref.ID, EntityType: ref.Type, TotalScore: 0.7,
		Breakdown:    models.ScoreBreakdown{ContentScore: 0.8, EngagementScore: 0.55},
		MatchReasons: []string{"Suited to 3A hair"},
	}}, nil
}

// queryHookStore runs afterQuery once, after the wrapped query has read
// its documents.
type queryHookStore struct {
	docstore.Store
	afterQuery func()
}

func (s *queryHookStore) Query(ctx context.Context, q docstore.Query) ([]docstore.Doc, error) {
	docs, err := s.Store.Query(ctx, q)
	if hook := s.afterQuery; hook != nil {
		s.afterQuery = nil
		hook()
	}
	return docs, err
}

type fakeCatalog struct {
	products    []models.Product
	ingredients []models.Ingredient
}

func (f fakeCatalog) Products(context.Context) ([]models.Product, error) { return f.products, nil }
func (f fakeCatalog) Ingredients(context.Context) ([]models.Ingredient, error) { return f.ingredients, nil }

type fixture struct {
	docs     *docstore.MemoryStore
	computer *fakeComputer
	store    *Store
	mr       *miniredis.Miniredis
}

func newFixture(t *testing.T, rdb redis.Cmdable) *fixture {
	t.Helper()
	docs := docstore.NewMemoryStore()
	log := logger.NewTestLogger(t)
	computer := &fakeComputer{fail: map[string]bool{}}
	cat := fakeCatalog{
		products:    []models.Product{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}},
		ingredients: []models.Ingredient{{ID: "i1"}},
	}
	store := NewStore(Dependencies{
		Docs:     docs,
		Users:    users.NewService(users.ServiceDependencies{Store: docs, Logger: log}),
		Pipeline: computer,
		Catalog:  cat,
		Redis:    rdb,
		Logger:   log,
	}, time.Minute).WithClock(func() time.Time { return after })
	return &fixture{docs: docs, computer: computer, store: store}
}

func newRedisFixture(t *testing.T) *fixture {
	mr := miniredis.RunT(t)
	f := newFixture(t, redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	f.mr = mr
	return f
}

func (f *fixture) completeAnalysis(t *testing.T, uid string) {
	require.NoError(t, f.docs.Merge(context.Background(), users.Collection, uid, map[string]interface{}{
		"follicleId":          "3A-HP-MD-CT-D2",
		"analysisCompletedAt": analysisAt,
	}))
}

func (f *fixture) putScore(t *testing.T, uid string, ref models.EntityRef, scoredAt time.Time) {
	require.NoError(t, f.docs.Set(context.Background(), Collection(uid, ref.Type), ref.ID, models.MatchScore{
		EntityID: ref.ID, EntityType: ref.Type, TotalScore: 0.6, ScoredAt: scoredAt, MatchReasons: []string{},
	}))
}

func product(id string) models.EntityRef { return models.EntityRef{Type: models.EntityProduct, ID: id} }

// ==========================
// ScoreAndPersist / GetScore
// ==========================

func TestScoreAndPersist(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()
	f.mr.Set(CacheKey("u1", product("p1")), `{"entityId":"p1"}`)

	score, err := f.store.ScoreAndPersist(ctx, "u1", product("p1"))
	require.NoError(t, err)
	assert.True(t, score.ScoredAt.Equal(after))
	assert.Equal(t, 0.7, score.TotalScore)

	raw, err := f.mr.Get(CacheKey("u1", product("p1")))
	require.NoError(t, err)
	var cached models.MatchScore
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Equal(t, 0.7, cached.TotalScore)
	assert.True(t, cached.ScoredAt.Equal(after))
	assert.Greater(t, f.mr.TTL(CacheKey("u1", product("p1"))), time.Duration(0))

	doc, err := f.docs.Get(ctx, "users/u1/productScores", "p1")
	require.NoError(t, err)
	var stored models.MatchScore
	require.NoError(t, doc.Decode(&stored))
	assert.Equal(t, "p1", stored.EntityID)
	assert.True(t, stored.ScoredAt.Equal(after))
}

func TestScoreAndPersist_ComputeFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.computer.fail["gone"] = true

	_, err := f.store.ScoreAndPersist(context.Background(), "u1", product("gone"))
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.docs.Get(context.Background(), Collection("u1", models.EntityProduct), "gone")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestGetScore(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.completeAnalysis(t, "u1")
	f.putScore(t, "u1", product("fresh"), after)
	f.putScore(t, "u1", product("old"), before)

	s, err := f.store.GetScore(ctx, "u1", product("fresh"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", s.EntityID)

	_, err = f.store.GetScore(ctx, "u1", product("old"))
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.store.GetScore(ctx, "u1", product("none"))
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDeleteScore(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()
	ref := models.EntityRef{Type: models.EntityRoutine, ID: "r1"}
	f.putScore(t, "u1", ref, after)
	f.mr.Set(CacheKey("u1", ref), "{}")

	require.NoError(t, f.store.DeleteScore(ctx, "u1", ref))
	_, err := f.store.GetScore(ctx, "u1", ref)
	assert.True(t, apperrors.IsNotFound(err))
	assert.False(t, f.mr.Exists(CacheKey("u1", ref)))
}

// ==========================
// GetBatchScores
// ==========================

func TestGetBatchScores(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()
	f.completeAnalysis(t, "u1")
	f.putScore(t, "u1", product("a"), after)
	f.putScore(t, "u1", product("b"), before)

	res, err := f.store.GetBatchScores(ctx, "u1", models.EntityProduct, []string{"a", "b", "c", "a"})
	require.NoError(t, err)
	assert.Len(t, res.Scores, 1)
	assert.Contains(t, res.Scores, "a")
	assert.Equal(t, []string{"b"}, res.Stale)
	assert.Equal(t, []string{"c"}, res.Missing)

	raw, err := f.mr.Get(CacheKey("u1", product("a")))
	require.NoError(t, err)
	var cached models.MatchScore
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Equal(t, "a", cached.EntityID)
	assert.Greater(t, f.mr.TTL(CacheKey("u1", product("a"))), time.Duration(0))

	// Served from redis once the document is gone.
	require.NoError(t, f.docs.Delete(ctx, Collection("u1", models.EntityProduct), "a"))
	res, err = f.store.GetBatchScores(ctx, "u1", models.EntityProduct, []string{"a"})
	require.NoError(t, err)
	assert.Contains(t, res.Scores, "a")
}

func TestGetBatchScores_FillKeepsConcurrentlyPersistedScore(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()
	f.completeAnalysis(t, "u1")
	f.putScore(t, "u1", product("p1"), after)

	f.store.docs = &queryHookStore{Store: f.docs, afterQuery: func() {
		_, err := f.store.ScoreAndPersist(ctx, "u1", product("p1"))
		require.NoError(t, err)
	}}

	res, err := f.store.GetBatchScores(ctx, "u1", models.EntityProduct, []string{"p1"})
	require.NoError(t, err)
	assert.Equal(t, 0.6, res.Scores["p1"].TotalScore)

	raw, err := f.mr.Get(CacheKey("u1", product("p1")))
	require.NoError(t, err)
	var cached models.MatchScore
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Equal(t, 0.7, cached.TotalScore, "older document copy must not replace the persisted score")
}

func TestGetBatchScores_StaleCacheEntryIsEvicted(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()
	f.completeAnalysis(t, "u1")

	raw, _ := json.Marshal(models.MatchScore{EntityID: "a", EntityType: models.EntityProduct, ScoredAt: before})
	f.mr.Set(CacheKey("u1", product("a")), string(raw))

	res, err := f.store.GetBatchScores(ctx, "u1", models.EntityProduct, []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, res.Scores)
	assert.Equal(t, []string{"a"}, res.Stale)
	assert.False(t, f.mr.Exists(CacheKey("u1", product("a"))))
}

func TestGetBatchScores_RedisFailureFallsBackToDocuments(t *testing.T) {
	db, mock := redismock.NewClientMock()
	f := newFixture(t, db)
	f.putScore(t, "u1", product("a"), after)

	mock.ExpectMGet(CacheKey("u1", product("a"))).SetErr(errors.New("connection refused"))

	res, err := f.store.GetBatchScores(context.Background(), "u1", models.EntityProduct, []string{"a"})
	require.NoError(t, err)
	assert.Contains(t, res.Scores, "a")
	assert.Empty(t, res.Missing)
}

func TestGetBatchScores_WithoutRedis(t *testing.T) {
	f := newFixture(t, nil)
	f.putScore(t, "u1", product("a"), after)

	res, err := f.store.GetBatchScores(context.Background(), "u1", models.EntityProduct, []string{"a", "z"})
	require.NoError(t, err)
	assert.Contains(t, res.Scores, "a")
	assert.Equal(t, []string{"z"}, res.Missing)
}

func TestGetBatchScores_UnknownType(t *testing.T) {
	_, err := newFixture(t, nil).store.GetBatchScores(context.Background(), "u1", "hat", []string{"a"})
	assert.True(t, apperrors.IsValidation(err))
}

// ==========================
// GetCompletionStatus
// ==========================

func TestGetCompletionStatus(t *testing.T) {
	tests := []struct {
		name       string
		analysis   bool
		scoredAt   []time.Time
		wantScored int
		complete   bool
		stale      bool
	}{
		{name: "nothing scored", analysis: true, wantScored: 0},
		{name: "no analysis counts everything", scoredAt: []time.Time{before, before}, wantScored: 2},
		{name: "newest predates analysis", analysis: true, scoredAt: []time.Time{before, before.Add(time.Minute)}, wantScored: 0, stale: true},
		{name: "partially rescored", analysis: true, scoredAt: []time.Time{before, after}, wantScored: 1},
		{name: "complete", analysis: true, scoredAt: []time.Time{after, after, after}, wantScored: 3, complete: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			if tt.analysis {
				f.completeAnalysis(t, "u1")
			}
			for i, at := range tt.scoredAt {
				f.putScore(t, "u1", product(string(rune('a'+i))), at)
			}

			st, err := f.store.GetCompletionStatus(context.Background(), "u1", models.EntityProduct)
			require.NoError(t, err)
			assert.Equal(t, 3, st.TotalCount)
			assert.Equal(t, tt.wantScored, st.ScoredCount)
			assert.Equal(t, tt.complete, st.IsComplete)
			assert.Equal(t, tt.stale, st.IsStale)
		})
	}
}

func TestGetCompletionStatus_RoutinesExcludeDeleted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	deleted := before
	require.NoError(t, f.docs.Set(ctx, scoring.RoutinesCollection, "r1", models.Routine{ID: "r1"}))
	require.NoError(t, f.docs.Set(ctx, scoring.RoutinesCollection, "r2", models.Routine{ID: "r2", DeletedAt: &deleted}))

	st, err := f.store.GetCompletionStatus(ctx, "u1", models.EntityRoutine)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalCount)
	assert.False(t, st.IsComplete)
}

// ==========================
// Rescore / ScoreAll
// ==========================

func TestRescore_IsolatesFailures(t *testing.T) {
	f := newFixture(t, nil)
	f.computer.fail["p2"] = true

	results := f.store.Rescore(context.Background(), "u1", []models.EntityRef{product("p1"), product("p2"), product("p3")})
	require.Len(t, results, 3)
	assert.Equal(t, models.RescoreOK, results[0].Outcome)
	assert.Equal(t, models.RescoreFailed, results[1].Outcome)
	assert.NotEmpty(t, results[1].Reason)
	assert.Equal(t, models.RescoreOK, results[2].Outcome)
}

func TestScoreAll_CompletesStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.completeAnalysis(t, "u1")

	results, err := f.store.ScoreAll(ctx, "u1", models.EntityProduct)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	st, err := f.store.GetCompletionStatus(ctx, "u1", models.EntityProduct)
	require.NoError(t, err)
	assert.True(t, st.IsComplete)
	assert.Equal(t, 3, st.ScoredCount)
}

func TestScoreAll_Routines(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	deleted := before
	require.NoError(t, f.docs.Set(ctx, scoring.RoutinesCollection, "r1", models.Routine{ID: "r1"}))
	require.NoError(t, f.docs.Set(ctx, scoring.RoutinesCollection, "r2", models.Routine{ID: "r2", DeletedAt: &deleted}))

	results, err := f.store.ScoreAll(ctx, "u1", models.EntityRoutine)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "r1", results[0].EntityID)
}

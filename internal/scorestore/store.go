// Package scorestore persists per-user match scores and serves them back:
// single reads, batch reads through a redis read cache, completion status
// against the latest hair analysis and sequential rescoring.
package scorestore

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"follicle-match/internal/common/errors"
	"follicle-match/internal/common/logger"
	"follicle-match/internal/common/metrics"
	"follicle-match/internal/common/observability"
	"follicle-match/internal/docstore"
	"follicle-match/internal/models"
	"follicle-match/internal/scoring"
	"follicle-match/internal/users"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultCacheTTL = 10 * time.Minute

type UserLoader interface {
	Get(ctx context.Context, userID string) (*models.User, error)
}

type Computer interface {
	Compute(ctx context.Context, user *models.User, ref models.EntityRef) (scoring.Outcome, error)
}

// Catalog lists the reference entities for totals and bulk scoring.
type Catalog interface {
	Products(ctx context.Context) ([]models.Product, error)
	Ingredients(ctx context.Context) ([]models.Ingredient, error)
}

type Dependencies struct {
	Docs          docstore.Store
	Users         UserLoader
	Pipeline      Computer
	Catalog       Catalog
	Redis         redis.Cmdable
	Observability *observability.Observability
	Logger        logger.Logger
}

type Store struct {
	docs     docstore.Store
	users    UserLoader
	pipeline Computer
	catalog  Catalog
	cache    *readCache
	obs      *observability.Observability
	logger   logger.Logger
	now      func() time.Time
}

func NewStore(deps Dependencies, cacheTTL time.Duration) *Store {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &Store{
		docs:     deps.Docs,
		users:    deps.Users,
		pipeline: deps.Pipeline,
		catalog:  deps.Catalog,
		cache:    &readCache{rdb: deps.Redis, ttl: cacheTTL},
		obs:      deps.Observability,
		logger:   deps.Logger,
		now:      time.Now,
	}
}

// WithClock overrides the clock stamped on persisted scores.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Collection is the score sub-collection of one user.
func Collection(userID string, et models.EntityType) string {
	return users.Collection + "/" + userID + "/" + et.ScoreCollection()
}

// ScoreAndPersist computes the score of ref for the user, stores it stamped
// with the current time and writes it through to the read cache.
func (s *Store) ScoreAndPersist(ctx context.Context, userID string, ref models.EntityRef) (*models.MatchScore, error) {
	ctx, span := observability.Tracer().Start(ctx, "scorestore.ScoreAndPersist", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("entity.type", string(ref.Type)),
		attribute.String("entity.id", ref.ID),
	))
	defer span.End()

	start := time.Now()
	score, err := s.scoreAndPersist(ctx, userID, ref)
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.ScoresComputed.WithLabelValues(string(ref.Type), outcome).Inc()
	metrics.ScoreDuration.WithLabelValues(string(ref.Type)).Observe(elapsed.Seconds())
	s.obs.RecordScore(ctx, string(ref.Type), elapsed, outcome)

	return score, err
}

func (s *Store) scoreAndPersist(ctx context.Context, userID string, ref models.EntityRef) (*models.MatchScore, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	out, err := s.pipeline.Compute(ctx, user, ref)
	if err != nil {
		return nil, err
	}

	score := out.Score
	score.ScoredAt = s.now().UTC()
	if err := s.docs.Set(ctx, Collection(userID, ref.Type), ref.ID, score); err != nil {
		return nil, errors.NewQueryExecutionFailedError("persist score", err)
	}

	if err := s.cache.put(ctx, userID, score); err != nil {
		s.logger.Warn("Failed to cache score, evicting", map[string]interface{}{
			"userId": userID,
			"entity": ref.String(),
			"error":  err.Error(),
		})
		_ = s.cache.evict(ctx, CacheKey(userID, ref))
	}
	return &score, nil
}

// GetScore reads the stored document directly. Missing and stale scores are
// NotFound.
func (s *Store) GetScore(ctx context.Context, userID string, ref models.EntityRef) (*models.MatchScore, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	doc, err := s.docs.Get(ctx, Collection(userID, ref.Type), ref.ID)
	if stderrors.Is(err, docstore.ErrNotFound) {
		return nil, errors.NewNotFoundError("score", ref.ID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get score", err)
	}

	var score models.MatchScore
	if err := doc.Decode(&score); err != nil {
		return nil, errors.NewInternalError(err)
	}
	if score.IsStale(user.AnalysisCompletedAt) {
		return nil, errors.NewNotFoundError("score", ref.ID).WithMetadata("stale", true)
	}
	return &score, nil
}

// DeleteScore removes a stored score and its cached copy.
func (s *Store) DeleteScore(ctx context.Context, userID string, ref models.EntityRef) error {
	if err := s.docs.Delete(ctx, Collection(userID, ref.Type), ref.ID); err != nil {
		return errors.NewQueryExecutionFailedError("delete score", err)
	}
	if err := s.cache.evict(ctx, CacheKey(userID, ref)); err != nil {
		s.logger.Warn("Failed to evict cached score", map[string]interface{}{
			"userId": userID,
			"entity": ref.String(),
			"error":  err.Error(),
		})
	}
	return nil
}

func validEntityType(et models.EntityType) error {
	switch et {
	case models.EntityProduct, models.EntityRoutine, models.EntityIngredient:
		return nil
	}
	return errors.NewValidationError(fmt.Sprintf("unknown entity type %q", et))
}

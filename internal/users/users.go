// Package users owns the user document: the hair analysis and the
// interaction cache arrays.
package users

import (
	"context"
	stderrors "errors"
	"time"

	"follicle-match/internal/common/errors"
	"follicle-match/internal/common/logger"
	"follicle-match/internal/docstore"
	"follicle-match/internal/follicle"
	"follicle-match/internal/models"
)

const Collection = "users"

// Dispatcher starts bulk scoring of one entity type for a user.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID string, entityType models.EntityType) error
}

// AnalysisScoredTypes are rescored in bulk after an analysis completes.
var AnalysisScoredTypes = []models.EntityType{models.EntityProduct, models.EntityRoutine}

type ServiceDependencies struct {
	Store      docstore.Store
	Dispatcher Dispatcher
	Logger     logger.Logger
}

type Service struct {
	store      docstore.Store
	dispatcher Dispatcher
	logger     logger.Logger
	now        func() time.Time
}

func NewService(deps ServiceDependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     log,
		now:        time.Now,
	}
}

// WithClock overrides the clock stamped on analyses.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithDispatcher sets the bulk dispatcher after construction. The local
// dispatcher depends on the score store, which loads users through s.
func (s *Service) WithDispatcher(d Dispatcher) *Service {
	s.dispatcher = d
	return s
}

// Get loads a user. Users without a document yet are returned empty.
func (s *Service) Get(ctx context.Context, userID string) (*models.User, error) {
	doc, err := s.store.Get(ctx, Collection, userID)
	if stderrors.Is(err, docstore.ErrNotFound) {
		return &models.User{ID: userID}, nil
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get user", err)
	}

	var u models.User
	if err := doc.Decode(&u); err != nil {
		return nil, errors.NewInternalError(err)
	}
	u.ID = userID
	return &u, nil
}

// ApplyInteractionDelta records the cache-array change for one interaction
// in b. Types without a cache array are ignored.
func ApplyInteractionDelta(b docstore.Batch, userID string, ref models.EntityRef, t models.InteractionType, added bool) {
	field, ok := models.CacheField(t, ref.Type)
	if !ok {
		return
	}
	value := docstore.ArrayRemove(ref.ID)
	if added {
		value = docstore.ArrayUnion(ref.ID)
	}
	b.Merge(Collection, userID, map[string]interface{}{field: value})
}

// AnalysisResult reports a completed analysis and the bulk jobs started.
type AnalysisResult struct {
	User       *models.User        `json:"user"`
	Dispatched []models.EntityType `json:"dispatched"`
	Failed     []models.EntityType `json:"failed,omitempty"`
}

// CompleteAnalysis stores the profile and its fingerprint and stamps
// analysisCompletedAt, which makes every earlier score stale. Bulk scoring
// is dispatched afterwards; dispatch failures are reported, not returned.
func (s *Service) CompleteAnalysis(ctx context.Context, userID string, profile models.HairProfile) (*AnalysisResult, error) {
	fp, err := follicle.Fingerprint(profile)
	if err != nil {
		return nil, err
	}

	completedAt := s.now().UTC()
	err = s.store.Merge(ctx, Collection, userID, map[string]interface{}{
		"hairProfile":         profile,
		"follicleId":          fp,
		"analysisCompletedAt": completedAt,
	})
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("complete analysis", err)
	}

	s.logger.Info("Hair analysis completed", map[string]interface{}{
		"userId":     userID,
		"follicleId": fp,
	})

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &AnalysisResult{User: user, Dispatched: []models.EntityType{}}
	if s.dispatcher == nil {
		return result, nil
	}
	for _, et := range AnalysisScoredTypes {
		if err := s.dispatcher.Dispatch(ctx, userID, et); err != nil {
			s.logger.Warn("Failed to dispatch bulk scoring", map[string]interface{}{
				"userId":     userID,
				"entityType": string(et),
				"error":      err.Error(),
			})
			result.Failed = append(result.Failed, et)
			continue
		}
		result.Dispatched = append(result.Dispatched, et)
	}
	return result, nil
}

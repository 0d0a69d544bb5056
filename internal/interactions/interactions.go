// Package interactions maintains the interaction ledger together with the
// user cache arrays, and rescores the touched entity after every change.
package interactions

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"follicle-match/internal/common/errors"
	"follicle-match/internal/common/logger"
	"follicle-match/internal/common/metrics"
	"follicle-match/internal/docstore"
	"follicle-match/internal/models"
	"follicle-match/internal/scoring/engagement"
	"follicle-match/internal/users"
)

const Collection = engagement.InteractionsCollection

type UserLoader interface {
	Get(ctx context.Context, userID string) (*models.User, error)
}

// EntityResolver reports NotFound for entities that do not exist.
type EntityResolver interface {
	Resolve(ctx context.Context, ref models.EntityRef) error
}

type Rescorer interface {
	Rescore(ctx context.Context, userID string, refs []models.EntityRef) []models.RescoreResult
}

type Outcome string

const (
	OutcomeCreated       Outcome = "created"
	OutcomeAlreadyExists Outcome = "already_exists"
	OutcomeDeleted       Outcome = "deleted"
)

// Result describes one ledger mutation.
type Result struct {
	Outcome     Outcome                `json:"outcome"`
	Interaction *models.Interaction    `json:"interaction,omitempty"`
	Replaced    models.InteractionType `json:"replaced,omitempty"`
	Rescored    []models.RescoreResult `json:"rescored"`
}

type ServiceDependencies struct {
	Store    docstore.Store
	Users    UserLoader
	Entities EntityResolver
	Rescorer Rescorer
	Logger   logger.Logger
}

type Service struct {
	store    docstore.Store
	users    UserLoader
	entities EntityResolver
	rescorer Rescorer
	logger   logger.Logger
	now      func() time.Time
}

func NewService(deps ServiceDependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		store:    deps.Store,
		users:    deps.Users,
		entities: deps.Entities,
		rescorer: deps.Rescorer,
		logger:   log,
		now:      time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Exists reports whether the user has recorded t on ref.
func (s *Service) Exists(ctx context.Context, userID string, ref models.EntityRef, t models.InteractionType) (bool, error) {
	_, err := s.store.Get(ctx, Collection, models.InteractionID(userID, ref, t))
	switch {
	case err == nil:
		return true, nil
	case stderrors.Is(err, docstore.ErrNotFound):
		return false, nil
	}
	return false, errors.NewQueryExecutionFailedError("get interaction", err)
}

// Create records t on ref. ref must resolve to an existing entity; a
// soft-deleted routine is NotFound. Recording an existing interaction is a
// no-op reported as OutcomeAlreadyExists. Likes and dislikes replace each
// other.
func (s *Service) Create(ctx context.Context, userID string, ref models.EntityRef, t models.InteractionType) (*Result, error) {
	if _, ok := models.ParseInteractionType(string(t)); !ok {
		return nil, errors.NewValidationError(fmt.Sprintf("unsupported interaction type %q", t))
	}
	if err := s.entities.Resolve(ctx, ref); err != nil {
		return nil, err
	}

	exists, err := s.Exists(ctx, userID, ref, t)
	if err != nil {
		return nil, err
	}
	if exists {
		return &Result{Outcome: OutcomeAlreadyExists, Rescored: []models.RescoreResult{}}, nil
	}

	var replace models.InteractionType
	if _, ok := t.Opposite(); ok {
		current, err := s.sentiment(ctx, userID, ref)
		if err != nil {
			return nil, err
		}
		replace = transition(current, t)
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	in := &models.Interaction{
		ID:         models.InteractionID(userID, ref, t),
		UserID:     userID,
		EntityID:   ref.ID,
		EntityType: ref.Type,
		Type:       t,
		FollicleID: user.FollicleID,
		CreatedAt:  s.now().UTC(),
	}

	err = s.store.RunBatch(ctx, func(b docstore.Batch) error {
		if replace != "" {
			b.Delete(Collection, models.InteractionID(userID, ref, replace))
			users.ApplyInteractionDelta(b, userID, ref, replace, false)
		}
		b.Set(Collection, in.ID, in)
		users.ApplyInteractionDelta(b, userID, ref, t, true)
		return nil
	})
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("create interaction", err)
	}

	metrics.InteractionsTotal.WithLabelValues(string(ref.Type), string(t), "create").Inc()
	if replace != "" {
		metrics.InteractionsTotal.WithLabelValues(string(ref.Type), string(replace), "replace").Inc()
	}
	s.logger.Info("Interaction created", map[string]interface{}{
		"userId":   userID,
		"entity":   ref.String(),
		"type":     string(t),
		"replaced": string(replace),
	})

	return &Result{
		Outcome:     OutcomeCreated,
		Interaction: in,
		Replaced:    replace,
		Rescored:    s.rescore(ctx, userID, ref),
	}, nil
}

// Delete removes t on ref. Missing interactions are NotFound.
func (s *Service) Delete(ctx context.Context, userID string, ref models.EntityRef, t models.InteractionType) (*Result, error) {
	exists, err := s.Exists(ctx, userID, ref, t)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NewNotFoundError("interaction", models.InteractionID(userID, ref, t))
	}

	err = s.store.RunBatch(ctx, func(b docstore.Batch) error {
		b.Delete(Collection, models.InteractionID(userID, ref, t))
		users.ApplyInteractionDelta(b, userID, ref, t, false)
		return nil
	})
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("delete interaction", err)
	}

	metrics.InteractionsTotal.WithLabelValues(string(ref.Type), string(t), "delete").Inc()
	s.logger.Info("Interaction deleted", map[string]interface{}{
		"userId": userID,
		"entity": ref.String(),
		"type":   string(t),
	})

	return &Result{Outcome: OutcomeDeleted, Rescored: s.rescore(ctx, userID, ref)}, nil
}

func (s *Service) rescore(ctx context.Context, userID string, ref models.EntityRef) []models.RescoreResult {
	if s.rescorer == nil {
		return []models.RescoreResult{}
	}
	return s.rescorer.Rescore(ctx, userID, []models.EntityRef{ref})
}

// sentiment derives the like/dislike state from the ledger.
func (s *Service) sentiment(ctx context.Context, userID string, ref models.EntityRef) (models.Sentiment, error) {
	liked, err := s.Exists(ctx, userID, ref, models.InteractionLike)
	if err != nil {
		return models.SentimentNone, err
	}
	if liked {
		return models.SentimentLiked, nil
	}
	disliked, err := s.Exists(ctx, userID, ref, models.InteractionDislike)
	if err != nil {
		return models.SentimentNone, err
	}
	if disliked {
		return models.SentimentDisliked, nil
	}
	return models.SentimentNone, nil
}

// transition returns the interaction type a new like or dislike replaces,
// or "" when nothing is replaced.
func transition(current models.Sentiment, t models.InteractionType) models.InteractionType {
	opposite, ok := t.Opposite()
	if !ok {
		return ""
	}
	if held, _ := models.SentimentOf(opposite); held == current {
		return opposite
	}
	return ""
}

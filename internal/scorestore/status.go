package scorestore

import (
	"context"

	"follicle-match/internal/common/errors"
	"follicle-match/internal/docstore"
	"follicle-match/internal/models"
	"follicle-match/internal/scoring"
)

// GetCompletionStatus reports how many entities of et hold a fresh score.
// When the newest score predates the latest analysis, every score is stale
// and the count is zero.
func (s *Store) GetCompletionStatus(ctx context.Context, userID string, et models.EntityType) (*models.CompletionStatus, error) {
	if err := validEntityType(et); err != nil {
		return nil, err
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	total, err := s.totalCount(ctx, et)
	if err != nil {
		return nil, err
	}

	status := &models.CompletionStatus{
		EntityType:          et,
		TotalCount:          total,
		AnalysisCompletedAt: user.AnalysisCompletedAt,
	}

	scores := docstore.Query{Collection: Collection(userID, et)}
	newest, err := s.docs.Query(ctx, docstore.Query{
		Collection: scores.Collection,
		OrderBy:    "scoredAt",
		Desc:       true,
		Limit:      1,
	})
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("newest score", err)
	}

	if len(newest) > 0 && user.AnalysisCompletedAt != nil {
		var latest models.MatchScore
		if err := newest[0].Decode(&latest); err != nil {
			return nil, errors.NewInternalError(err)
		}
		if latest.IsStale(user.AnalysisCompletedAt) {
			status.IsStale = true
			return status, nil
		}
	}

	if user.AnalysisCompletedAt != nil {
		scores = scores.Where("scoredAt", docstore.OpGte, *user.AnalysisCompletedAt)
	}
	scored, err := s.docs.Count(ctx, scores)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("count scores", err)
	}
	status.ScoredCount = scored
	status.IsComplete = scored >= total
	return status, nil
}

func (s *Store) totalCount(ctx context.Context, et models.EntityType) (int, error) {
	switch et {
	case models.EntityProduct:
		products, err := s.catalog.Products(ctx)
		return len(products), err
	case models.EntityIngredient:
		ingredients, err := s.catalog.Ingredients(ctx)
		return len(ingredients), err
	}
	n, err := s.docs.Count(ctx, liveRoutines())
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError("count routines", err)
	}
	return n, nil
}

func liveRoutines() docstore.Query {
	return docstore.Query{Collection: scoring.RoutinesCollection}.Where("deletedAt", docstore.OpEq, nil)
}

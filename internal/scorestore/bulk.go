package scorestore

import (
	"context"

	"follicle-match/internal/common/errors"
	"follicle-match/internal/models"
)

// Rescore scores each ref in turn. A failure is logged and reported for its
// item only.
func (s *Store) Rescore(ctx context.Context, userID string, refs []models.EntityRef) []models.RescoreResult {
	results := make([]models.RescoreResult, 0, len(refs))
	for _, ref := range refs {
		res := models.RescoreResult{EntityID: ref.ID, EntityType: ref.Type, Outcome: models.RescoreOK}
		if _, err := s.ScoreAndPersist(ctx, userID, ref); err != nil {
			s.logger.Warn("Rescore failed", map[string]interface{}{
				"userId": userID,
				"entity": ref.String(),
				"error":  err.Error(),
			})
			res.Outcome = models.RescoreFailed
			res.Reason = err.Error()
		}
		results = append(results, res)

		if ctx.Err() != nil {
			break
		}
	}
	return results
}

// ScoreAll rescores every entity of et for the user.
func (s *Store) ScoreAll(ctx context.Context, userID string, et models.EntityType) ([]models.RescoreResult, error) {
	if err := validEntityType(et); err != nil {
		return nil, err
	}
	ids, err := s.entityIDs(ctx, et)
	if err != nil {
		return nil, err
	}

	refs := make([]models.EntityRef, len(ids))
	for i, id := range ids {
		refs[i] = models.EntityRef{Type: et, ID: id}
	}

	s.logger.Info("Scoring all entities", map[string]interface{}{
		"userId":     userID,
		"entityType": string(et),
		"count":      len(refs),
	})
	return s.Rescore(ctx, userID, refs), nil
}

func (s *Store) entityIDs(ctx context.Context, et models.EntityType) ([]string, error) {
	var ids []string
	switch et {
	case models.EntityProduct:
		products, err := s.catalog.Products(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range products {
			ids = append(ids, p.ID)
		}
	case models.EntityIngredient:
		ingredients, err := s.catalog.Ingredients(ctx)
		if err != nil {
			return nil, err
		}
		for _, i := range ingredients {
			ids = append(ids, i.ID)
		}
	default:
		docs, err := s.docs.Query(ctx, liveRoutines())
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("list routines", err)
		}
		for _, d := range docs {
			ids = append(ids, d.ID)
		}
	}
	return ids, nil
}

package interactions

import (
	"context"

	"follicle-match/internal/common/errors"
	"follicle-match/internal/common/metrics"
	"follicle-match/internal/docstore"
	"follicle-match/internal/models"
)

// Track records a routine interaction on each product, in one batch.
func (s *Service) Track(ctx context.Context, userID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	now := s.now().UTC()

	err = s.store.RunBatch(ctx, func(b docstore.Batch) error {
		for _, id := range productIDs {
			ref := models.EntityRef{Type: models.EntityProduct, ID: id}
			in := models.Interaction{
				ID:         models.InteractionID(userID, ref, models.InteractionRoutine),
				UserID:     userID,
				EntityID:   id,
				EntityType: models.EntityProduct,
				Type:       models.InteractionRoutine,
				FollicleID: user.FollicleID,
				CreatedAt:  now,
			}
			b.Set(Collection, in.ID, in)
		}
		return nil
	})
	if err != nil {
		return errors.NewQueryExecutionFailedError("track routine products", err)
	}
	metrics.InteractionsTotal.WithLabelValues(string(models.EntityProduct), string(models.InteractionRoutine), "create").
		Add(float64(len(productIDs)))
	return nil
}

// Untrack removes the routine interaction of each product, in one batch.
func (s *Service) Untrack(ctx context.Context, userID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	err := s.store.RunBatch(ctx, func(b docstore.Batch) error {
		for _, id := range productIDs {
			ref := models.EntityRef{Type: models.EntityProduct, ID: id}
			b.Delete(Collection, models.InteractionID(userID, ref, models.InteractionRoutine))
		}
		return nil
	})
	if err != nil {
		return errors.NewQueryExecutionFailedError("untrack routine products", err)
	}
	metrics.InteractionsTotal.WithLabelValues(string(models.EntityProduct), string(models.InteractionRoutine), "delete").
		Add(float64(len(productIDs)))
	return nil
}

package scorestore

import (
	"context"

	"follicle-match/internal/common/errors"
	"follicle-match/internal/docstore"
	"follicle-match/internal/models"
)

// GetBatchScores reads many scores of one entity type. Redis is consulted
// first; misses fall through to the document store and fill the empty keys.
// Stale scores are never returned.
func (s *Store) GetBatchScores(ctx context.Context, userID string, et models.EntityType, ids []string) (*models.BatchScores, error) {
	if err := validEntityType(et); err != nil {
		return nil, err
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids = dedupe(ids)
	result := &models.BatchScores{
		Scores:  make(map[string]models.MatchScore, len(ids)),
		Missing: []string{},
		Stale:   []string{},
	}
	if len(ids) == 0 {
		return result, nil
	}

	stale := map[string]bool{}
	var staleKeys []string

	cached, err := s.cache.getMany(ctx, userID, et, ids)
	if err != nil {
		s.logger.Warn("Score cache read failed, reading documents", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
	}
	for id, score := range cached {
		if score.IsStale(user.AnalysisCompletedAt) {
			stale[id] = true
			staleKeys = append(staleKeys, CacheKey(userID, models.EntityRef{Type: et, ID: id}))
			continue
		}
		result.Scores[id] = score
	}

	var misses []string
	for _, id := range ids {
		if _, ok := result.Scores[id]; !ok && !stale[id] {
			misses = append(misses, id)
		}
	}

	var writeBack []models.MatchScore
	if len(misses) > 0 {
		docs, err := s.docs.Query(ctx, docstore.Query{Collection: Collection(userID, et)}.
			Where("entityId", docstore.OpIn, misses))
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("batch scores", err)
		}
		for _, d := range docs {
			var score models.MatchScore
			if err := d.Decode(&score); err != nil {
				return nil, errors.NewInternalError(err)
			}
			if score.IsStale(user.AnalysisCompletedAt) {
				stale[d.ID] = true
				continue
			}
			result.Scores[d.ID] = score
			writeBack = append(writeBack, score)
		}
	}

	for _, id := range ids {
		switch {
		case stale[id]:
			result.Stale = append(result.Stale, id)
		case !hasScore(result, id):
			result.Missing = append(result.Missing, id)
		}
	}

	if err := s.cache.fill(ctx, userID, writeBack); err != nil {
		s.logger.Warn("Score cache write-back failed", map[string]interface{}{
			"userId": userID,
			"count":  len(writeBack),
			"error":  err.Error(),
		})
	}
	if err := s.cache.evict(ctx, staleKeys...); err != nil {
		s.logger.Warn("Failed to evict stale cached scores", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
	}
	return result, nil
}

func hasScore(b *models.BatchScores, id string) bool {
	_, ok := b.Scores[id]
	return ok
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

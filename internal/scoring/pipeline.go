// Package scoring computes a user's match score for one entity by running
// the content and engagement scorers and composing their results.
package scoring

import (
	"context"
	stderrors "errors"

	"follicle-match/internal/common/errors"
	"follicle-match/internal/docstore"
	"follicle-match/internal/models"
	"follicle-match/internal/scoring/compose"
	"follicle-match/internal/scoring/content"
	"follicle-match/internal/scoring/engagement"
)

// Catalog resolves reference entities.
type Catalog interface {
	Product(ctx context.Context, id string) (models.Product, error)
	Ingredient(ctx context.Context, id string) (models.Ingredient, error)
}

// RoutinesCollection holds routine documents.
const RoutinesCollection = "routines"

type Pipeline struct {
	catalog    Catalog
	docs       docstore.Store
	engagement *engagement.Scorer
	weights    compose.Weights
	maxReasons int
}

func NewPipeline(catalog Catalog, docs docstore.Store, eng *engagement.Scorer, weights compose.Weights, maxReasons int) *Pipeline {
	return &Pipeline{
		catalog:    catalog,
		docs:       docs,
		engagement: eng,
		weights:    weights,
		maxReasons: maxReasons,
	}
}

// Outcome is a computed, not yet persisted, score.
type Outcome struct {
	Score      models.MatchScore
	Engagement engagement.Result
}

// Compute resolves ref and scores it for user. ScoredAt is left zero.
func (p *Pipeline) Compute(ctx context.Context, user *models.User, ref models.EntityRef) (Outcome, error) {
	prof := content.ProfileFor(user)

	var (
		contentRes content.Result
		summary    *models.ScoreSummary
	)
	switch ref.Type {
	case models.EntityProduct:
		product, err := p.catalog.Product(ctx, ref.ID)
		if err != nil {
			return Outcome{}, err
		}
		contentRes = content.ScoreProduct(product, prof, p.ingredientName(ctx))
		summary = &models.ScoreSummary{Name: product.Name, Brand: product.Brand, ImageURL: product.ImageURL}

	case models.EntityIngredient:
		ingredient, err := p.catalog.Ingredient(ctx, ref.ID)
		if err != nil {
			return Outcome{}, err
		}
		contentRes = content.ScoreIngredient(ingredient, prof)
		summary = &models.ScoreSummary{Name: ingredient.Name}

	case models.EntityRoutine:
		routine, err := p.routine(ctx, ref.ID)
		if err != nil {
			return Outcome{}, err
		}
		contentRes = p.scoreRoutine(ctx, routine, prof)
		summary = &models.ScoreSummary{Name: routine.Name, StepCount: len(routine.Steps)}

	default:
		return Outcome{}, errors.NewValidationError("unknown entity type " + string(ref.Type))
	}

	eng := p.engagement.Score(ctx, ref, user.ID, user.FollicleID)
	composed := compose.Compose(contentRes.Score, eng.Score, p.weights)

	return Outcome{
		Score: models.MatchScore{
			EntityID:     ref.ID,
			EntityType:   ref.Type,
			TotalScore:   composed.TotalScore,
			Breakdown:    composed.Breakdown,
			MatchReasons: compose.Reasons(eng.Reasons, contentRes.Reasons, p.maxReasons),
			Summary:      summary,
		},
		Engagement: eng,
	}, nil
}

// Resolve reports whether ref names an existing entity: a catalog product or
// ingredient, or a live routine.
func (p *Pipeline) Resolve(ctx context.Context, ref models.EntityRef) error {
	switch ref.Type {
	case models.EntityProduct:
		_, err := p.catalog.Product(ctx, ref.ID)
		return err
	case models.EntityIngredient:
		_, err := p.catalog.Ingredient(ctx, ref.ID)
		return err
	case models.EntityRoutine:
		_, err := p.routine(ctx, ref.ID)
		if err != nil && !errors.IsNotFound(err) {
			return errors.NewQueryExecutionFailedError("resolve routine", err)
		}
		return err
	}
	return errors.NewValidationError("unknown entity type " + string(ref.Type))
}

// scoreRoutine averages over distinct products. Products missing from the
// catalog are skipped.
func (p *Pipeline) scoreRoutine(ctx context.Context, r *models.Routine, prof content.Profile) content.Result {
	names := p.ingredientName(ctx)
	var results []content.Result
	for _, id := range r.ProductIDs() {
		product, err := p.catalog.Product(ctx, id)
		if err != nil {
			continue
		}
		results = append(results, content.ScoreProduct(product, prof, names))
	}
	return content.ScoreRoutine(results)
}

func (p *Pipeline) ingredientName(ctx context.Context) content.NameFunc {
	return func(id string) string {
		ing, err := p.catalog.Ingredient(ctx, id)
		if err != nil {
			return ""
		}
		return ing.Name
	}
}

// routine loads a live routine; soft-deleted routines are NotFound.
func (p *Pipeline) routine(ctx context.Context, id string) (*models.Routine, error) {
	doc, err := p.docs.Get(ctx, RoutinesCollection, id)
	if stderrors.Is(err, docstore.ErrNotFound) {
		return nil, errors.NewNotFoundError("routine", id)
	}
	if err != nil {
		return nil, err
	}
	var r models.Routine
	if err := doc.Decode(&r); err != nil {
		return nil, errors.NewInternalError(err)
	}
	if r.Deleted() {
		return nil, errors.NewNotFoundError("routine", id)
	}
	return &r, nil
}

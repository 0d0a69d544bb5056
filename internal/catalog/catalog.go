// Package catalog serves the product and ingredient reference collections
// through an in-memory cache.
package catalog

import (
	"context"
	"time"

	"follicle-match/internal/common/errors"
	"follicle-match/internal/models"
	"follicle-match/internal/refcache"
)

// Source loads the full reference collections.
type Source interface {
	Products(ctx context.Context) ([]models.Product, error)
	Ingredients(ctx context.Context) ([]models.Ingredient, error)
}

type productIndex struct {
	list []models.Product
	byID map[string]models.Product
}

type ingredientIndex struct {
	list []models.Ingredient
	byID map[string]models.Ingredient
}

type Service struct {
	source      Source
	products    refcache.Getter[*productIndex]
	ingredients refcache.Getter[*ingredientIndex]
}

// Options selects caching. A zero TTL uses refcache.DefaultTTL; Disabled
// bypasses the cache entirely.
type Options struct {
	TTL      time.Duration
	Disabled bool
}

func NewService(source Source, opts Options) *Service {
	s := &Service{source: source}
	if opts.Disabled {
		s.products = refcache.Noop[*productIndex]{}
		s.ingredients = refcache.Noop[*ingredientIndex]{}
		return s
	}
	s.products = refcache.New[*productIndex]("catalog_products", opts.TTL)
	s.ingredients = refcache.New[*ingredientIndex]("catalog_ingredients", opts.TTL)
	return s
}

func (s *Service) productIndex(ctx context.Context) (*productIndex, error) {
	return s.products.Get(ctx, "products", func(ctx context.Context) (*productIndex, error) {
		list, err := s.source.Products(ctx)
		if err != nil {
			return nil, err
		}
		idx := &productIndex{list: list, byID: make(map[string]models.Product, len(list))}
		for _, p := range list {
			idx.byID[p.ID] = p
		}
		return idx, nil
	})
}

func (s *Service) ingredientIndex(ctx context.Context) (*ingredientIndex, error) {
	return s.ingredients.Get(ctx, "ingredients", func(ctx context.Context) (*ingredientIndex, error) {
		list, err := s.source.Ingredients(ctx)
		if err != nil {
			return nil, err
		}
		idx := &ingredientIndex{list: list, byID: make(map[string]models.Ingredient, len(list))}
		for _, i := range list {
			idx.byID[i.ID] = i
		}
		return idx, nil
	})
}

func (s *Service) Products(ctx context.Context) ([]models.Product, error) {
	idx, err := s.productIndex(ctx)
	if err != nil {
		return nil, err
	}
	return idx.list, nil
}

func (s *Service) Ingredients(ctx context.Context) ([]models.Ingredient, error) {
	idx, err := s.ingredientIndex(ctx)
	if err != nil {
		return nil, err
	}
	return idx.list, nil
}

func (s *Service) Product(ctx context.Context, id string) (models.Product, error) {
	idx, err := s.productIndex(ctx)
	if err != nil {
		return models.Product{}, err
	}
	p, ok := idx.byID[id]
	if !ok {
		return models.Product{}, errors.NewNotFoundError("product", id)
	}
	return p, nil
}

func (s *Service) Ingredient(ctx context.Context, id string) (models.Ingredient, error) {
	idx, err := s.ingredientIndex(ctx)
	if err != nil {
		return models.Ingredient{}, err
	}
	i, ok := idx.byID[id]
	if !ok {
		return models.Ingredient{}, errors.NewNotFoundError("ingredient", id)
	}
	return i, nil
}

// Invalidate drops both cached collections.
func (s *Service) Invalidate() {
	s.products.Invalidate("products")
	s.ingredients.Invalidate("ingredients")
}

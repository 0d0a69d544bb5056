package catalog

import (
	"context"

	"follicle-match/internal/docstore"
	"follicle-match/internal/models"
)

// DocstoreSource reads the "products" and "ingredients" collections.
type DocstoreSource struct {
	store docstore.Store
}

func NewDocstoreSource(store docstore.Store) *DocstoreSource {
	return &DocstoreSource{store: store}
}

func (s *DocstoreSource) Products(ctx context.Context) ([]models.Product, error) {
	return loadAll[models.Product](ctx, s.store, models.EntityProduct.Collection())
}

func (s *DocstoreSource) Ingredients(ctx context.Context) ([]models.Ingredient, error) {
	return loadAll[models.Ingredient](ctx, s.store, models.EntityIngredient.Collection())
}

func loadAll[T any](ctx context.Context, store docstore.Store, collection string) ([]T, error) {
	docs, err := store.Query(ctx, docstore.Query{Collection: collection})
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := d.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

package engagement

import (
	"context"

	"follicle-match/internal/docstore"
	"follicle-match/internal/models"
)

// InteractionsCollection holds the interaction ledger.
const InteractionsCollection = "interactions"

// DocstoreReader samples the newest interactions on an entity by createdAt.
type DocstoreReader struct {
	store docstore.Store
}

func NewDocstoreReader(store docstore.Store) *DocstoreReader {
	return &DocstoreReader{store: store}
}

func (r *DocstoreReader) RecentInteractions(ctx context.Context, ref models.EntityRef, limit int) ([]models.Interaction, error) {
	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: InteractionsCollection,
		OrderBy:    "createdAt",
		Desc:       true,
		Limit:      limit,
	}.Where("entityType", docstore.OpEq, string(ref.Type)).
		Where("entityId", docstore.OpEq, ref.ID))
	if err != nil {
		return nil, err
	}

	out := make([]models.Interaction, 0, len(docs))
	for _, d := range docs {
		var in models.Interaction
		if err := d.Decode(&in); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

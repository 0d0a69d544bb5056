package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"follicle-match/internal/common/errors"
	"follicle-match/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// maxCatalogSize bounds a single match_all read.
const maxCatalogSize = 10000

// ElasticsearchSource reads the catalog from search indices.
type ElasticsearchSource struct {
	client          *elasticsearch.Client
	productIndex    string
	ingredientIndex string
}

func NewElasticsearchSource(client *elasticsearch.Client, productIndex, ingredientIndex string) *ElasticsearchSource {
	return &ElasticsearchSource{
		client:          client,
		productIndex:    productIndex,
		ingredientIndex: ingredientIndex,
	}
}

func (s *ElasticsearchSource) Products(ctx context.Context) ([]models.Product, error) {
	return searchAll[models.Product](ctx, s.client, s.productIndex)
}

func (s *ElasticsearchSource) Ingredients(ctx context.Context) ([]models.Ingredient, error) {
	return searchAll[models.Ingredient](ctx, s.client, s.ingredientIndex)
}

type searchResponse[T any] struct {
	Hits struct {
		Hits []struct {
			ID     string `json:"_id"`
			Source T      `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func searchAll[T any](ctx context.Context, client *elasticsearch.Client, index string) ([]T, error) {
	body, err := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		"size":  maxCatalogSize,
	})
	if err != nil {
		return nil, err
	}

	req := esapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, client)
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.NewSearchQueryFailedError(index, fmt.Errorf("status %s", res.Status()))
	}

	var parsed searchResponse[T]
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewSearchQueryFailedError(index, fmt.Errorf("decode: %w", err))
	}

	out := make([]T, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

// internal/models/catalog.go
package models

// Product is a reference product. Empty attribute lists mean "unspecified".
type Product struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Brand         string   `json:"brand,omitempty"`
	Category      string   `json:"category,omitempty"`
	ImageURL      string   `json:"imageUrl,omitempty"`
	IngredientIDs []string `json:"ingredientIds,omitempty"`
	HairTypes     []string `json:"hairTypes,omitempty"`
	Porosities    []string `json:"porosities,omitempty"`
	Thickness     []string `json:"thickness,omitempty"`
	DamageLevels  []string `json:"damageLevels,omitempty"`
}

type Ingredient struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Category   string   `json:"category,omitempty"`
	HairTypes  []string `json:"hairTypes,omitempty"`
	Porosities []string `json:"porosities,omitempty"`
	Cautions   []string `json:"cautions,omitempty"`
}

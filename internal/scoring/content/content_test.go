package content

import (
	"testing"

	"follicle-match/internal/models"

	"github.com/stretchr/testify/assert"
)

func testProfile() Profile {
	return ProfileFor(&models.User{
		HairProfile: &models.HairProfile{
			HairType: "3A", Porosity: "high", Density: "medium", Thickness: "coarse", Damage: "moderate",
		},
		AllergicIngredients: []string{"ing-nut"},
		AvoidedIngredients:  []string{"ing-sulfate"},
	})
}

func TestScoreProduct(t *testing.T) {
	names := func(id string) string {
		return map[string]string{"ing-nut": "Almond Oil"}[id]
	}

	tests := []struct {
		name    string
		product models.Product
		want    float64
		reason  string
	}{
		{
			name: "perfect fit",
			product: models.Product{HairTypes: []string{"3A"}, Porosities: []string{"high"},
				DamageLevels: []string{"moderate"}, Thickness: []string{"coarse"}},
			want:   1.0,
			reason: "Made for 3A hair",
		},
		{
			name:    "unspecified attributes are neutral",
			product: models.Product{},
			want:    0.5,
		},
		{
			name:    "same family",
			product: models.Product{HairTypes: []string{"3C"}, Porosities: []string{"low"}},
			want:    0.35*0.7 + 0.30*0.3 + 0.20*0.5 + 0.15*0.5,
			reason:  "Suits type 3 hair",
		},
		{
			name:    "different family",
			product: models.Product{HairTypes: []string{"1"}, DamageLevels: []string{"none"}, Thickness: []string{"fine"}},
			want:    0.35*0.2 + 0.30*0.5 + 0.20*0.4 + 0.15*0.4,
		},
		{
			name: "allergic ingredient",
			product: models.Product{HairTypes: []string{"3A"}, Porosities: []string{"high"},
				DamageLevels: []string{"moderate"}, Thickness: []string{"coarse"}, IngredientIDs: []string{"water", "ing-nut"}},
			want:   0.1,
			reason: "Contains Almond Oil, which you're allergic to",
		},
		{
			name:    "avoided ingredient",
			product: models.Product{IngredientIDs: []string{"ing-sulfate"}},
			want:    0.3,
			reason:  "Contains ing-sulfate, which you avoid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ScoreProduct(tt.product, testProfile(), names)
			assert.InDelta(t, tt.want, res.Score, 1e-9)
			if tt.reason != "" {
				assert.Contains(t, res.Reasons, tt.reason)
			}
		})
	}
}

func TestScoreProduct_NoHairProfile(t *testing.T) {
	res := ScoreProduct(models.Product{HairTypes: []string{"4C"}}, Profile{}, nil)
	assert.Equal(t, 0.5, res.Score)
	assert.Empty(t, res.Reasons)
}

func TestScoreIngredient(t *testing.T) {
	prof := testProfile()

	res := ScoreIngredient(models.Ingredient{ID: "ing-shea", HairTypes: []string{"3A"}, Porosities: []string{"high"}}, prof)
	assert.Equal(t, 1.0, res.Score)

	res = ScoreIngredient(models.Ingredient{ID: "ing-nut", HairTypes: []string{"3A"}}, prof)
	assert.Equal(t, 0.0, res.Score)
	assert.Equal(t, []string{"You're allergic to this ingredient"}, res.Reasons)

	res = ScoreIngredient(models.Ingredient{ID: "ing-sulfate", HairTypes: []string{"3A"}, Porosities: []string{"high"}}, prof)
	assert.Equal(t, 0.5, res.Score)
	assert.Equal(t, "You avoid this ingredient", res.Reasons[0])
}

func TestScoreRoutine(t *testing.T) {
	assert.Equal(t, Result{Score: 0.5, Reasons: []string{}}, ScoreRoutine(nil))

	res := ScoreRoutine([]Result{
		{Score: 1.0},
		{Score: 0.4},
		{Score: 0.1, Reasons: []string{"Contains Almond Oil, which you're allergic to"}},
	})
	assert.InDelta(t, 0.5, res.Score, 1e-9)
	assert.Equal(t, []string{
		"Includes a product with an ingredient you're allergic to",
		"1 of 3 products match your hair profile",
	}, res.Reasons)
}

package compose

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompose(t *testing.T) {
	res := Compose(1.0, 0.5, DefaultWeights())
	assert.InDelta(t, 0.8, res.TotalScore, 1e-9)
	assert.Equal(t, 1.0, res.Breakdown.ContentScore)
	assert.Equal(t, 0.5, res.Breakdown.EngagementScore)
}

func TestCompose_AlwaysInRange(t *testing.T) {
	steps := []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1}
	for _, c := range steps {
		for _, e := range steps {
			total := Compose(c, e, DefaultWeights()).TotalScore
			assert.GreaterOrEqual(t, total, 0.0)
			assert.LessOrEqual(t, total, 1.0)
		}
	}

	assert.Equal(t, 1.0, Compose(5, 5, DefaultWeights()).TotalScore)
	assert.Equal(t, 0.0, Compose(-1, math.NaN(), DefaultWeights()).TotalScore)
}

func TestCompose_NormalizesWeights(t *testing.T) {
	res := Compose(1, 0, Weights{Content: 3, Engagement: 2})
	assert.InDelta(t, 0.6, res.TotalScore, 1e-9)

	res = Compose(1, 0, Weights{})
	assert.InDelta(t, 0.6, res.TotalScore, 1e-9)
}

func TestReasons(t *testing.T) {
	got := Reasons(
		[]string{"3 people with identical hair liked this", "Made for 3A hair"},
		[]string{"Made for 3A hair", "Suited to high porosity hair", "a", "b", "c"},
		5,
	)

	assert.Equal(t, []string{
		"3 people with identical hair liked this",
		"Made for 3A hair",
		"Suited to high porosity hair",
		"a",
		"b",
	}, got)
}

func TestReasons_Empty(t *testing.T) {
	assert.Empty(t, Reasons(nil, nil, 5))
}

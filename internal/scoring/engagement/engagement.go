// Package engagement turns the interaction history of an entity into a
// community score, weighting each interaction by how similar the actor's hair
// is to the requester's.
package engagement

import (
	"context"
	"fmt"

	"follicle-match/internal/common/errors"
	"follicle-match/internal/common/logger"
	"follicle-match/internal/common/metrics"
	"follicle-match/internal/follicle"
	"follicle-match/internal/models"
)

// NeutralScore is returned when there is not enough evidence.
const NeutralScore = 0.5

// Weights per interaction type. The natural range is [-1, 1].
var Weights = map[models.InteractionType]float64{
	models.InteractionLike:     1.0,
	models.InteractionSave:     0.8,
	models.InteractionRoutine:  0.6,
	models.InteractionView:     0.2,
	models.InteractionDislike:  -0.8,
	models.InteractionAvoid:    -1.0,
	models.InteractionAllergic: -1.0,
}

// Reader returns the most recent interactions on an entity, newest first.
type Reader interface {
	RecentInteractions(ctx context.Context, ref models.EntityRef, limit int) ([]models.Interaction, error)
}

type Config struct {
	SampleCap     int
	MinSimilarity float64
	MinSample     int
	MaxReasons    int
}

func DefaultConfig() Config {
	return Config{SampleCap: 100, MinSimilarity: 0.5, MinSample: 3, MaxReasons: 3}
}

// Buckets counts retained interactions per similarity band and type.
type Buckets map[follicle.Band]map[models.InteractionType]int

func (b Buckets) add(band follicle.Band, t models.InteractionType) {
	if b[band] == nil {
		b[band] = map[models.InteractionType]int{}
	}
	b[band][t]++
}

// Count returns the number of interactions of type t in band.
func (b Buckets) Count(band follicle.Band, t models.InteractionType) int {
	return b[band][t]
}

type Result struct {
	Score   float64
	Reasons []string
	// Sample is the number of interactions above the similarity threshold.
	Sample   int
	Buckets  Buckets
	Degraded bool
}

func neutral() Result {
	return Result{Score: NeutralScore, Reasons: []string{}, Buckets: Buckets{}}
}

type Scorer struct {
	reader Reader
	cfg    Config
	logger logger.Logger
}

func NewScorer(reader Reader, cfg Config, log logger.Logger) *Scorer {
	return &Scorer{reader: reader, cfg: cfg, logger: log}
}

// Score never fails. Read errors yield a neutral, degraded result.
func (s *Scorer) Score(ctx context.Context, ref models.EntityRef, requesterID, fingerprint string) Result {
	if fingerprint == "" {
		return neutral()
	}

	interactions, err := s.reader.RecentInteractions(ctx, ref, s.cfg.SampleCap)
	if err != nil {
		metrics.EngagementDegraded.Inc()
		s.logger.Warn("engagement read failed, using neutral score", map[string]interface{}{
			"entity": ref.String(),
			"error":  errors.NewDegradedError("engagement", err),
		})
		r := neutral()
		r.Degraded = true
		return r
	}

	return s.aggregate(interactions, requesterID, fingerprint)
}

func (s *Scorer) aggregate(interactions []models.Interaction, requesterID, fingerprint string) Result {
	result := neutral()

	var sumWeighted, sumSimilarity float64
	for _, in := range interactions {
		if in.UserID == requesterID || in.FollicleID == "" {
			continue
		}
		weight, ok := Weights[in.Type]
		if !ok {
			continue
		}
		sim := follicle.Similarity(fingerprint, in.FollicleID)
		if sim < s.cfg.MinSimilarity {
			continue
		}

		sumWeighted += weight * sim
		sumSimilarity += sim
		result.Sample++
		result.Buckets.add(follicle.BandOf(sim), in.Type)
	}

	if result.Sample == 0 || result.Sample < s.cfg.MinSample || sumSimilarity == 0 {
		return result
	}

	avg := sumWeighted / sumSimilarity
	result.Score = clamp((avg + 1) / 2)
	result.Reasons = reasons(result.Buckets, s.cfg.MaxReasons)
	return result
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

var bandOrder = []follicle.Band{follicle.BandExact, follicle.BandVeryHigh, follicle.BandHigh, follicle.BandMedium}

// Positive signals come before negative ones within a band. Views carry no
// reason.
var reasonOrder = []struct {
	typ  models.InteractionType
	verb string
}{
	{models.InteractionLike, "liked this"},
	{models.InteractionSave, "saved this"},
	{models.InteractionRoutine, "use this in a routine"},
	{models.InteractionDislike, "disliked this"},
	{models.InteractionAvoid, "avoid this"},
	{models.InteractionAllergic, "reported an allergy to this"},
}

func reasons(b Buckets, max int) []string {
	out := []string{}
	for _, band := range bandOrder {
		for _, r := range reasonOrder {
			if len(out) >= max {
				return out
			}
			n := b.Count(band, r.typ)
			if n == 0 {
				continue
			}
			out = append(out, fmt.Sprintf("%s with %s %s", people(n), band.Phrase(), r.verb))
		}
	}
	return out
}

func people(n int) string {
	if n == 1 {
		return "1 person"
	}
	return fmt.Sprintf("%d people", n)
}

// Package content scores entities on their intrinsic attributes against a
// user's hair profile, independent of community data.
package content

import (
	"fmt"
	"strings"

	"follicle-match/internal/follicle"
	"follicle-match/internal/models"
)

const (
	NeutralScore = 0.5

	hairTypeWeight  = 0.35
	porosityWeight  = 0.30
	damageWeight    = 0.20
	thicknessWeight = 0.15

	allergicPenalty = 0.1
	avoidedPenalty  = 0.6
)

// Profile is what content scoring needs to know about a user.
type Profile struct {
	Hair                *models.HairProfile
	AllergicIngredients map[string]struct{}
	AvoidedIngredients  map[string]struct{}
}

func ProfileFor(u *models.User) Profile {
	p := Profile{
		AllergicIngredients: toSet(u.AllergicIngredients),
		AvoidedIngredients:  toSet(u.AvoidedIngredients),
	}
	if u.HairProfile != nil {
		hp := *u.HairProfile
		p.Hair = &hp
	}
	return p
}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

type Result struct {
	Score   float64
	Reasons []string
}

// NameFunc resolves an ingredient id to a display name.
type NameFunc func(id string) string

// ScoreProduct blends hair type, porosity, damage and thickness fit, then
// applies ingredient penalties.
func ScoreProduct(p models.Product, prof Profile, name NameFunc) Result {
	res := Result{Score: NeutralScore, Reasons: []string{}}

	if h := prof.Hair; h != nil {
		typeScore, typeReason := hairTypeFit(p.HairTypes, h.HairType)
		porosity := listFit(p.Porosities, h.Porosity, 0.3)
		damage := listFit(p.DamageLevels, h.Damage, 0.4)
		thickness := listFit(p.Thickness, h.Thickness, 0.4)

		res.Score = hairTypeWeight*typeScore +
			porosityWeight*porosity +
			damageWeight*damage +
			thicknessWeight*thickness

		if typeReason != "" {
			res.Reasons = append(res.Reasons, typeReason)
		}
		if porosity == 1 {
			res.Reasons = append(res.Reasons, fmt.Sprintf("Suited to %s porosity hair", strings.ToLower(h.Porosity)))
		}
		if damage == 1 && !strings.EqualFold(h.Damage, "none") {
			res.Reasons = append(res.Reasons, fmt.Sprintf("Addresses %s damage", strings.ToLower(h.Damage)))
		}
		if thickness == 1 {
			res.Reasons = append(res.Reasons, fmt.Sprintf("Works with %s strands", strings.ToLower(h.Thickness)))
		}
	}

	if id, ok := firstIn(p.IngredientIDs, prof.AllergicIngredients); ok {
		res.Score *= allergicPenalty
		res.Reasons = append([]string{fmt.Sprintf("Contains %s, which you're allergic to", display(name, id))}, res.Reasons...)
	}
	if id, ok := firstIn(p.IngredientIDs, prof.AvoidedIngredients); ok {
		res.Score *= avoidedPenalty
		res.Reasons = append(res.Reasons, fmt.Sprintf("Contains %s, which you avoid", display(name, id)))
	}

	res.Score = clamp(res.Score)
	return res
}

// ScoreIngredient rates hair type and porosity fit equally. Allergies zero
// the score, avoidance halves it.
func ScoreIngredient(i models.Ingredient, prof Profile) Result {
	res := Result{Score: NeutralScore, Reasons: []string{}}

	if h := prof.Hair; h != nil {
		typeScore, typeReason := hairTypeFit(i.HairTypes, h.HairType)
		porosity := listFit(i.Porosities, h.Porosity, 0.3)
		res.Score = 0.5*typeScore + 0.5*porosity
		if typeReason != "" {
			res.Reasons = append(res.Reasons, typeReason)
		}
		if porosity == 1 {
			res.Reasons = append(res.Reasons, fmt.Sprintf("Suited to %s porosity hair", strings.ToLower(h.Porosity)))
		}
	}

	if _, ok := prof.AllergicIngredients[i.ID]; ok {
		return Result{Score: 0, Reasons: []string{"You're allergic to this ingredient"}}
	}
	if _, ok := prof.AvoidedIngredients[i.ID]; ok {
		res.Score /= 2
		res.Reasons = append([]string{"You avoid this ingredient"}, res.Reasons...)
	}

	res.Score = clamp(res.Score)
	return res
}

// ScoreRoutine averages the scores of the distinct products that resolved.
// matched counts products scoring at least 0.7.
func ScoreRoutine(products []Result) Result {
	if len(products) == 0 {
		return Result{Score: NeutralScore, Reasons: []string{}}
	}

	var sum float64
	matched := 0
	warn := ""
	for _, p := range products {
		sum += p.Score
		if p.Score >= 0.7 {
			matched++
		}
		for _, r := range p.Reasons {
			if warn == "" && strings.HasSuffix(r, "you're allergic to") {
				warn = "Includes a product with an ingredient you're allergic to"
			}
		}
	}

	res := Result{Score: clamp(sum / float64(len(products))), Reasons: []string{}}
	if warn != "" {
		res.Reasons = append(res.Reasons, warn)
	}
	if matched > 0 {
		res.Reasons = append(res.Reasons, fmt.Sprintf("%d of %d products match your hair profile", matched, len(products)))
	}
	return res
}

func hairTypeFit(types []string, userType string) (float64, string) {
	if len(types) == 0 {
		return NeutralScore, ""
	}
	want := follicle.HairType(userType)
	family := follicle.Family(want)
	best := 0.2
	for _, t := range types {
		switch {
		case follicle.HairType(t) == want:
			return 1.0, fmt.Sprintf("Made for %s hair", want)
		case family != "" && follicle.Family(t) == family:
			best = 0.7
		}
	}
	if best == 0.7 {
		return best, fmt.Sprintf("Suits type %s hair", family)
	}
	return best, ""
}

func listFit(values []string, want string, miss float64) float64 {
	if len(values) == 0 {
		return NeutralScore
	}
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return 1
		}
	}
	return miss
}

func firstIn(ids []string, set map[string]struct{}) (string, bool) {
	for _, id := range ids {
		if _, ok := set[id]; ok {
			return id, true
		}
	}
	return "", false
}

func display(name NameFunc, id string) string {
	if name != nil {
		if n := name(id); n != "" {
			return n
		}
	}
	return id
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

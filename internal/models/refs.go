// internal/models/refs.go
package models

import "strings"

// EntityType names a scorable entity kind.
type EntityType string

const (
	EntityProduct    EntityType = "product"
	EntityRoutine    EntityType = "routine"
	EntityIngredient EntityType = "ingredient"
)

var EntityTypes = []EntityType{EntityProduct, EntityRoutine, EntityIngredient}

// ParseEntityType accepts the singular or plural form.
func ParseEntityType(s string) (EntityType, bool) {
	s = strings.TrimSuffix(strings.ToLower(s), "s")
	switch EntityType(s) {
	case EntityProduct, EntityRoutine, EntityIngredient:
		return EntityType(s), true
	}
	return "", false
}

// Collection is the document store collection holding entities of this type.
func (t EntityType) Collection() string {
	return string(t) + "s"
}

// ScoreCollection is the per-user sub-collection name, e.g. "productScores".
func (t EntityType) ScoreCollection() string {
	return string(t) + "Scores"
}

// EntityRef identifies one scorable entity.
type EntityRef struct {
	Type EntityType `json:"entityType"`
	ID   string     `json:"entityId"`
}

func (r EntityRef) String() string {
	return string(r.Type) + "/" + r.ID
}

// internal/models/interaction.go
package models

import (
	"strings"
	"time"
)

type InteractionType string

const (
	InteractionLike     InteractionType = "like"
	InteractionDislike  InteractionType = "dislike"
	InteractionSave     InteractionType = "save"
	InteractionAvoid    InteractionType = "avoid"
	InteractionAllergic InteractionType = "allergic"
	InteractionView     InteractionType = "view"
	// InteractionRoutine is recorded for products used in a routine. It is
	// written by the routines service only.
	InteractionRoutine InteractionType = "routine"
)

// ParseInteractionType accepts the user-facing types. "routine" is rejected.
func ParseInteractionType(s string) (InteractionType, bool) {
	switch t := InteractionType(s); t {
	case InteractionLike, InteractionDislike, InteractionSave,
		InteractionAvoid, InteractionAllergic, InteractionView:
		return t, true
	}
	return "", false
}

// Opposite returns the mutually exclusive counterpart of like/dislike.
func (t InteractionType) Opposite() (InteractionType, bool) {
	switch t {
	case InteractionLike:
		return InteractionDislike, true
	case InteractionDislike:
		return InteractionLike, true
	}
	return "", false
}

var cacheVerbs = map[InteractionType]string{
	InteractionLike:     "liked",
	InteractionDislike:  "disliked",
	InteractionSave:     "saved",
	InteractionAvoid:    "avoided",
	InteractionAllergic: "allergic",
}

// CacheField names the user document array mirroring this interaction, e.g.
// "likedProducts". view and routine interactions have none.
func CacheField(t InteractionType, et EntityType) (string, bool) {
	verb, ok := cacheVerbs[t]
	if !ok {
		return "", false
	}
	plural := et.Collection()
	return verb + strings.ToUpper(plural[:1]) + plural[1:], true
}

// InteractionID is deterministic so duplicate creates land on one record.
func InteractionID(userID string, ref EntityRef, t InteractionType) string {
	return userID + "_" + string(ref.Type) + "_" + ref.ID + "_" + string(t)
}

type Interaction struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	EntityID   string          `json:"entityId"`
	EntityType EntityType      `json:"entityType"`
	Type       InteractionType `json:"type"`
	FollicleID string          `json:"follicleId"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Sentiment is the like/dislike state of one user towards one entity.
type Sentiment string

const (
	SentimentNone     Sentiment = "none"
	SentimentLiked    Sentiment = "liked"
	SentimentDisliked Sentiment = "disliked"
)

// SentimentOf maps like/dislike to their sentiment.
func SentimentOf(t InteractionType) (Sentiment, bool) {
	switch t {
	case InteractionLike:
		return SentimentLiked, true
	case InteractionDislike:
		return SentimentDisliked, true
	}
	return SentimentNone, false
}

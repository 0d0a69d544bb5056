// internal/models/user.go
package models

import "time"

// User is the user document. The cache arrays mirror the interaction ledger
// and are only written together with it.
type User struct {
	ID                  string       `json:"id"`
	FollicleID          string       `json:"follicleId,omitempty"`
	HairProfile         *HairProfile `json:"hairProfile,omitempty"`
	AnalysisCompletedAt *time.Time   `json:"analysisCompletedAt,omitempty"`

	LikedProducts    []string `json:"likedProducts,omitempty"`
	DislikedProducts []string `json:"dislikedProducts,omitempty"`
	SavedProducts    []string `json:"savedProducts,omitempty"`
	AvoidedProducts  []string `json:"avoidedProducts,omitempty"`
	AllergicProducts []string `json:"allergicProducts,omitempty"`

	LikedRoutines    []string `json:"likedRoutines,omitempty"`
	DislikedRoutines []string `json:"dislikedRoutines,omitempty"`
	SavedRoutines    []string `json:"savedRoutines,omitempty"`
	AvoidedRoutines  []string `json:"avoidedRoutines,omitempty"`
	AllergicRoutines []string `json:"allergicRoutines,omitempty"`

	LikedIngredients    []string `json:"likedIngredients,omitempty"`
	DislikedIngredients []string `json:"dislikedIngredients,omitempty"`
	SavedIngredients    []string `json:"savedIngredients,omitempty"`
	AvoidedIngredients  []string `json:"avoidedIngredients,omitempty"`
	AllergicIngredients []string `json:"allergicIngredients,omitempty"`
}

// HasAnalysis reports whether a hair analysis has been completed.
func (u *User) HasAnalysis() bool {
	return u != nil && u.FollicleID != "" && u.AnalysisCompletedAt != nil
}

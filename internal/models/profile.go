// internal/models/profile.go
package models

// HairProfile is the five-attribute result of a hair analysis.
type HairProfile struct {
	HairType  string `json:"hairType"`
	Porosity  string `json:"porosity"`
	Density   string `json:"density"`
	Thickness string `json:"thickness"`
	Damage    string `json:"damage"`
}

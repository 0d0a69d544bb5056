// internal/models/routine.go
package models

import (
	"sort"
	"time"
)

type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyEveryWash Frequency = "every_wash"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyAsNeeded  Frequency = "as_needed"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyEveryWash, FrequencyWeekly,
		FrequencyBiweekly, FrequencyMonthly, FrequencyAsNeeded:
		return true
	}
	return false
}

type RoutineStep struct {
	ProductID string    `json:"productId"`
	Order     int       `json:"order"`
	Frequency Frequency `json:"frequency"`
	Notes     string    `json:"notes,omitempty"`
}

type Routine struct {
	ID          string        `json:"id"`
	UserID      string        `json:"userId"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Steps       []RoutineStep `json:"steps"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	DeletedAt   *time.Time    `json:"deletedAt"`
}

func (r *Routine) Deleted() bool {
	return r.DeletedAt != nil
}

// ProductIDs returns the distinct product ids in step order.
func (r *Routine) ProductIDs() []string {
	seen := make(map[string]struct{}, len(r.Steps))
	out := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		if _, ok := seen[s.ProductID]; ok {
			continue
		}
		seen[s.ProductID] = struct{}{}
		out = append(out, s.ProductID)
	}
	return out
}

// NormalizeSteps stable-sorts by Order and renumbers 0..n-1.
func NormalizeSteps(steps []RoutineStep) []RoutineStep {
	out := make([]RoutineStep, len(steps))
	copy(out, steps)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	for i := range out {
		out[i].Order = i
	}
	return out
}

// RoutineInput is the client payload for create and update.
type RoutineInput struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Steps       []RoutineStep `json:"steps"`
}

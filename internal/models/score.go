// internal/models/score.go
package models

import "time"

type ScoreBreakdown struct {
	ContentScore    float64 `json:"contentScore"`
	EngagementScore float64 `json:"engagementScore"`
}

// ScoreSummary is denormalized display data stored with a score.
type ScoreSummary struct {
	Name      string `json:"name,omitempty"`
	Brand     string `json:"brand,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
	StepCount int    `json:"stepCount,omitempty"`
}

// MatchScore is stored at users/{uid}/{entityType}Scores/{entityId}.
type MatchScore struct {
	EntityID     string         `json:"entityId"`
	EntityType   EntityType     `json:"entityType"`
	TotalScore   float64        `json:"totalScore"`
	Breakdown    ScoreBreakdown `json:"breakdown"`
	MatchReasons []string       `json:"matchReasons"`
	ScoredAt     time.Time      `json:"scoredAt"`
	Summary      *ScoreSummary  `json:"summary,omitempty"`
}

// IsStale reports whether the score predates the user's latest analysis.
func (s *MatchScore) IsStale(analysisCompletedAt *time.Time) bool {
	return analysisCompletedAt != nil && s.ScoredAt.Before(*analysisCompletedAt)
}

type CompletionStatus struct {
	EntityType          EntityType `json:"entityType"`
	TotalCount          int        `json:"totalCount"`
	ScoredCount         int        `json:"scoredCount"`
	IsComplete          bool       `json:"isComplete"`
	IsStale             bool       `json:"isStale"`
	AnalysisCompletedAt *time.Time `json:"analysisCompletedAt,omitempty"`
}

type BatchScores struct {
	Scores  map[string]MatchScore `json:"scores"`
	Missing []string              `json:"missing"`
	Stale   []string              `json:"stale"`
}

type RescoreOutcome string

const (
	RescoreOK     RescoreOutcome = "ok"
	RescoreFailed RescoreOutcome = "failed"
)

type RescoreResult struct {
	EntityID   string         `json:"entityId"`
	EntityType EntityType     `json:"entityType"`
	Outcome    RescoreOutcome `json:"outcome"`
	Reason     string         `json:"reason,omitempty"`
}

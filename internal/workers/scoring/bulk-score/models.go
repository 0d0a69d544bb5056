// internal/workers/scoring/bulk-score/models.go
package bulkscore

import "follicle-match/internal/models"

// Input is the process variable set of a bulk scoring job.
type Input struct {
	UserID     string `json:"userId"`
	EntityType string `json:"entityType"`
}

type Output struct {
	EntityType models.EntityType `json:"entityType"`
	Total      int               `json:"total"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	FailedIDs  []string          `json:"failedIds,omitempty"`
}

// Package routines manages user routines and keeps the routine interactions
// on their products in step with the routine's product set.
package routines

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"follicle-match/internal/common/errors"
	"follicle-match/internal/common/logger"
	"follicle-match/internal/docstore"
	"follicle-match/internal/models"
	"follicle-match/internal/scoring"

	"github.com/google/uuid"
)

const Collection = scoring.RoutinesCollection

// Tracker records routine interactions on products.
type Tracker interface {
	Track(ctx context.Context, userID string, productIDs []string) error
	Untrack(ctx context.Context, userID string, productIDs []string) error
}

type Scores interface {
	Rescore(ctx context.Context, userID string, refs []models.EntityRef) []models.RescoreResult
	DeleteScore(ctx context.Context, userID string, ref models.EntityRef) error
}

// MutationReport describes the follow-up work of a routine write. The
// routine itself is always persisted when a report is returned.
type MutationReport struct {
	Routine   *models.Routine        `json:"routine"`
	Tracked   []string               `json:"tracked"`
	Untracked []string               `json:"untracked"`
	Rescored  []models.RescoreResult `json:"rescored"`
	Warnings  []string               `json:"warnings,omitempty"`
}

type ServiceDependencies struct {
	Store   docstore.Store
	Tracker Tracker
	Scores  Scores
	Logger  logger.Logger
}

type Service struct {
	store   docstore.Store
	tracker Tracker
	scores  Scores
	logger  logger.Logger
	now     func() time.Time
	newID   func() string
}

func NewService(deps ServiceDependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		store:   deps.Store,
		tracker: deps.Tracker,
		scores:  deps.Scores,
		logger:  log,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Get returns a live routine owned by userID. Routines of other users are
// Forbidden.
func (s *Service) Get(ctx context.Context, userID, routineID string) (*models.Routine, error) {
	r, err := s.load(ctx, routineID)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, errors.NewForbiddenError(fmt.Sprintf("routine %s belongs to another user", routineID))
	}
	return r, nil
}

func (s *Service) load(ctx context.Context, routineID string) (*models.Routine, error) {
	doc, err := s.store.Get(ctx, Collection, routineID)
	if stderrors.Is(err, docstore.ErrNotFound) {
		return nil, errors.NewNotFoundError("routine", routineID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get routine", err)
	}
	var r models.Routine
	if err := doc.Decode(&r); err != nil {
		return nil, errors.NewInternalError(err)
	}
	if r.Deleted() {
		return nil, errors.NewNotFoundError("routine", routineID)
	}
	return &r, nil
}

// List returns the user's live routines, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]models.Routine, error) {
	docs, err := s.store.Query(ctx, docstore.Query{
		Collection: Collection,
		OrderBy:    "createdAt",
		Desc:       true,
	}.Where("userId", docstore.OpEq, userID).
		Where("deletedAt", docstore.OpEq, nil))
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list routines", err)
	}

	out := make([]models.Routine, 0, len(docs))
	for _, d := range docs {
		var r models.Routine
		if err := d.Decode(&r); err != nil {
			return nil, errors.NewInternalError(err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, userID string, input models.RoutineInput) (*MutationReport, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	r := &models.Routine{
		ID:          s.newID(),
		UserID:      userID,
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Steps:       models.NormalizeSteps(input.Steps),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Set(ctx, Collection, r.ID, r); err != nil {
		return nil, errors.NewQueryExecutionFailedError("create routine", err)
	}

	s.logger.Info("Routine created", map[string]interface{}{
		"userId":    userID,
		"routineId": r.ID,
		"steps":     len(r.Steps),
	})

	report := &MutationReport{Routine: r, Tracked: []string{}, Untracked: []string{}}
	products := r.ProductIDs()
	s.track(ctx, report, userID, products)
	s.rescore(ctx, report, userID, r.ID, products)
	return report, nil
}

func (s *Service) Update(ctx context.Context, userID, routineID string, input models.RoutineInput) (*MutationReport, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	existing, err := s.Get(ctx, userID, routineID)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.Name = strings.TrimSpace(input.Name)
	updated.Description = input.Description
	updated.Steps = models.NormalizeSteps(input.Steps)
	updated.UpdatedAt = s.now().UTC()

	if err := s.store.Set(ctx, Collection, routineID, &updated); err != nil {
		return nil, errors.NewQueryExecutionFailedError("update routine", err)
	}

	added, removed := Diff(existing.ProductIDs(), updated.ProductIDs())
	s.logger.Info("Routine updated", map[string]interface{}{
		"userId":    userID,
		"routineId": routineID,
		"added":     added,
		"removed":   removed,
	})

	report := &MutationReport{Routine: &updated, Tracked: []string{}, Untracked: []string{}}
	s.track(ctx, report, userID, added)
	s.untrack(ctx, report, userID, routineID, removed)
	s.rescore(ctx, report, userID, routineID, append(append([]string{}, added...), removed...))
	return report, nil
}

// Delete soft-deletes the routine, untracks each of its distinct products
// not used by another live routine and drops the owner's score for it.
func (s *Service) Delete(ctx context.Context, userID, routineID string) (*MutationReport, error) {
	existing, err := s.Get(ctx, userID, routineID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	err = s.store.Merge(ctx, Collection, routineID, map[string]interface{}{
		"deletedAt": now,
		"updatedAt": now,
	})
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("delete routine", err)
	}
	existing.DeletedAt = &now
	existing.UpdatedAt = now

	s.logger.Info("Routine deleted", map[string]interface{}{
		"userId":    userID,
		"routineId": routineID,
	})

	report := &MutationReport{Routine: existing, Tracked: []string{}, Untracked: []string{}, Rescored: []models.RescoreResult{}}
	products := existing.ProductIDs()
	s.untrack(ctx, report, userID, routineID, products)
	if len(products) > 0 {
		report.Rescored = s.scores.Rescore(ctx, userID, productRefs(products))
	}

	routineRef := models.EntityRef{Type: models.EntityRoutine, ID: routineID}
	if err := s.scores.DeleteScore(ctx, userID, routineRef); err != nil {
		report.Warnings = append(report.Warnings, "routine score not removed: "+err.Error())
	}
	return report, nil
}

func (s *Service) track(ctx context.Context, report *MutationReport, userID string, ids []string) {
	if len(ids) == 0 {
		return
	}
	if err := s.tracker.Track(ctx, userID, ids); err != nil {
		s.warn(report, "track routine products", err)
		return
	}
	report.Tracked = append(report.Tracked, ids...)
}

// untrack removes the routine interaction of the given products, skipping
// any product still used by another live routine of the same user.
func (s *Service) untrack(ctx context.Context, report *MutationReport, userID, routineID string, ids []string) {
	if len(ids) == 0 {
		return
	}
	ids, err := s.unshared(ctx, userID, routineID, ids)
	if err != nil {
		s.warn(report, "untrack routine products", err)
		return
	}
	if len(ids) == 0 {
		return
	}
	if err := s.tracker.Untrack(ctx, userID, ids); err != nil {
		s.warn(report, "untrack routine products", err)
		return
	}
	report.Untracked = append(report.Untracked, ids...)
}

// unshared drops the ids referenced by the user's live routines other than
// routineID.
func (s *Service) unshared(ctx context.Context, userID, routineID string, ids []string) ([]string, error) {
	others, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	used := map[string]struct{}{}
	for _, r := range others {
		if r.ID == routineID {
			continue
		}
		for _, id := range r.ProductIDs() {
			used[id] = struct{}{}
		}
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := used[id]; !ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// rescore refreshes the given products and the routine itself.
func (s *Service) rescore(ctx context.Context, report *MutationReport, userID, routineID string, products []string) {
	refs := append(productRefs(products), models.EntityRef{Type: models.EntityRoutine, ID: routineID})
	report.Rescored = s.scores.Rescore(ctx, userID, refs)
}

func (s *Service) warn(report *MutationReport, action string, err error) {
	s.logger.Warn("Routine follow-up failed", map[string]interface{}{
		"routineId": report.Routine.ID,
		"action":    action,
		"error":     err.Error(),
	})
	report.Warnings = append(report.Warnings, action+": "+err.Error())
}

func productRefs(ids []string) []models.EntityRef {
	refs := make([]models.EntityRef, len(ids))
	for i, id := range ids {
		refs[i] = models.EntityRef{Type: models.EntityProduct, ID: id}
	}
	return refs
}

// Diff compares two product sets: added = next - prev, removed = prev - next,
// each in first-seen order and free of duplicates.
func Diff(prev, next []string) (added, removed []string) {
	prevSet := toSet(prev)
	nextSet := toSet(next)
	added = []string{}
	removed = []string{}

	seen := map[string]struct{}{}
	for _, id := range next {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := prevSet[id]; !ok {
			added = append(added, id)
		}
	}
	seen = map[string]struct{}{}
	for _, id := range prev {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := nextSet[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func validateInput(in models.RoutineInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.NewValidationError("name is required")
	}
	if len(in.Steps) == 0 {
		return errors.NewValidationError("at least one step is required")
	}
	for i, step := range in.Steps {
		if step.ProductID == "" {
			return errors.NewValidationError(fmt.Sprintf("steps[%d].productId is required", i))
		}
		if !step.Frequency.Valid() {
			return errors.NewValidationError(fmt.Sprintf("steps[%d].frequency %q is not supported", i, step.Frequency))
		}
	}
	return nil
}

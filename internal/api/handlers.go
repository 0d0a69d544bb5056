package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	apperrors "follicle-match/internal/common/errors"
	"follicle-match/internal/common/logger"
	"follicle-match/internal/common/validation"
	"follicle-match/internal/interactions"
	"follicle-match/internal/models"
	"follicle-match/internal/routines"
	"follicle-match/internal/users"

	"github.com/gin-gonic/gin"
)

const maxBatchIDs = 200

type InteractionService interface {
	Create(ctx context.Context, userID string, ref models.EntityRef, t models.InteractionType) (*interactions.Result, error)
	Delete(ctx context.Context, userID string, ref models.EntityRef, t models.InteractionType) (*interactions.Result, error)
	Exists(ctx context.Context, userID string, ref models.EntityRef, t models.InteractionType) (bool, error)
}

type ScoreService interface {
	ScoreAndPersist(ctx context.Context, userID string, ref models.EntityRef) (*models.MatchScore, error)
	GetScore(ctx context.Context, userID string, ref models.EntityRef) (*models.MatchScore, error)
	GetBatchScores(ctx context.Context, userID string, et models.EntityType, ids []string) (*models.BatchScores, error)
	GetCompletionStatus(ctx context.Context, userID string, et models.EntityType) (*models.CompletionStatus, error)
}

type RoutineService interface {
	Create(ctx context.Context, userID string, input models.RoutineInput) (*routines.MutationReport, error)
	Update(ctx context.Context, userID, routineID string, input models.RoutineInput) (*routines.MutationReport, error)
	Delete(ctx context.Context, userID, routineID string) (*routines.MutationReport, error)
	Get(ctx context.Context, userID, routineID string) (*models.Routine, error)
	List(ctx context.Context, userID string) ([]models.Routine, error)
}

type ProfileService interface {
	Get(ctx context.Context, userID string) (*models.User, error)
	CompleteAnalysis(ctx context.Context, userID string, profile models.HairProfile) (*users.AnalysisResult, error)
}

// Handler serves the scoring API. Every route runs behind RequireAuth.
type Handler struct {
	interactions InteractionService
	scores       ScoreService
	routines     RoutineService
	profiles     ProfileService
	bulk         users.Dispatcher
	errs         *apperrors.ErrorHandler
	logger       logger.Logger
}

type HandlerDependencies struct {
	Interactions InteractionService
	Scores       ScoreService
	Routines     RoutineService
	Profiles     ProfileService
	Bulk         users.Dispatcher
	Logger       logger.Logger
}

func NewHandler(deps HandlerDependencies) *Handler {
	return &Handler{
		interactions: deps.Interactions,
		scores:       deps.Scores,
		routines:     deps.Routines,
		profiles:     deps.Profiles,
		bulk:         deps.Bulk,
		errs:         apperrors.NewErrorHandler(deps.Logger),
		logger:       deps.Logger,
	}
}

// ==========================
// Interactions
// ==========================

func (h *Handler) interactionParams(c *gin.Context) (models.EntityRef, models.InteractionType, error) {
	et, ok := models.ParseEntityType(c.Param("entityType"))
	if !ok {
		return models.EntityRef{}, "", apperrors.NewValidationError(fmt.Sprintf("unknown entity type %q", c.Param("entityType")))
	}
	t, ok := models.ParseInteractionType(c.Param("type"))
	if !ok {
		return models.EntityRef{}, "", apperrors.NewValidationError(fmt.Sprintf("unknown interaction type %q", c.Param("type")))
	}
	id := strings.TrimSpace(c.Param("entityId"))
	if id == "" {
		return models.EntityRef{}, "", apperrors.NewValidationError("entityId is required")
	}
	return models.EntityRef{Type: et, ID: id}, t, nil
}

func (h *Handler) GetInteraction(c *gin.Context) {
	ref, t, err := h.interactionParams(c)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	exists, err := h.interactions.Exists(c.Request.Context(), currentUser(c), ref, t)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	respondOK(c, gin.H{"exists": exists, "entityType": ref.Type, "entityId": ref.ID, "type": t})
}

func (h *Handler) CreateInteraction(c *gin.Context) {
	ref, t, err := h.interactionParams(c)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	res, err := h.interactions.Create(c.Request.Context(), currentUser(c), ref, t)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	status := http.StatusOK
	if res.Outcome == interactions.OutcomeAlreadyExists {
		status = http.StatusAlreadyReported
	}
	respond(c, status, res)
}

func (h *Handler) DeleteInteraction(c *gin.Context) {
	ref, t, err := h.interactionParams(c)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	res, err := h.interactions.Delete(c.Request.Context(), currentUser(c), ref, t)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	respondOK(c, res)
}

// ==========================
// Scores
// ==========================

// GetScore serves the stored score, computing it when missing or stale.
func (h *Handler) GetScore(et models.EntityType) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		userID := currentUser(c)
		ref := models.EntityRef{Type: et, ID: c.Param("id")}

		score, err := h.scores.GetScore(ctx, userID, ref)
		computed := false
		if apperrors.IsNotFound(err) {
			score, err = h.scores.ScoreAndPersist(ctx, userID, ref)
			computed = true
		}
		if err != nil {
			h.errs.Respond(c, err)
			return
		}
		respondOK(c, gin.H{"score": score, "computed": computed})
	}
}

func (h *Handler) CompletionStatus(et models.EntityType) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := h.scores.GetCompletionStatus(c.Request.Context(), currentUser(c), et)
		if err != nil {
			h.errs.Respond(c, err)
			return
		}
		respondOK(c, status)
	}
}

func (h *Handler) BatchScores(et models.EntityType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var ids []string
		for _, id := range strings.Split(c.Query("ids"), ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		switch {
		case len(ids) == 0:
			h.errs.Respond(c, apperrors.NewValidationError("ids query parameter is required"))
			return
		case len(ids) > maxBatchIDs:
			h.errs.Respond(c, apperrors.NewValidationError(fmt.Sprintf("at most %d ids per request", maxBatchIDs)))
			return
		}

		batch, err := h.scores.GetBatchScores(c.Request.Context(), currentUser(c), et, ids)
		if err != nil {
			h.errs.Respond(c, err)
			return
		}
		respondOK(c, batch)
	}
}

// ScoreAll starts bulk scoring and returns immediately.
func (h *Handler) ScoreAll(et models.EntityType) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := currentUser(c)
		if err := h.bulk.Dispatch(c.Request.Context(), userID, et); err != nil {
			h.errs.Respond(c, err)
			return
		}
		respond(c, http.StatusAccepted, gin.H{"accepted": true, "entityType": et})
	}
}

// ==========================
// Routines
// ==========================

func (h *Handler) bindRoutine(c *gin.Context) (models.RoutineInput, error) {
	var input models.RoutineInput
	raw, err := c.GetRawData()
	if err != nil {
		return input, apperrors.NewValidationError(err.Error())
	}
	err = validation.RoutineInput.Bind(raw, &input)
	return input, err
}

func (h *Handler) ListRoutines(c *gin.Context) {
	list, err := h.routines.List(c.Request.Context(), currentUser(c))
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	respondOK(c, list)
}

func (h *Handler) GetRoutine(c *gin.Context) {
	r, err := h.routines.Get(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	respondOK(c, r)
}

func (h *Handler) CreateRoutine(c *gin.Context) {
	input, err := h.bindRoutine(c)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	report, err := h.routines.Create(c.Request.Context(), currentUser(c), input)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	respond(c, http.StatusCreated, report)
}

func (h *Handler) UpdateRoutine(c *gin.Context) {
	input, err := h.bindRoutine(c)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	report, err := h.routines.Update(c.Request.Context(), currentUser(c), c.Param("id"), input)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	respondOK(c, report)
}

func (h *Handler) DeleteRoutine(c *gin.Context) {
	report, err := h.routines.Delete(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	respondOK(c, report)
}

// ==========================
// Profile
// ==========================

func (h *Handler) GetProfile(c *gin.Context) {
	u, err := h.profiles.Get(c.Request.Context(), currentUser(c))
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	respondOK(c, u)
}

func (h *Handler) CompleteAnalysis(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		h.errs.Respond(c, apperrors.NewValidationError(err.Error()))
		return
	}
	var profile models.HairProfile
	if err := validation.HairProfileInput.Bind(raw, &profile); err != nil {
		h.errs.Respond(c, err)
		return
	}

	res, err := h.profiles.CompleteAnalysis(c.Request.Context(), currentUser(c), profile)
	if err != nil {
		h.errs.Respond(c, err)
		return
	}
	respondOK(c, res)
}

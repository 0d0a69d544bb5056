// Package api is the HTTP surface of the scoring service.
package api

import (
	"context"
	"net/http"
	"time"

	"follicle-match/internal/common/auth"
	apperrors "follicle-match/internal/common/errors"
	"follicle-match/internal/common/logger"
	"follicle-match/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// ReadinessCheck pings one dependency.
type ReadinessCheck func(ctx context.Context) error

type RouterConfig struct {
	ServiceName    string
	Handler        *Handler
	Verifier       auth.Verifier
	Logger         logger.Logger
	AllowedOrigins []string
	Readiness      map[string]ReadinessCheck
}

var entityRoutes = map[models.EntityType]string{
	models.EntityProduct:    "products",
	models.EntityRoutine:    "routines",
	models.EntityIngredient: "ingredients",
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(Metrics())
	r.Use(CORS(cfg.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", readiness(cfg.Readiness))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := cfg.Handler
	api := r.Group("/api")
	api.Use(RequireAuth(cfg.Verifier, apperrors.NewErrorHandler(cfg.Logger)))
	{
		// Interactions
		api.GET("/interactions/:entityType/:entityId/:type", h.GetInteraction)
		api.POST("/interactions/:entityType/:entityId/:type", h.CreateInteraction)
		api.DELETE("/interactions/:entityType/:entityId/:type", h.DeleteInteraction)

		// Scores
		for et, path := range entityRoutes {
			group := api.Group("/" + path)
			group.GET("/:id/score", h.GetScore(et))
			group.GET("/scores", h.CompletionStatus(et))
			group.GET("/scores/batch", h.BatchScores(et))
			group.POST("/scores", h.ScoreAll(et))
		}

		// Routines
		api.GET("/routines", h.ListRoutines)
		api.POST("/routines", h.CreateRoutine)
		api.GET("/routines/:id", h.GetRoutine)
		api.PUT("/routines/:id", h.UpdateRoutine)
		api.DELETE("/routines/:id", h.DeleteRoutine)

		// Profile
		api.GET("/profile", h.GetProfile)
		api.POST("/profile/analysis", h.CompleteAnalysis)
	}

	return r
}

func readiness(checks map[string]ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		c.JSON(status, gin.H{"ready": status == http.StatusOK, "checks": results})
	}
}

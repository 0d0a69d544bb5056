package api

import (
	"strconv"
	"strings"
	"time"

	"follicle-match/internal/common/auth"
	apperrors "follicle-match/internal/common/errors"
	"follicle-match/internal/common/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	userIDKey       = "userID"
	headerRequestID = "X-Request-Id"
)

// RequireAuth resolves the bearer credential to a user id.
func RequireAuth(verifier auth.Verifier, errs *apperrors.ErrorHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			errs.Respond(c, apperrors.NewUnauthorizedError("missing bearer token"))
			return
		}
		userID, err := verifier.VerifyToken(c.Request.Context(), token)
		if err != nil {
			if _, ok := apperrors.As(err); !ok {
				err = apperrors.NewUnauthorizedError(err.Error())
			}
			errs.Respond(c, err)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func bearerToken(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// Metrics records request counts and latency by route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RequestID echoes or assigns X-Request-Id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(headerRequestID, id)
		c.Next()
	}
}

func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", headerRequestID},
		ExposeHeaders:    []string{headerRequestID},
		AllowCredentials: true,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

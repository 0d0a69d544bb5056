// cmd/match-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"follicle-match/internal/api"
	"follicle-match/internal/catalog"
	"follicle-match/internal/common/auth"
	"follicle-match/internal/common/camunda"
	"follicle-match/internal/common/config"
	"follicle-match/internal/common/database"
	"follicle-match/internal/common/logger"
	"follicle-match/internal/common/observability"
	"follicle-match/internal/docstore"
	"follicle-match/internal/interactions"
	"follicle-match/internal/routines"
	"follicle-match/internal/scorestore"
	"follicle-match/internal/scoring"
	"follicle-match/internal/scoring/compose"
	"follicle-match/internal/scoring/engagement"
	"follicle-match/internal/users"
	bulkscore "follicle-match/internal/workers/scoring/bulk-score"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func fatal(log logger.Logger, msg string, err error) {
	log.Error(msg, map[string]interface{}{"error": err.Error()})
	os.Exit(1)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log.Info("Starting match server...", map[string]interface{}{
		"environment": cfg.App.Environment,
		"version":     cfg.App.Version,
	})

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	readiness := map[string]api.ReadinessCheck{}
	var closers []func()

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		log.Warn("Observability init failed, score meters disabled", map[string]interface{}{"error": err.Error()})
	}
	closers = append(closers, func() { _ = obs.Shutdown(context.Background()) })

	if cfg.Tracing.Enabled {
		shutdown, err := observability.InitTracing(cfg.App.Name, cfg.Tracing.JaegerEndpoint)
		if err != nil {
			log.Warn("Tracing init failed", map[string]interface{}{"error": err.Error()})
		} else {
			closers = append(closers, func() { _ = shutdown(context.Background()) })
		}
	}

	// --- Document store ---
	var docs docstore.Store
	switch cfg.Database.Driver {
	case "postgres":
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, log, "PostgreSQL connection")
		if err != nil {
			fatal(log, "postgres failed after retries", err)
		}
		closers = append(closers, func() { _ = pg.Close() })

		pgStore := docstore.NewPostgresStore(pg.DB)
		if err := pgStore.Migrate(ctx); err != nil {
			fatal(log, "document store migration failed", err)
		}
		docs = pgStore
		log.Info("PostgreSQL connected successfully", nil)
	default:
		docs = docstore.NewMemoryStore()
		log.Warn("Using in-memory document store", nil)
	}
	readiness["docstore"] = docs.Ping

	// --- Score read cache ---
	var rdb redis.Cmdable
	if cfg.Database.Redis.Enabled {
		rc := database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error { return rc.Ping(ctx) }, 10, 2*time.Second, log, "Redis connection")
		if err != nil {
			fatal(log, "redis failed after retries", err)
		}
		closers = append(closers, func() { _ = rc.Close() })
		rdb = rc.Client
		readiness["redis"] = rc.Ping
		log.Info("Redis connected successfully", nil)
	}

	// --- Catalog ---
	var source catalog.Source
	switch cfg.Catalog.Source {
	case "elasticsearch":
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			fatal(log, "elasticsearch failed after retries", err)
		}
		source = catalog.NewElasticsearchSource(esClient.Client, cfg.Catalog.ProductIndex, cfg.Catalog.IngredientIndex)
		readiness["elasticsearch"] = esClient.Ping
		log.Info("Elasticsearch connected successfully", nil)
	default:
		source = catalog.NewDocstoreSource(docs)
	}
	catalogSvc := catalog.NewService(source, catalog.Options{TTL: config.GetDuration(cfg.Catalog.TTL)})

	// --- Scoring ---
	engagementScorer := engagement.NewScorer(
		engagement.NewDocstoreReader(docs),
		engagement.Config{
			SampleCap:     cfg.Scoring.SampleCap,
			MinSimilarity: cfg.Scoring.MinSimilarity,
			MinSample:     cfg.Scoring.MinSample,
			MaxReasons:    cfg.Scoring.MaxEngagementReasons,
		},
		log,
	)
	pipeline := scoring.NewPipeline(
		catalogSvc, docs, engagementScorer,
		compose.Weights{Content: cfg.Scoring.ContentWeight, Engagement: cfg.Scoring.EngagementWeight},
		cfg.Scoring.MaxReasons,
	)

	userSvc := users.NewService(users.ServiceDependencies{Store: docs, Logger: log})
	scores := scorestore.NewStore(scorestore.Dependencies{
		Docs:          docs,
		Users:         userSvc,
		Pipeline:      pipeline,
		Catalog:       catalogSvc,
		Redis:         rdb,
		Observability: obs,
		Logger:        log,
	}, config.GetDuration(cfg.Scoring.ScoreCacheTTL))

	// --- Bulk scoring ---
	bulkCfg := bulkscore.ConfigFromApp(cfg)
	var dispatcher users.Dispatcher
	if cfg.Camunda.Enabled {
		var zeebe *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      config.GetDuration(cfg.Camunda.Timeout),
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, log, "Zeebe client initialization")
		if err != nil {
			fatal(log, "zeebe client failed after retries", err)
		}
		readiness["zeebe"] = zeebe.HealthCheck
		log.Info("Zeebe client connected successfully", nil)

		// Closers run in reverse, so the worker stops before the client closes.
		closers = append(closers, func() { _ = zeebe.Close() })
		if bulkCfg.Enabled {
			if err := bulkCfg.Validate(); err != nil {
				fatal(log, "invalid bulk-score worker config", err)
			}
			w := camunda.NewWorker(
				zeebe.GetClient(), bulkscore.TaskType,
				bulkCfg.MaxJobsActive, bulkCfg.Timeout,
				bulkscore.NewHandler(bulkCfg, scores, log), log,
			)
			closers = append(closers, w.Stop)
		}
		dispatcher = bulkscore.NewCamundaDispatcher(zeebe, bulkCfg.ProcessID, log)
	} else {
		local := bulkscore.NewLocalDispatcher(scores, bulkCfg.Timeout, log)
		closers = append(closers, local.Wait)
		dispatcher = local
	}
	userSvc.WithDispatcher(dispatcher)

	interactionSvc := interactions.NewService(interactions.ServiceDependencies{
		Store:    docs,
		Users:    userSvc,
		Entities: pipeline,
		Rescorer: scores,
		Logger:   log,
	})
	routineSvc := routines.NewService(routines.ServiceDependencies{
		Store:   docs,
		Tracker: interactionSvc,
		Scores:  scores,
		Logger:  log,
	})

	// --- Auth ---
	var verifier auth.Verifier
	switch cfg.Auth.Mode {
	case "jwt":
		verifier = auth.NewJWTVerifier(cfg.Auth.JWT.Secret, cfg.Auth.JWT.Issuer)
	default:
		verifier = auth.NewKeycloakVerifier(cfg.Auth.Keycloak.URL, cfg.Auth.Keycloak.Realm,
			config.GetDuration(cfg.Auth.Keycloak.Timeout))
	}

	router := api.NewRouter(api.RouterConfig{
		ServiceName: cfg.App.Name,
		Handler: api.NewHandler(api.HandlerDependencies{
			Interactions: interactionSvc,
			Scores:       scores,
			Routines:     routineSvc,
			Profiles:     userSvc,
			Bulk:         dispatcher,
			Logger:       log,
		}),
		Verifier:       verifier,
		Logger:         log,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Readiness:      readiness,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
	}

	go func() {
		log.Info("HTTP server listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal(log, "HTTP server failed", err)
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutdown signal received, draining requests...", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", map[string]interface{}{"error": err.Error()})
	}
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}

	log.Info("Match server stopped gracefully", nil)
}

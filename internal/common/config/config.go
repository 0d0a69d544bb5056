// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig               `mapstructure:"app"`
	HTTP     HTTPConfig              `mapstructure:"http"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	Database DatabaseConfig          `mapstructure:"database"`
	Camunda  CamundaConfig           `mapstructure:"camunda"`
	Auth     AuthConfig              `mapstructure:"auth"`
	Scoring  ScoringConfig           `mapstructure:"scoring"`
	Catalog  CatalogConfig           `mapstructure:"catalog"`
	Tracing  TracingConfig           `mapstructure:"tracing"`
	Workers  map[string]WorkerConfig `mapstructure:"workers"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port           int      `mapstructure:"port"`
	ReadTimeout    int      `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout   int      `mapstructure:"write_timeout"` // milliseconds
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type DatabaseConfig struct {
	// Driver selects the document store backend: "postgres" or "memory".
	Driver        string              `mapstructure:"driver"`
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// AuthConfig selects how bearer credentials are verified.
type AuthConfig struct {
	Mode string `mapstructure:"mode"` // keycloak | jwt

	Keycloak struct {
		URL      string `mapstructure:"url"`
		Realm    string `mapstructure:"realm"`
		ClientID string `mapstructure:"client_id"`
		Timeout  int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"keycloak"`

	JWT struct {
		Secret string `mapstructure:"secret"`
		Issuer string `mapstructure:"issuer"`
	} `mapstructure:"jwt"`
}

// ScoringConfig carries the tunables of the match-score pipeline.
type ScoringConfig struct {
	ContentWeight        float64 `mapstructure:"content_weight"`
	EngagementWeight     float64 `mapstructure:"engagement_weight"`
	SampleCap            int     `mapstructure:"sample_cap"`
	MinSimilarity        float64 `mapstructure:"min_similarity"`
	MinSample            int     `mapstructure:"min_sample"`
	MaxEngagementReasons int     `mapstructure:"max_engagement_reasons"`
	MaxReasons           int     `mapstructure:"max_reasons"`
	ScoreCacheTTL        int     `mapstructure:"score_cache_ttl"` // milliseconds
	BulkProcessID        string  `mapstructure:"bulk_process_id"`
}

// CatalogConfig configures the reference-data source and its cache.
type CatalogConfig struct {
	Source          string `mapstructure:"source"` // docstore | elasticsearch
	TTL             int    `mapstructure:"ttl"`    // milliseconds
	ProductIndex    string `mapstructure:"product_index"`
	IngredientIndex string `mapstructure:"ingredient_index"`
}

type TracingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

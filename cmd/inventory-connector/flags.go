package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const envPrefix = "INVCONN_"

// Settings holds the process settings from flags and INVCONN_* variables
type Settings struct {
	HubURL     string `validate:"required,url"`
	ConfigPath string `validate:"required"`

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json text"`

	MetricsPort     int           `validate:"gte=0,lte=65535"`
	Workers         int           `validate:"gte=1,lte=1024"`
	QueueSize       int           `validate:"gte=1"`
	QueryTimeout    time.Duration `validate:"gte=0"`
	ShutdownTimeout time.Duration `validate:"gte=0"`
	PingInterval    time.Duration `validate:"gte=0"`
	HubMaxRetries   int           `validate:"gte=0"`

	HubCAFiles            []string `validate:"dive,file"`
	HubCertFile           string   `validate:"omitempty,file"`
	HubKeyFile            string   `validate:"omitempty,file"`
	HubTLSMinVersion      string   `validate:"omitempty,oneof=1.2 1.3"`
	HubInsecureSkipVerify bool

	Matcher            string  `validate:"oneof=bm25 http passthrough"`
	MatchThreshold     float64 `validate:"gte=0,lte=1"`
	EmbeddingURL       string  `validate:"omitempty,url"`
	EmbeddingModel     string  `validate:"required_if=Matcher http"`
	EmbeddingAPIKey    string
	EmbeddingCacheSize int `validate:"gte=0"`

	APIRateLimit float64 `validate:"gte=0"`
	APIBurst     int     `validate:"gte=0"`

	EnvFile  string
	Validate bool
}

// validate checks settings against their struct tags
func (s *Settings) validate() error {
	if err := validator.New().Struct(s); err != nil {
		var problems []string
		if ve, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range ve {
				problems = append(problems, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid settings: %s", strings.Join(problems, ", "))
		}
		return fmt.Errorf("invalid settings: %w", err)
	}
	if s.Matcher == "http" && s.EmbeddingURL == "" {
		return fmt.Errorf("invalid settings: --embedding-url is required with --matcher=http")
	}
	return nil
}

// newRootCmd builds the CLI. Flag defaults are read from the environment,
// so any env file must be loaded before calling it.
func newRootCmd(s *Settings, run func(cmd *cobra.Command) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName + " [flags] <hub-uri> <config-file>",
		Short: "Answer hub inventory queries from a tenant database or REST API",
		Long: `inventory-connector keeps a websocket connection to the hub, queries the
configured tenant backend for each inventory query and replies with the
semantically matching items.

Every flag can also be set through an INVCONN_* environment variable, for
example INVCONN_LOG_LEVEL=debug.`,
		Example: `  # Connect a DB tenant
  inventory-connector wss://hub.example.com/connect tenant.json

  # Validate a configuration only
  inventory-connector --validate wss://hub.example.com/connect tenant.yaml`,
		Version:       Version,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s.HubURL = args[0]
			s.ConfigPath = args[1]
			if err := s.validate(); err != nil {
				return err
			}
			return run(cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&s.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: INVCONN_LOG_LEVEL)")
	f.StringVar(&s.LogFormat, "log-format", getEnv("LOG_FORMAT", "json"),
		"Log format: json, text (env: INVCONN_LOG_FORMAT)")
	f.IntVar(&s.MetricsPort, "metrics-port", getEnvInt("METRICS_PORT", 9090),
		"Port for /metrics and /health, 0 to disable (env: INVCONN_METRICS_PORT)")

	f.IntVar(&s.Workers, "workers", getEnvInt("WORKERS", 1),
		"Queries handled concurrently; 1 keeps arrival order (env: INVCONN_WORKERS)")
	f.IntVar(&s.QueueSize, "queue-size", getEnvInt("QUEUE_SIZE", 256),
		"Queued queries when workers > 1 (env: INVCONN_QUEUE_SIZE)")
	f.DurationVar(&s.QueryTimeout, "query-timeout", getEnvDuration("QUERY_TIMEOUT", 30*time.Second),
		"Per-query backend and matcher timeout, 0 for none (env: INVCONN_QUERY_TIMEOUT)")
	f.DurationVar(&s.ShutdownTimeout, "shutdown-timeout", getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		"Time allowed for queued queries on shutdown (env: INVCONN_SHUTDOWN_TIMEOUT)")
	f.DurationVar(&s.PingInterval, "ping-interval", getEnvDuration("PING_INTERVAL", 30*time.Second),
		"Hub keepalive ping interval, 0 to disable (env: INVCONN_PING_INTERVAL)")
	f.IntVar(&s.HubMaxRetries, "hub-max-retries", getEnvInt("HUB_MAX_RETRIES", 0),
		"Consecutive failed hub dials before giving up, 0 for unlimited (env: INVCONN_HUB_MAX_RETRIES)")

	f.StringSliceVar(&s.HubCAFiles, "hub-ca-file", getEnvList("HUB_CA_FILES"),
		"Additional CA certificates trusted for wss hubs (env: INVCONN_HUB_CA_FILES)")
	f.StringVar(&s.HubCertFile, "hub-cert-file", getEnv("HUB_CERT_FILE", ""),
		"Client certificate for mutual TLS with the hub (env: INVCONN_HUB_CERT_FILE)")
	f.StringVar(&s.HubKeyFile, "hub-key-file", getEnv("HUB_KEY_FILE", ""),
		"Client key for mutual TLS with the hub (env: INVCONN_HUB_KEY_FILE)")
	f.StringVar(&s.HubTLSMinVersion, "hub-tls-min-version", getEnv("HUB_TLS_MIN_VERSION", ""),
		"Minimum TLS version: 1.2, 1.3 (env: INVCONN_HUB_TLS_MIN_VERSION)")
	f.BoolVar(&s.HubInsecureSkipVerify, "hub-insecure-skip-verify", getEnvBool("HUB_INSECURE_SKIP_VERIFY", false),
		"Skip hub certificate verification (env: INVCONN_HUB_INSECURE_SKIP_VERIFY)")

	f.StringVar(&s.Matcher, "matcher", getEnv("MATCHER", "bm25"),
		"Matcher: bm25, http, passthrough (env: INVCONN_MATCHER)")
	f.Float64Var(&s.MatchThreshold, "match-threshold", getEnvFloat("MATCH_THRESHOLD", 0.6),
		"Minimum similarity of a match (env: INVCONN_MATCH_THRESHOLD)")
	f.StringVar(&s.EmbeddingURL, "embedding-url", getEnv("EMBEDDING_URL", ""),
		"OpenAI-compatible embedding service for --matcher=http (env: INVCONN_EMBEDDING_URL)")
	f.StringVar(&s.EmbeddingModel, "embedding-model", getEnv("EMBEDDING_MODEL", "all-MiniLM-L6-v2"),
		"Embedding model for --matcher=http (env: INVCONN_EMBEDDING_MODEL)")
	f.StringVar(&s.EmbeddingAPIKey, "embedding-api-key", getEnv("EMBEDDING_API_KEY", ""),
		"Embedding service API key (env: INVCONN_EMBEDDING_API_KEY)")
	f.IntVar(&s.EmbeddingCacheSize, "embedding-cache-size", getEnvInt("EMBEDDING_CACHE_SIZE", 4096),
		"Cached embeddings, 0 to disable (env: INVCONN_EMBEDDING_CACHE_SIZE)")

	f.Float64Var(&s.APIRateLimit, "api-rate-limit", getEnvFloat("API_RATE_LIMIT", 0),
		"Requests per second to an API backend, 0 for unlimited (env: INVCONN_API_RATE_LIMIT)")
	f.IntVar(&s.APIBurst, "api-burst", getEnvInt("API_BURST", 1),
		"Request burst for --api-rate-limit (env: INVCONN_API_BURST)")

	f.StringVar(&s.EnvFile, "env-file", getEnv("ENV_FILE", ""),
		"File of KEY=value lines loaded before flags (env: INVCONN_ENV_FILE)")
	f.BoolVar(&s.Validate, "validate", false, "Validate the configuration and exit")

	return cmd
}

// loadEnvFile loads the --env-file named in args, or INVCONN_ENV_FILE.
// Variables already set in the environment win.
func loadEnvFile(args []string) error {
	path := envFileFromArgs(args)
	if path == "" {
		path = getEnv("ENV_FILE", "")
	}
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func envFileFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if value, ok := strings.CutPrefix(arg, "--env-file="); ok {
			return value
		}
		if arg == "--env-file" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(envPrefix + key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(envPrefix + key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(envPrefix + key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(envPrefix + key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable
func getEnvList(key string) []string {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

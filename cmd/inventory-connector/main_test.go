package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gondolav/inventory-connector/config"
	errs "github.com/Gondolav/inventory-connector/errors"
	"github.com/Gondolav/inventory-connector/matcher"
	"github.com/Gondolav/inventory-connector/pkg/embedding"
	"github.com/Gondolav/inventory-connector/pkg/retry"
	fixtures "github.com/Gondolav/inventory-connector/testutil"
)

func validSettings() *Settings {
	return &Settings{
		HubURL:         "wss://hub.example.com/connect",
		ConfigPath:     "tenant.json",
		LogLevel:       "info",
		LogFormat:      "json",
		MetricsPort:    9090,
		Workers:        1,
		QueueSize:      16,
		QueryTimeout:   time.Second,
		Matcher:        "bm25",
		MatchThreshold: 0.6,
	}
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{"valid", func(*Settings) {}, ""},
		{"bad hub url", func(s *Settings) { s.HubURL = "not a url" }, "HubURL"},
		{"bad log level", func(s *Settings) { s.LogLevel = "trace" }, "LogLevel"},
		{"zero workers", func(s *Settings) { s.Workers = 0 }, "Workers"},
		{"threshold above one", func(s *Settings) { s.MatchThreshold = 1.5 }, "MatchThreshold"},
		{"unknown matcher", func(s *Settings) { s.Matcher = "fuzzy" }, "Matcher"},
		{"http matcher without url", func(s *Settings) {
			s.Matcher = "http"
			s.EmbeddingModel = "m"
		}, "--embedding-url"},
		{"http matcher", func(s *Settings) {
			s.Matcher = "http"
			s.EmbeddingModel = "m"
			s.EmbeddingURL = "http://localhost:8080"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)
			err := s.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvFileFromArgs(t *testing.T) {
	assert.Equal(t, "a.env", envFileFromArgs([]string{"--env-file=a.env", "hub", "cfg"}))
	assert.Equal(t, "b.env", envFileFromArgs([]string{"--env-file", "b.env", "hub", "cfg"}))
	assert.Empty(t, envFileFromArgs([]string{"--", "--env-file=c.env"}))
	assert.Empty(t, envFileFromArgs([]string{"--env-file"}))
}

func TestLoadEnvFile_SetsFlagDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connector.env")
	require.NoError(t, os.WriteFile(path, []byte("INVCONN_WORKERS=4\nINVCONN_MATCHER=passthrough\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("INVCONN_WORKERS")
		os.Unsetenv("INVCONN_MATCHER")
	})

	require.NoError(t, loadEnvFile([]string{"--env-file", path}))

	s := &Settings{}
	var ran bool
	cmd := newRootCmd(s, func(*cobra.Command) error {
		ran = true
		return nil
	})
	cmd.SetArgs([]string{"wss://hub.example.com/connect", "tenant.json"})
	require.NoError(t, cmd.Execute())

	assert.True(t, ran)
	assert.Equal(t, 4, s.Workers)
	assert.Equal(t, "passthrough", s.Matcher)
	assert.Equal(t, "tenant.json", s.ConfigPath)
}

func TestLoadEnvFile_Missing(t *testing.T) {
	err := loadEnvFile([]string{"--env-file=" + filepath.Join(t.TempDir(), "absent.env")})
	assert.Error(t, err)
}

func TestRootCmd_RequiresTwoArgs(t *testing.T) {
	cmd := newRootCmd(&Settings{}, func(*cobra.Command) error { return nil })
	cmd.SetArgs([]string{"wss://hub.example.com/connect"})
	assert.Error(t, cmd.Execute())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "json")

	logger.Info("hidden")
	logger.Warn("shown", "tenant", 7)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, appName, entry["service"])
	assert.Equal(t, Version, entry["version"])
	assert.EqualValues(t, 7, entry["tenant"])
}

func TestBuildMatcher(t *testing.T) {
	cfg := &config.Config{Language: config.LanguageEN}

	s := validSettings()
	s.Matcher = "passthrough"
	m, embedder, err := buildMatcher(s, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, matcher.Passthrough{}, m)
	assert.Nil(t, embedder)

	s.Matcher = "bm25"
	m, embedder, err = buildMatcher(s, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &matcher.EmbeddingMatcher{}, m)
	assert.IsType(t, &embedding.BM25Embedder{}, embedder)

	s.Matcher = "fuzzy"
	_, _, err = buildMatcher(s, cfg, nil)
	assert.Error(t, err)
}

func TestServe_ValidateOnly(t *testing.T) {
	path := fixtures.WriteConfig(t, fixtures.DBDocument("sqlite://mem"))

	s := validSettings()
	s.ConfigPath = path
	s.Validate = true
	assert.NoError(t, serve(context.Background(), s))

	s.ConfigPath = filepath.Join(t.TempDir(), "missing.json")
	assert.Error(t, serve(context.Background(), s))
}

func fastRetry(maxRetries int) errs.RetryConfig {
	return errs.RetryConfig{
		MaxRetries:    maxRetries,
		InitialDelay:  time.Millisecond,
		MaxDelay:      time.Millisecond,
		BackoffFactor: 1,
	}
}

func TestConnectWithRetry_TransientExhausted(t *testing.T) {
	q := fixtures.NewStaticQuerier()
	q.ConnectErr = errs.WrapTransient(errs.Join(errs.ErrNoConnection, errors.New("refused")), "test", "Connect", "dial")

	err := connectWithRetry(context.Background(), q, fastRetry(2))

	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrNoConnection)
	assert.Equal(t, 3, q.ConnectCalls)
}

func TestConnectWithRetry_FatalStopsImmediately(t *testing.T) {
	q := fixtures.NewStaticQuerier()
	q.ConnectErr = errs.WrapFatal(errs.Join(errs.ErrNoConnection, errors.New("unsupported dialect")), "test", "Connect", "resolve dialect")

	err := connectWithRetry(context.Background(), q, fastRetry(5))

	require.Error(t, err)
	assert.True(t, retry.IsNonRetryable(err))
	assert.True(t, errs.IsFatal(err))
	assert.Equal(t, 1, q.ConnectCalls)
}

// flakyQuerier fails Connect with a transient error until failures reaches zero
type flakyQuerier struct {
	fixtures.StaticQuerier
	failures int
	calls    int
}

func (q *flakyQuerier) Connect(ctx context.Context) error {
	q.calls++
	if q.failures > 0 {
		q.failures--
		return errs.WrapTransient(errs.Join(errs.ErrNoConnection, errors.New("starting")), "test", "Connect", "dial")
	}
	return q.StaticQuerier.Connect(ctx)
}

func TestConnectWithRetry_RecoversAfterTransientFailures(t *testing.T) {
	q := &flakyQuerier{failures: 2}

	require.NoError(t, connectWithRetry(context.Background(), q, fastRetry(5)))
	assert.Equal(t, 3, q.calls)
	assert.True(t, q.Connected)
}

func TestConnectWithRetry_StopsOnCancel(t *testing.T) {
	q := fixtures.NewStaticQuerier()
	q.ConnectErr = errs.WrapTransient(errs.Join(errs.ErrNoConnection, errors.New("refused")), "test", "Connect", "dial")
	rc := fastRetry(100)
	rc.InitialDelay = time.Second
	rc.MaxDelay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := connectWithRetry(ctx, q, rc)

	require.Error(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.Equal(t, 1, q.ConnectCalls)
}

func TestServe_UnsupportedBackendFailsWithoutRetry(t *testing.T) {
	path := fixtures.WriteConfig(t, fixtures.DBDocument("mongodb://inv.example.com/inv"))

	s := validSettings()
	s.ConfigPath = path

	start := time.Now()
	err := serve(context.Background(), s)

	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrUnsupportedBackend)
	assert.True(t, errs.IsFatal(err))
	assert.Less(t, time.Since(start), time.Second)
}

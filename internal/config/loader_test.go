// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/ratewait/internal/ratelimit"
	"github.com/ManuGH/ratewait/internal/testutil"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ratewait.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	want := Defaults()
	want.Version = "v1.2.3"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
listenAddr: "127.0.0.1:9090"
maxWait: 5s
limits:
  algorithm: leaky_bucket
  perClient:
    rate: 2
    burst: 4
  classes:
    premium:
      rate: 20
      burst: 40
`)
	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.ListenAddr)
	assert.Equal(t, 5*time.Second, cfg.MaxWait)
	assert.Equal(t, ratelimit.AlgorithmLeakyBucket, cfg.Limits.Algorithm)
	assert.Equal(t, RateConfig{Rate: 2, Burst: 4}, cfg.Limits.PerClient)
	// Untouched sections keep their defaults.
	assert.Equal(t, Defaults().Limits.Global, cfg.Limits.Global)
	// A classes section replaces the default classes.
	assert.Equal(t, map[string]RateConfig{"premium": {Rate: 20, Burst: 40}}, cfg.Limits.Classes)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "listenAddr: \":9000\"\nstore:\n  backend: memory\n")
	t.Setenv(EnvListen, ":7000")
	t.Setenv(EnvStore, "redis")
	t.Setenv(EnvRedisAddr, "cache:6379")
	t.Setenv(EnvRedisDB, "3")
	t.Setenv(EnvClientRate, "0.5")
	t.Setenv(EnvClientBurst, "1")
	t.Setenv(EnvTracingEnabled, "yes")
	t.Setenv(EnvKeyTTL, "2m")

	l := NewLoader(path, "dev")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "cache:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 3, cfg.Store.Redis.DB)
	assert.Equal(t, RateConfig{Rate: 0.5, Burst: 1}, cfg.Limits.PerClient)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Limits.KeyTTL)
	assert.Contains(t, l.ConsumedEnvKeys, EnvListen)
	assert.Contains(t, l.ConsumedEnvKeys, EnvTracingSampling)
}

func TestLoad_InvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv(EnvMaxWait, "forever")
	t.Setenv(EnvGlobalBurst, "lots")

	cfg, err := NewLoader("", "dev").Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().MaxWait, cfg.MaxWait)
	assert.Equal(t, Defaults().Limits.Global.Burst, cfg.Limits.Global.Burst)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, "listenAddr: \":8080\"\nlimts:\n  algorithm: gcra\n")
	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoad_MultipleDocumentsRejected(t *testing.T) {
	path := writeConfig(t, "logLevel: info\n---\nlogLevel: debug\n")
	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().Limits.Classes, cfg.Limits.Classes)
}

func TestLoad_RejectsNonYAMLExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratewait.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only YAML supported")
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, "limits:\n  algorithm: fixed_window\n")
	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, ratelimit.ErrUnknownAlgorithm)
}

func TestLoad_ZeroMaxWaitRejected(t *testing.T) {
	path := writeConfig(t, "maxWait: 0s\n")
	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "maxWait must be positive")
}

func TestExampleConfigIsValid(t *testing.T) {
	cfg, err := LoadFile(testutil.RepoFile(t, "ratewait.example.yaml"))
	require.NoError(t, err)

	want := Defaults()
	want.Store.SQLitePath = "/var/lib/ratewait/state.db"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("example drifted from defaults (-want +got):\n%s", diff)
	}
}

func TestWriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Defaults()
	cfg.Limits.Algorithm = ratelimit.AlgorithmTokenBucket
	cfg.Guard = GuardConfig{}
	require.NoError(t, WriteFile(path, cfg))

	got, err := LoadFile(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestPolicyConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Limits.Global = RateConfig{}
	cfg.Limits.Classes = map[string]RateConfig{"bulk": {Rate: 2, Burst: 4}}

	pc, err := cfg.PolicyConfig()
	require.NoError(t, err)
	assert.True(t, pc.Global.IsZero())
	assert.Equal(t, ratelimit.Quota{Burst: 4, Period: 2 * time.Second}, pc.Classes["bulk"])
	assert.Equal(t, ratelimit.Quota{Burst: 20, Period: 2 * time.Second}, pc.PerClient)
	assert.Equal(t, cfg.Limits.KeyTTL, pc.KeyTTL)

	p, err := ratelimit.NewPolicy(pc, ratelimit.NewMemoryStore(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"bulk"}, p.Classes())
}

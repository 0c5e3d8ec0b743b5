// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/ratewait/internal/config"
	"github.com/ManuGH/ratewait/internal/ratelimit/store"
)

type recordingApplier struct {
	mu      sync.Mutex
	applied []config.Config
}

func (r *recordingApplier) ApplyConfig(cfg config.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, cfg)
	return nil
}

func (r *recordingApplier) last() (config.Config, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.applied) == 0 {
		return config.Config{}, false
	}
	return r.applied[len(r.applied)-1], true
}

type countingSweeper struct{ calls atomic.Int32 }

func (s *countingSweeper) Backend() string { return "counting" }
func (s *countingSweeper) Sweep(context.Context) (int, error) {
	s.calls.Add(1)
	return 1, nil
}

func TestApp_RequiresManager(t *testing.T) {
	app := NewApp(zerolog.Nop(), nil, nil, nil)
	require.ErrorIs(t, app.Run(context.Background()), ErrMissingManager)
}

func TestApp_ReloadsOnFileChangeAndSweeps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratewait.yaml")
	initial := config.Defaults()
	initial.ListenAddr = "127.0.0.1:0"
	require.NoError(t, config.WriteFile(path, initial))

	loader := config.NewLoader(path, "test")
	cfg, err := loader.Load()
	require.NoError(t, err)
	holder := config.NewConfigHolder(cfg, loader, path)

	m, err := NewManager(ServerConfig{ListenAddr: cfg.ListenAddr}, okHandler(), zerolog.Nop())
	require.NoError(t, err)

	applier := &recordingApplier{}
	sweeper := &countingSweeper{}
	app := NewApp(zerolog.Nop(), m, holder, applier,
		WithSweeper(sweeper, 10*time.Millisecond),
		WithReloadSignal(nil),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	require.Eventually(t, func() bool { return m.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	next := initial
	next.MaxWait = 3 * time.Second
	next.LogLevel = "debug"
	require.NoError(t, config.WriteFile(path, next))

	require.Eventually(t, func() bool {
		got, ok := applier.last()
		return ok && got.MaxWait == 3*time.Second
	}, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool { return sweeper.calls.Load() > 0 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.Equal(t, 3*time.Second, holder.Get().MaxWait)
}

func TestBootstrap_RunsAndReleasesStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ratewait.yaml")
	cfg := config.Defaults()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.Store.Backend = store.BackendSQLite
	cfg.Store.SQLitePath = filepath.Join(dir, "state.db")
	cfg.Limits.PerClient = config.RateConfig{Rate: 1, Burst: 1}
	require.NoError(t, config.WriteFile(path, cfg))

	rt, err := Bootstrap(context.Background(), Options{ConfigPath: path, Version: "test", LogOutput: io.Discard})
	require.NoError(t, err)
	assert.Equal(t, store.BackendSQLite, rt.Store.Backend())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()
	require.Eventually(t, func() bool { return rt.Manager.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	base := "http://" + rt.Manager.Addr()
	client := &http.Client{Transport: &http.Transport{}}
	defer client.CloseIdleConnections()

	resp, err := client.Get(base + "/readyz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		resp, err := client.Post(base+"/v1/acquire/boot", "application/json", nil)
		require.NoError(t, err)
		_ = resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runtime did not stop")
	}
	assert.Error(t, rt.Store.Ping(context.Background()), "store should be closed by the shutdown hook")
}

func TestBootstrap_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratewait.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: etcd\n"), 0o600))

	_, err := Bootstrap(context.Background(), Options{ConfigPath: path, LogOutput: io.Discard})
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

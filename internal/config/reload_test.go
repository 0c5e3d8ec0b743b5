// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestConfigHolder_ReloadNotifiesListeners(t *testing.T) {
	path := writeConfig(t, "maxWait: 5s\n")
	loader := NewLoader(path, "dev")
	initial, err := loader.Load()
	require.NoError(t, err)

	holder := NewConfigHolder(initial, loader, path)
	ch := make(chan Config, 1)
	holder.RegisterListener(ch)

	require.NoError(t, os.WriteFile(path, []byte("maxWait: 9s\n"), 0o600))
	require.NoError(t, holder.Reload(context.Background()))

	assert.Equal(t, 9*time.Second, holder.Get().MaxWait)
	select {
	case got := <-ch:
		assert.Equal(t, 9*time.Second, got.MaxWait)
	default:
		t.Fatal("listener not notified")
	}
}

func TestConfigHolder_InvalidReloadKeepsPrevious(t *testing.T) {
	path := writeConfig(t, "maxWait: 5s\n")
	loader := NewLoader(path, "dev")
	initial, err := loader.Load()
	require.NoError(t, err)
	holder := NewConfigHolder(initial, loader, path)

	require.NoError(t, os.WriteFile(path, []byte("maxWait: 9s\nbogus: true\n"), 0o600))
	err = holder.Reload(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
	assert.Equal(t, 5*time.Second, holder.Get().MaxWait)
}

func TestConfigHolder_FullListenerIsSkipped(t *testing.T) {
	holder := NewConfigHolder(Defaults(), NewLoader("", "dev"), "")
	ch := make(chan Config)
	holder.RegisterListener(ch)

	done := make(chan struct{})
	go func() {
		holder.notifyListeners(Defaults())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("notify blocked on an unbuffered listener")
	}
}

func TestConfigHolder_WatcherReloadsOnWrite(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := writeConfig(t, "maxWait: 5s\n")
	loader := NewLoader(path, "dev")
	initial, err := loader.Load()
	require.NoError(t, err)
	holder := NewConfigHolder(initial, loader, path)

	ch := make(chan Config, 4)
	holder.RegisterListener(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, holder.StartWatcher(ctx))

	require.NoError(t, WriteFile(path, func() Config {
		c := Defaults()
		c.MaxWait = 12 * time.Second
		return c
	}()))

	select {
	case got := <-ch:
		assert.Equal(t, 12*time.Second, got.MaxWait)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload")
	}

	holder.Stop()
	// Let a pending debounced reload drain before the leak check.
	time.Sleep(2 * reloadDebounce)
}

func TestConfigHolder_WatcherDisabledWithoutPath(t *testing.T) {
	holder := NewConfigHolder(Defaults(), NewLoader("", "dev"), "")
	require.NoError(t, holder.StartWatcher(context.Background()))
	holder.Stop()
}

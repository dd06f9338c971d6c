package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestLoadTuningFile_OverlaysBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	writeFile(t, path, "local_concurrency: 7\npause_poll: 750ms\n")

	got, err := LoadTuningFile(path, DefaultTuning())
	require.NoError(t, err)
	assert.Equal(t, 7, got.LocalConcurrency)
	assert.Equal(t, 750*time.Millisecond, got.PausePoll)
	assert.Equal(t, 10, got.FallbackSlots, "unset keys keep the base value")
}

func TestLoadTuningFile_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	writeFile(t, path, "fallback_slots: 0\n")

	_, err := LoadTuningFile(path, DefaultTuning())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FallbackSlots")
}

func TestTuningWatcher_ReloadKeepsLastGood(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	writeFile(t, path, "local_concurrency: 3\n")

	w, err := NewTuningWatcher(path, DefaultTuning(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, w.Current().LocalConcurrency)

	writeFile(t, path, "local_concurrency: -1\n")
	require.Error(t, w.Reload())
	assert.Equal(t, 3, w.Current().LocalConcurrency)

	writeFile(t, path, "local_concurrency: 12\n")
	require.NoError(t, w.Reload())
	assert.Equal(t, 12, w.Current().LocalConcurrency)
}

func TestTuningWatcher_RunPicksUpWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	writeFile(t, path, "batch_delay: 1s\n")

	w, err := NewTuningWatcher(path, DefaultTuning(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Rewrite on every tick: the first write may land before the watch is registered.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("batch_delay: 3s\n"), 0o600)
		return w.Current().BatchDelay == 3*time.Second
	}, 5*time.Second, 50*time.Millisecond)
}

func TestStaticTuning(t *testing.T) {
	src := StaticTuning(DefaultTuning())
	assert.Equal(t, 25, src.Current().LocalConcurrency)
}

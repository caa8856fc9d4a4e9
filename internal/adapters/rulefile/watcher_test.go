package rulefile

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (l *countingLoader) LoadRules(_ context.Context, path string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, path)
	return 1, l.err
}

func (l *countingLoader) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.paths)
}

func startWatcher(t *testing.T, loader *countingLoader) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: []\n"), 0o644))

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	w := NewWatcher(path, loader, logger)
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	return path
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	loader := &countingLoader{}
	path := startWatcher(t, loader)

	require.NoError(t, os.WriteFile(path, []byte("rules: []\n# edited\n"), 0o644))
	assert.Eventually(t, func() bool { return loader.calls() == 1 }, 2*time.Second, 10*time.Millisecond)

	// other files in the directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.yaml"), []byte("x"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, loader.calls())
	assert.Equal(t, path, loader.paths[0])
}

func TestWatcher_SurvivesLoadErrors(t *testing.T) {
	loader := &countingLoader{err: errors.New("bad yaml")}
	path := startWatcher(t, loader)

	require.NoError(t, os.WriteFile(path, []byte("rules: ["), 0o644))
	assert.Eventually(t, func() bool { return loader.calls() >= 1 }, 2*time.Second, 10*time.Millisecond)

	loader.mu.Lock()
	loader.err = nil
	loader.mu.Unlock()
	before := loader.calls()

	require.NoError(t, os.WriteFile(path, []byte("rules: []\n"), 0o644))
	assert.Eventually(t, func() bool { return loader.calls() > before }, 2*time.Second, 10*time.Millisecond)
}

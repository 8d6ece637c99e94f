package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type watchedConfig struct {
	Name  string `toml:"name"`
	Value int    `toml:"value"`
}

func loadWatched(path string) (watchedConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return watchedConfig{}, err
	}
	var cfg watchedConfig
	err = toml.Unmarshal(data, &cfg)
	return cfg, err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.toml")
	if err := os.WriteFile(path, []byte("name = \"a\"\nvalue = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewConfigWatcher(path, loadWatched, discardLogger(), WithDebounce[watchedConfig](30*time.Millisecond))
	got := make(chan watchedConfig, 4)
	w.OnReload(func(c watchedConfig) { got <- c })

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("name = \"b\"\nvalue = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-got:
		if c.Name != "b" || c.Value != 2 {
			t.Errorf("got %+v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reload within timeout")
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.toml")
	if err := os.WriteFile(path, []byte("value = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewConfigWatcher(path, loadWatched, discardLogger(), WithDebounce[watchedConfig](20*time.Millisecond))
	got := make(chan watchedConfig, 1)
	w.OnReload(func(c watchedConfig) { got <- c })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "other.toml"), []byte("value = 9\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-got:
		t.Fatalf("unexpected reload %+v", c)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherUnsubscribeAndErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.toml")
	if err := os.WriteFile(path, []byte("value = [\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var loadErr error
	w := NewConfigWatcher(path, loadWatched, discardLogger(), WithErrorHandler[watchedConfig](func(err error) { loadErr = err }))

	calls := 0
	unsub := w.OnReload(func(watchedConfig) { calls++ })

	w.Reload()
	if loadErr == nil {
		t.Error("expected load error for broken TOML")
	}
	if calls != 0 {
		t.Error("handler should not run on load error")
	}

	if err := os.WriteFile(path, []byte("value = 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w.Reload()
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	unsub()
	w.Reload()
	if calls != 1 {
		t.Errorf("calls after unsubscribe = %d, want 1", calls)
	}
}

func TestWatcherStartFailsForMissingDir(t *testing.T) {
	w := NewConfigWatcher(filepath.Join(t.TempDir(), "nope", "app.toml"), loadWatched, discardLogger())
	if err := w.Start(); err == nil {
		w.Stop()
		t.Fatal("expected error watching a missing directory")
	}
	if err := w.Stop(); err != nil && !errors.Is(err, os.ErrClosed) {
		t.Errorf("Stop on unstarted watcher: %v", err)
	}
}

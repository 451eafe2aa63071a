package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatch(t *testing.T) {
	t.Run("Should invoke the callback when the watched file is rewritten", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "job.yaml")
		require.NoError(t, os.WriteFile(path, []byte("invocations: 1\n"), 0o600))

		changed := make(chan struct{}, 1)
		stop, err := Watch(path, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
		require.NoError(t, err)
		defer func() { _ = stop() }()

		require.NoError(t, os.WriteFile(path, []byte("invocations: 2\n"), 0o600))

		select {
		case <-changed:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for file-change notification")
		}
	})

	t.Run("Should fail to watch a path that doesn't exist", func(t *testing.T) {
		_, err := Watch(filepath.Join(t.TempDir(), "missing.yaml"), func() {})
		require.Error(t, err)
	})
}

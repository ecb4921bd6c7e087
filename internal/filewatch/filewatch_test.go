package filewatch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaptext/internal/testutil"
)

func TestWatch_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "data.csv")
	other := filepath.Join(dir, "other.csv")
	require.NoError(t, os.WriteFile(target, []byte("id\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, target, Options{Debounce: 50 * time.Millisecond, Logger: testutil.NewTestLogger(t)}, func() {
			calls.Add(1)
		})
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(other, []byte("ignored\n"), 0o600))
	for i := range 3 {
		require.NoError(t, os.WriteFile(target, []byte{byte('a' + i)}, 0o600))
	}

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "burst of writes collapses to one callback")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "data.csv"), Options{}, func() {})
	assert.Error(t, err)
}

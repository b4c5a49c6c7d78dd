package watcher_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bundlex/bundlex/internal/watcher"
)

func TestReconcileComputesSetDifference(t *testing.T) {
	oldSet := map[string]bool{"a": true, "b": true}
	newSet := map[string]bool{"a": true, "c": true}

	toWatch, toUnwatch := watcher.Reconcile(oldSet, newSet)
	assert.ElementsMatch(t, []string{"c"}, toWatch)
	assert.ElementsMatch(t, []string{"b"}, toUnwatch)
}

func TestReconcileNoChanges(t *testing.T) {
	set := map[string]bool{"a": true}
	toWatch, toUnwatch := watcher.Reconcile(set, set)
	assert.Empty(t, toWatch)
	assert.Empty(t, toUnwatch)
}

func TestFsnotifyBridgeReportsModification(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.js")
	require.NoError(t, os.WriteFile(path, []byte("1"), 0o644))

	b, err := watcher.New()
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Watch(path))
	require.NoError(t, os.WriteFile(path, []byte("2"), 0o644))

	select {
	case ev := <-b.Events():
		assert.Equal(t, path, ev.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a filesystem event")
	}
}

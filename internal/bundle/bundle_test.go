package bundle_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bundlex/bundlex/internal/bundle"
	"github.com/bundlex/bundlex/internal/resolver"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestBuildSimpleGraph(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.js"), `var b = require('./b');`)
	writeFile(t, filepath.Join(root, "b.js"), `module.exports = 1;`)

	r := resolver.New(resolver.InputOptions{}, root)
	table, err := bundle.Build(filepath.Join(root, "a.js"), r, bundle.Options{WorkerCount: 2})
	require.NoError(t, err)

	require.Len(t, table, 2)
	a := table[filepath.Join(root, "a.js")]
	require.NotNil(t, a)
	bRef := a.Deps["./b"]
	assert.Equal(t, resolver.RefNormal, bRef.Kind)
	assert.Contains(t, a.Body, bRef.Path)

	paths := table.SortedPaths()
	assert.Len(t, paths, 2)
	assert.True(t, paths[0] < paths[1])
}

func TestBuildDiamondDependencyVisitsOnce(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.js"), `require('./b'); require('./c');`)
	writeFile(t, filepath.Join(root, "b.js"), `require('./shared');`)
	writeFile(t, filepath.Join(root, "c.js"), `require('./shared');`)
	writeFile(t, filepath.Join(root, "shared.js"), `module.exports = {};`)

	r := resolver.New(resolver.InputOptions{}, root)
	table, err := bundle.Build(filepath.Join(root, "a.js"), r, bundle.Options{WorkerCount: 4})
	require.NoError(t, err)
	assert.Len(t, table, 4)
}

func TestBuildKeepsSourceWhenRequested(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.js"), `1;`)

	r := resolver.New(resolver.InputOptions{}, root)
	table, err := bundle.Build(filepath.Join(root, "a.js"), r, bundle.Options{WorkerCount: 1, KeepSource: true})
	require.NoError(t, err)
	assert.Equal(t, "1;", table[filepath.Join(root, "a.js")].Source)
}

func TestBuildFailsOnMissingEntry(t *testing.T) {
	root := t.TempDir()
	r := resolver.New(resolver.InputOptions{}, root)
	_, err := bundle.Build(filepath.Join(root, "missing.js"), r, bundle.Options{WorkerCount: 1})
	require.Error(t, err)
}

func TestBuildReportsUnresolvedDependency(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.js"), `require('./missing');`)

	r := resolver.New(resolver.InputOptions{}, root)
	_, err := bundle.Build(filepath.Join(root, "a.js"), r, bundle.Options{WorkerCount: 1})
	require.Error(t, err)
}

// TestBuildIsDeterministic guards spec.md §8's "running it twice yields
// the same output" invariant: two independent builds of the same graph,
// even with differing worker counts (and therefore differing completion
// order), must produce identical module tables.
func TestBuildIsDeterministic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.js"), `require('./b'); require('./c');`)
	writeFile(t, filepath.Join(root, "b.js"), `require('./shared');`)
	writeFile(t, filepath.Join(root, "c.js"), `require('./shared');`)
	writeFile(t, filepath.Join(root, "shared.js"), `module.exports = {};`)

	entry := filepath.Join(root, "a.js")

	r1 := resolver.New(resolver.InputOptions{}, root)
	first, err := bundle.Build(entry, r1, bundle.Options{WorkerCount: 1, KeepSource: true})
	require.NoError(t, err)

	r2 := resolver.New(resolver.InputOptions{}, root)
	second, err := bundle.Build(entry, r2, bundle.Options{WorkerCount: 4, KeepSource: true})
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("build is not deterministic across worker counts (-first +second):\n%s", diff)
	}
}

package resolver_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bundlex/bundlex/internal/resolver"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestResolveRelativeJsExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.js"), "console.log(1)")
	writeFile(t, filepath.Join(root, "b.js"), "module.exports = 2")

	r := resolver.New(resolver.InputOptions{}, root)
	ref, err := r.Resolve(filepath.Join(root, "a.js"), "./b")
	require.NoError(t, err)
	assert.Equal(t, resolver.RefNormal, ref.Kind)
	assert.Equal(t, filepath.Join(root, "b.js"), ref.Path)
}

func TestResolveDirectoryUsesManifestMain(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "lib", "package.json"), `{"main": "entry.js"}`)
	writeFile(t, filepath.Join(root, "lib", "entry.js"), "module.exports = {}")
	writeFile(t, filepath.Join(root, "a.js"), "require('./lib')")

	r := resolver.New(resolver.InputOptions{}, root)
	ref, err := r.Resolve(filepath.Join(root, "a.js"), "./lib")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "lib", "entry.js"), ref.Path)
}

func TestResolveDirectoryFallsBackToIndex(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "lib", "index.js"), "module.exports = {}")
	writeFile(t, filepath.Join(root, "a.js"), "require('./lib')")

	r := resolver.New(resolver.InputOptions{}, root)
	ref, err := r.Resolve(filepath.Join(root, "a.js"), "./lib")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "lib", "index.js"), ref.Path)
}

func TestResolveBareSpecifierWalksAncestors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "node_modules", "left-pad", "index.js"), "module.exports = function(){}")
	writeFile(t, filepath.Join(root, "nested", "a.js"), "require('left-pad')")

	r := resolver.New(resolver.InputOptions{}, root)
	ref, err := r.Resolve(filepath.Join(root, "nested", "a.js"), "left-pad")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "node_modules", "left-pad", "index.js"), ref.Path)
}

func TestResolveBareSpecifierSubPath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "node_modules", "lodash", "fp", "map.js"), "module.exports = function(){}")
	writeFile(t, filepath.Join(root, "a.js"), "require('lodash/fp/map')")

	r := resolver.New(resolver.InputOptions{}, root)
	ref, err := r.Resolve(filepath.Join(root, "a.js"), "lodash/fp/map")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "node_modules", "lodash", "fp", "map.js"), ref.Path)
}

func TestExternalSpecifierIsNotResolved(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.js"), "require('fs')")

	r := resolver.New(resolver.InputOptions{External: []string{"fs"}}, root)
	ref, err := r.Resolve(filepath.Join(root, "a.js"), "fs")
	require.NoError(t, err)
	assert.Equal(t, resolver.RefExternal, ref.Kind)
}

func TestExternalGlobPattern(t *testing.T) {
	root := t.TempDir()
	r := resolver.New(resolver.InputOptions{External: []string{"@scope/*"}}, root)
	ref, err := r.Resolve("", "@scope/widget")
	require.NoError(t, err)
	assert.Equal(t, resolver.RefExternal, ref.Kind)
}

func TestEmptySpecifierFails(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.js"), "require('')")

	r := resolver.New(resolver.InputOptions{}, root)
	_, err := r.Resolve(filepath.Join(root, "a.js"), "")
	require.Error(t, err)
	var rerr *resolver.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, resolver.ErrEmptyModuleName, rerr.Kind)
}

func TestModuleNotFound(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.js"), "require('./missing')")

	r := resolver.New(resolver.InputOptions{}, root)
	_, err := r.Resolve(filepath.Join(root, "a.js"), "./missing")
	require.Error(t, err)
	var rerr *resolver.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, resolver.ErrModuleNotFound, rerr.Kind)
	assert.Contains(t, err.Error(), "module 'missing' not found")
}

func TestBrowserFieldIgnore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"browser": {"./n.js": false}}`)
	writeFile(t, filepath.Join(root, "n.js"), "module.exports = require('fs')")
	writeFile(t, filepath.Join(root, "a.js"), "require('./n.js')")

	r := resolver.New(resolver.InputOptions{}, root)
	ref, err := r.Resolve(filepath.Join(root, "a.js"), "./n.js")
	require.NoError(t, err)
	assert.Equal(t, resolver.RefIgnore, ref.Kind)
}

func TestBrowserFieldReplace(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"browser": {"./server.js": "./client.js"}}`)
	writeFile(t, filepath.Join(root, "server.js"), "module.exports = 1")
	writeFile(t, filepath.Join(root, "client.js"), "module.exports = 2")
	writeFile(t, filepath.Join(root, "a.js"), "require('./server.js')")

	r := resolver.New(resolver.InputOptions{}, root)
	ref, err := r.Resolve(filepath.Join(root, "a.js"), "./server.js")
	require.NoError(t, err)
	assert.Equal(t, resolver.RefNormal, ref.Kind)
	assert.Equal(t, filepath.Join(root, "client.js"), ref.Path)
}

func TestForcedNpmDepsUsesNodeModulesUnderBower(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "node_modules", "tape", "index.js"), "module.exports = {}")
	writeFile(t, filepath.Join(root, "a.js"), "require('tape')")

	opts := resolver.InputOptions{
		PackageManager: resolver.Bower,
		ForcedNpmDeps:  map[string]bool{"tape": true},
	}
	r := resolver.New(opts, root)
	ref, err := r.Resolve(filepath.Join(root, "a.js"), "tape")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "node_modules", "tape", "index.js"), ref.Path)
}

func TestRequireRootEscape(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "nested")
	writeFile(t, filepath.Join(nested, "a.js"), "require('../../../../etc/passwd')")

	r := resolver.New(resolver.InputOptions{}, root)
	_, err := r.Resolve(filepath.Join(nested, "a.js"), "../../../../etc/passwd")
	require.Error(t, err)
	var rerr *resolver.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, resolver.ErrRequireRoot, rerr.Kind)
}

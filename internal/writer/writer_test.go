package writer_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bundlex/bundlex/internal/bundle"
	"github.com/bundlex/bundlex/internal/sourcemap"
	"github.com/bundlex/bundlex/internal/writer"
)

func newModule(id, body string, segments []sourcemap.Segment, source string) *bundle.Module {
	return &bundle.Module{ID: id, Body: body, Segments: segments, Source: source}
}

func TestBuildEmitsPreludeAndEntryInvocation(t *testing.T) {
	table := bundle.Table{
		"/p/a.js": newModule("/p/a.js", "console.log(1)", nil, ""),
	}
	result, err := writer.Build(table, "/p/a.js", false)
	require.NoError(t, err)

	out := string(result.Bundle)
	assert.Contains(t, out, "function bundlexRequire")
	assert.Contains(t, out, `modules["/p/a.js"]`)
	assert.Contains(t, out, "console.log(1)")
	assert.Contains(t, out, `bundlexRequire("/p/a.js");`)
	assert.Nil(t, result.Map)
}

func TestBuildOrdersModulesByCanonicalPath(t *testing.T) {
	table := bundle.Table{
		"/p/z.js": newModule("/p/z.js", "1", nil, ""),
		"/p/a.js": newModule("/p/a.js", "2", nil, ""),
	}
	result, err := writer.Build(table, "/p/a.js", false)
	require.NoError(t, err)

	out := string(result.Bundle)
	assert.True(t, strings.Index(out, `modules["/p/a.js"]`) < strings.Index(out, `modules["/p/z.js"]`))
}

func TestBuildFailsWhenEntryMissing(t *testing.T) {
	table := bundle.Table{}
	_, err := writer.Build(table, "/p/a.js", false)
	require.Error(t, err)
}

func TestBuildTracksSourceMapSegments(t *testing.T) {
	table := bundle.Table{
		"/p/a.js": newModule("/p/a.js", "console.log(1)", []sourcemap.Segment{
			{GeneratedLine: 0, GeneratedColumn: 0, OriginalLine: 0, OriginalColumn: 0},
		}, "console.log(1)"),
	}
	result, err := writer.Build(table, "/p/a.js", true)
	require.NoError(t, err)
	require.NotNil(t, result.Map)
	require.Len(t, result.Map.Segments, 1)
	assert.Equal(t, []string{"/p/a.js"}, result.Map.Sources)

	seg := result.Map.Segments[0]
	assert.Greater(t, seg.GeneratedLine, 0, "segment line should be offset past the prelude header")
}

func TestFinalizeSuppressedLeavesBundleUntouched(t *testing.T) {
	result := writer.Result{Bundle: []byte("var x = 1;")}
	bundleBytes, mapBytes, err := writer.Finalize(result, writer.MapSuppressed, "/out/bundle.js", "/out/bundle.js.map")
	require.NoError(t, err)
	assert.Equal(t, "var x = 1;", string(bundleBytes))
	assert.Nil(t, mapBytes)
}

func TestFinalizeInlineEmbedsDataURI(t *testing.T) {
	m := &sourcemap.Map{File: "bundle.js", Sources: []string{"/p/a.js"}}
	result := writer.Result{Bundle: []byte("var x = 1;"), Map: m}
	bundleBytes, mapBytes, err := writer.Finalize(result, writer.MapInline, "/out/bundle.js", "")
	require.NoError(t, err)
	assert.Contains(t, string(bundleBytes), "//# sourceMappingURL=data:application/json;base64,")
	assert.Nil(t, mapBytes)
}

func TestFinalizeFileModeWritesRelativeURL(t *testing.T) {
	m := &sourcemap.Map{File: "bundle.js"}
	result := writer.Result{Bundle: []byte("var x = 1;"), Map: m}
	bundleBytes, mapBytes, err := writer.Finalize(result, writer.MapFile, "/out/bundle.js", "/out/bundle.js.map")
	require.NoError(t, err)
	assert.Contains(t, string(bundleBytes), "//# sourceMappingURL=bundle.js.map")
	require.NotNil(t, mapBytes)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(mapBytes, &doc))
	assert.Equal(t, float64(3), doc["version"])
}

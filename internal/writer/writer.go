// Package writer implements spec.md §4.6: it emits a runtime-loader
// prelude, the module table entries in canonical-path order, and an
// entry-point invocation, translating each module's module-local
// source-map segments into bundle-global offsets as it goes. It also
// assembles the accompanying source-map document and the three
// MapOutput emission modes spec.md §6 describes.
package writer

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bundlex/bundlex/internal/bundle"
	"github.com/bundlex/bundlex/internal/pathutil"
	"github.com/bundlex/bundlex/internal/rewriter"
	"github.com/bundlex/bundlex/internal/sourcemap"
)

const preludeBody = `(function() {
  var modules = {};
  var cache = {};
  function bundlexRequire(id) {
    if (cache[id]) {
      return cache[id].exports;
    }
    var module = cache[id] = { id: id, exports: {} };
    modules[id](module, module.exports, bundlexRequire);
    return module.exports;
  }
`

const preludeFooter = `})();
`

// preludeHeader is preludeBody plus the registration of the synthetic
// empty-exports module the rewriter substitutes Ignore'd specifiers to
// point at (internal/rewriter.IgnoredModuleID).
var preludeHeader = preludeBody + "  modules[" + jsonQuote(rewriter.IgnoredModuleID) + "] = function(module, exports, require) {};\n"

// Result is an assembled bundle and its (possibly nil) source map,
// before MapOutput framing has been applied.
type Result struct {
	Bundle []byte
	Map    *sourcemap.Map // nil when the caller never asked for one
}

// Build emits the bundle for table, with entryPath invoked once loading
// completes. keepMap controls whether segment/source tracking is done at
// all; pass false when the caller will suppress the map entirely, to
// skip work that would just be thrown away.
func Build(table bundle.Table, entryPath string, keepMap bool) (Result, error) {
	if _, ok := table[entryPath]; !ok {
		return Result{}, fmt.Errorf("entry %q is not present in the module table", entryPath)
	}

	paths := table.SortedPaths()

	var out strings.Builder
	out.WriteString(preludeHeader)

	var sm *sourcemap.Map
	if keepMap {
		sm = &sourcemap.Map{File: "bundle.js"}
	}

	pos := sourcemap.LineColumnOffset{}
	pos.AdvanceString(preludeHeader)

	for sourceIndex, path := range paths {
		mod := table[path]

		header := fmt.Sprintf("  modules[%s] = function(module, exports, require) {\n", jsonQuote(path))
		out.WriteString(header)
		pos.AdvanceString(header)

		if sm != nil {
			sm.Segments = append(sm.Segments, translateSegments(pos, sourceIndex, mod.Segments)...)
			sm.Sources = append(sm.Sources, relativeSourcePath(path))
			if mod.Source != "" {
				content := mod.Source
				sm.SourcesContent = append(sm.SourcesContent, &content)
			} else {
				sm.SourcesContent = append(sm.SourcesContent, nil)
			}
		}

		out.WriteString(mod.Body)
		pos.AdvanceString(mod.Body)

		footer := "\n  };\n"
		out.WriteString(footer)
		pos.AdvanceString(footer)
	}

	invocation := fmt.Sprintf("  bundlexRequire(%s);\n", jsonQuote(entryPath))
	out.WriteString(invocation)
	pos.AdvanceString(invocation)

	out.WriteString(preludeFooter)
	pos.AdvanceString(preludeFooter)

	if sm != nil {
		sm.SortSegments()
	}

	return Result{Bundle: []byte(out.String()), Map: sm}, nil
}

func jsonQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func translateSegments(base sourcemap.LineColumnOffset, sourceIndex int, segs []sourcemap.Segment) []sourcemap.Segment {
	out := make([]sourcemap.Segment, len(segs))
	for i, s := range segs {
		translated := s
		translated.SourceIndex = sourceIndex
		translated.GeneratedLine = base.Lines + s.GeneratedLine
		if s.GeneratedLine == 0 {
			translated.GeneratedColumn = base.Columns + s.GeneratedColumn
		}
		out[i] = translated
	}
	return out
}

// relativeSourcePath converts path to forward slashes for the map's
// "sources" entries. The path is not made relative to the bundle or map
// location: each entry is the module's absolute canonical path.
func relativeSourcePath(path string) string {
	return pathutil.ToSlash(path)
}

// MapOutputMode selects where (or whether) the source map is written,
// per spec.md §6.
type MapOutputMode uint8

const (
	MapSuppressed MapOutputMode = iota
	MapInline
	MapFile
)

// Finalize appends the sourceMappingURL footer (or nothing, for
// MapSuppressed) to the bundle, and returns the map JSON bytes to write
// separately for MapFile (nil otherwise). bundleOutputPath and mapPath
// are only consulted for MapFile, to compute the relative URL spec.md
// §4.6 describes.
func Finalize(result Result, mode MapOutputMode, bundleOutputPath, mapPath string) (bundleBytes []byte, mapBytes []byte, err error) {
	switch mode {
	case MapSuppressed:
		return result.Bundle, nil, nil

	case MapInline:
		if result.Map == nil {
			return result.Bundle, nil, nil
		}
		mapJSON, err := json.Marshal(result.Map)
		if err != nil {
			return nil, nil, fmt.Errorf("marshaling source map: %w", err)
		}
		encoded := base64.StdEncoding.EncodeToString(mapJSON)
		footer := fmt.Sprintf("\n//# sourceMappingURL=data:application/json;base64,%s\n", encoded)
		return append(result.Bundle, []byte(footer)...), nil, nil

	case MapFile:
		if result.Map == nil {
			return result.Bundle, nil, nil
		}
		mapJSON, err := json.Marshal(result.Map)
		if err != nil {
			return nil, nil, fmt.Errorf("marshaling source map: %w", err)
		}
		rel, err := filepath.Rel(filepath.Dir(bundleOutputPath), mapPath)
		if err != nil {
			rel = mapPath
		}
		footer := fmt.Sprintf("\n//# sourceMappingURL=%s\n", pathutil.ToSlash(rel))
		return append(result.Bundle, []byte(footer)...), mapJSON, nil

	default:
		return nil, nil, fmt.Errorf("unknown map output mode %d", mode)
	}
}

// Package pathutil provides the canonical path manipulation spec.md §2.2
// calls for: normalization, joining, extension inspection, and walking
// upward over ancestor directories. It is a thin, behavior-pinned layer
// over path/filepath so the resolver never has to reason about platform
// path separators itself.
package pathutil

import (
	"path/filepath"
	"strings"
)

// Clean normalizes a path: resolves ".", "..", duplicate separators, and
// converts it to use the OS separator.
func Clean(p string) string {
	return filepath.Clean(p)
}

// Join joins path elements and cleans the result.
func Join(elem ...string) string {
	return filepath.Join(elem...)
}

// Dir returns all but the last element of path.
func Dir(p string) string {
	return filepath.Dir(p)
}

// Base returns the last element of path.
func Base(p string) string {
	return filepath.Base(p)
}

// Ext returns the file name extension, including the leading dot, or ""
// if there is none.
func Ext(p string) string {
	return filepath.Ext(p)
}

// IsAbs reports whether the path is absolute.
func IsAbs(p string) bool {
	return filepath.IsAbs(p)
}

// WithoutExt strips the extension (if any) from the base name, keeping
// the rest of the path intact.
func WithoutExt(p string) string {
	ext := filepath.Ext(p)
	if ext == "" {
		return p
	}
	return strings.TrimSuffix(p, ext)
}

// Ancestors returns dir and every ancestor directory up to and including
// the filesystem root, nearest first. It knows nothing of a project root;
// callers that must stay inside one (the resolver) stop iterating at the
// first ancestor outside it.
func Ancestors(dir string) []string {
	dir = filepath.Clean(dir)
	var out []string
	for {
		out = append(out, dir)
		parent := filepath.Dir(dir)
		if parent == dir {
			return out
		}
		dir = parent
	}
}

// PopSegments removes the last n path separator-delimited segments from
// dir, mirroring the original resolver's "one pop per folder" bookkeeping
// when backtracking out of a package-root probe that didn't pan out.
func PopSegments(dir string, n int) string {
	for i := 0; i < n; i++ {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return dir
}

// SplitSpecifierPath splits a bare specifier like "lodash/fp/map" into its
// package-name portion ("lodash", or "@scope/name" for scoped packages)
// and the remaining sub-path ("fp/map", or "" if there is none).
func SplitSpecifierPath(specifier string) (pkgName string, subPath string) {
	parts := strings.SplitN(specifier, "/", 2)
	if strings.HasPrefix(specifier, "@") && len(parts) == 2 {
		// Scoped package: the name is "@scope/pkg", the rest is after that.
		scopedParts := strings.SplitN(parts[1], "/", 2)
		if len(scopedParts) == 2 {
			return parts[0] + "/" + scopedParts[0], scopedParts[1]
		}
		return specifier, ""
	}
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return specifier, ""
}

// SegmentCount reports how many '/' separators a specifier contains (one
// less than its number of segments): the count of extra directory levels
// to pop back out of a package-root probe (original `find_node_module`:
// "one pop per folder"). The resolver itself walks with Ancestors and does
// not call it.
func SegmentCount(specifier string) int {
	return strings.Count(specifier, "/")
}

// ToSlash converts path separators to '/', used when emitting relative
// paths into a source map, which must always use forward slashes.
func ToSlash(p string) string {
	return filepath.ToSlash(p)
}

// Rel returns a relative path from base to target, with forward slashes,
// used for the sourceMappingURL relative reference the writer emits.
func Rel(base, target string) (string, error) {
	r, err := filepath.Rel(base, target)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(r), nil
}

// Package manifest reads package descriptor documents (package.json,
// bower.json) for a package directory, per spec.md §2.3. Fields are read
// with gjson's path queries rather than unmarshaled into a strict struct,
// so a manifest with unrecognized top-level keys — which is the common
// case in the wild — never fails to parse; per spec.md §9 "Dynamic field
// access on manifests", unknown fields are simply ignored.
package manifest

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"github.com/bundlex/bundlex/internal/pathutil"
)

// BrowserMap is the decoded form of a "browser" field that is an object
// mapping specifiers/paths to replacement strings, or to false to mean
// "substitute the empty module".
type BrowserMap struct {
	// Replace maps a key (a relative path or a bare specifier) to its
	// replacement specifier.
	Replace map[string]string
	// Ignore is the set of keys mapped to `false`.
	Ignore map[string]bool
}

// Manifest is the set of fields this bundler recognizes out of a package
// descriptor, per spec.md §2.3.
type Manifest struct {
	Dir                  string
	Main                 string
	Module               string
	BrowserMain          string // "browser" field when it is a plain string
	Browser              *BrowserMap
	Dependencies         map[string]string
	DevDependencies      map[string]string
	OptionalDependencies map[string]string
}

// FileName returns the manifest file name for the given package manager:
// "package.json" for npm, "bower.json" for bower.
func FileName(forBower bool) string {
	if forBower {
		return "bower.json"
	}
	return "package.json"
}

// Read parses the manifest file manifestPath (the full path to
// package.json or bower.json) if it exists. A missing file is not an
// error: it returns (nil, nil), matching spec.md §4.2 step 3's "if no
// manifest, try index.js then index.json" fallback.
func Read(manifestPath string) (*Manifest, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return Parse(pathutil.Dir(manifestPath), data)
}

// Parse decodes manifest JSON bytes already read from disk (or supplied
// by a test) into a Manifest. dir is recorded for diagnostics.
func Parse(dir string, data []byte) (*Manifest, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON in manifest")
	}
	root := gjson.ParseBytes(data)

	m := &Manifest{
		Dir:                  dir,
		Main:                 root.Get("main").String(),
		Module:               root.Get("module").String(),
		Dependencies:         stringMap(root.Get("dependencies")),
		DevDependencies:      stringMap(root.Get("devDependencies")),
		OptionalDependencies: stringMap(root.Get("optionalDependencies")),
	}

	browser := root.Get("browser")
	if browser.Exists() {
		if browser.Type == gjson.String {
			m.BrowserMain = browser.String()
		} else if browser.IsObject() {
			bm := &BrowserMap{Replace: map[string]string{}, Ignore: map[string]bool{}}
			browser.ForEach(func(key, value gjson.Result) bool {
				k := key.String()
				if value.Type == gjson.False {
					bm.Ignore[k] = true
				} else if value.Type == gjson.String {
					bm.Replace[k] = value.String()
				}
				return true
			})
			m.Browser = bm
		}
	}

	return m, nil
}

func stringMap(r gjson.Result) map[string]string {
	if !r.IsObject() {
		return nil
	}
	out := map[string]string{}
	r.ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = value.String()
		return true
	})
	return out
}

// Package resolver turns an import specifier into a ResolvedRef, per
// spec.md §4.2: the file-extension probe, package-manifest main-field and
// browser-field rules, node_modules/bower_components ancestor walking,
// and the external/ignore short-circuits.
package resolver

import (
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bundlex/bundlex/internal/manifest"
	"github.com/bundlex/bundlex/internal/pathutil"
)

// PackageManager selects the manifest file name and resolution-root
// folder, per spec.md §3 InputOptions.
type PackageManager uint8

const (
	Npm PackageManager = iota
	Bower
)

// RootFolder returns "node_modules" or "bower_components".
func (pm PackageManager) RootFolder() string {
	if pm == Bower {
		return "bower_components"
	}
	return "node_modules"
}

// ManifestName returns "package.json" or "bower.json".
func (pm PackageManager) ManifestName() string {
	return manifest.FileName(pm == Bower)
}

// RefKind is the tag of a ResolvedRef, spec.md §3.
type RefKind uint8

const (
	RefNormal RefKind = iota
	RefExternal
	RefIgnore
)

// ResolvedRef is the tagged resolution result, spec.md §3. Path is only
// meaningful when Kind == RefNormal. Raw preserves the original specifier
// text, which the rewriter needs to leave External requires untouched.
type ResolvedRef struct {
	Kind RefKind
	Path string
	Raw  string
}

// InputOptions is the immutable, per-worker configuration record from
// spec.md §3.
type InputOptions struct {
	PackageManager PackageManager
	External       []string
	ForcedNpmDeps  map[string]bool
}

// Clone returns a deep copy so each worker can hold its own value without
// sharing mutable state (spec.md §9 "Thread-safe shared configuration").
func (o InputOptions) Clone() InputOptions {
	c := InputOptions{PackageManager: o.PackageManager}
	if o.External != nil {
		c.External = append([]string(nil), o.External...)
	}
	if o.ForcedNpmDeps != nil {
		c.ForcedNpmDeps = make(map[string]bool, len(o.ForcedNpmDeps))
		for k, v := range o.ForcedNpmDeps {
			c.ForcedNpmDeps[k] = v
		}
	}
	return c
}

var extensionOrder = []string{"", ".js", ".json"}

const maxBrowserFieldHops = 10

type manifestCacheEntry struct {
	m *manifest.Manifest
}

// Resolver implements spec.md §4.2. One Resolver is owned exclusively by
// the bundler orchestrator (spec.md §5 "Shared resources"); its manifest
// cache is not shared across resolvers.
type Resolver struct {
	opts  InputOptions
	root  string
	cache *lru.Cache[string, manifestCacheEntry]
}

// New constructs a Resolver bounded to root: resolution that would climb
// above root fails with RequireRoot, per spec.md §4.2 step 7.
func New(opts InputOptions, root string) *Resolver {
	cache, err := lru.New[string, manifestCacheEntry](512)
	if err != nil {
		// Only returns an error for a non-positive size, which 512 never is.
		panic(err)
	}
	return &Resolver{opts: opts, root: pathutil.Clean(root), cache: cache}
}

// ResolveMain resolves the entry point. The entry is resolved exactly
// like any other specifier, referred to from the configured root
// directory, so it may legitimately come back External or Ignore; the
// caller maps those to the ExternalMain/IgnoredMain CLI errors.
func (r *Resolver) ResolveMain(input string) (ResolvedRef, error) {
	return r.Resolve("", input)
}

// Resolve resolves specifier as imported from referrer (the absolute path
// of the referring file, or "" for the entry point / root context).
func (r *Resolver) Resolve(referrer string, specifier string) (ResolvedRef, error) {
	return r.resolve(referrer, specifier, 0)
}

func (r *Resolver) context(referrer string) string {
	if referrer == "" {
		return r.root
	}
	return pathutil.Dir(referrer)
}

func (r *Resolver) resolve(referrer string, specifier string, depth int) (ResolvedRef, error) {
	context := r.context(referrer)

	if r.isExternal(specifier) {
		return ResolvedRef{Kind: RefExternal, Raw: specifier}, nil
	}
	if specifier == "" {
		return ResolvedRef{}, &Error{Kind: ErrEmptyModuleName, Context: context}
	}

	var candidate string
	var err error
	switch specifierShape(specifier) {
	case shapeRelative, shapeAbsoluteRoot:
		candidate, err = r.resolvePathBranch(context, specifier)
	default:
		candidate, err = r.resolveBareBranch(context, specifier)
	}
	if err != nil {
		return ResolvedRef{}, err
	}

	if depth < maxBrowserFieldHops {
		if ref, substituted, err := r.applyBrowserField(context, specifier, candidate, depth); err != nil {
			return ResolvedRef{}, err
		} else if substituted {
			return ref, nil
		}
	}

	return ResolvedRef{Kind: RefNormal, Path: candidate}, nil
}

type specifierKind uint8

const (
	shapeRelative specifierKind = iota
	shapeAbsoluteRoot
	shapeBare
)

func specifierShape(s string) specifierKind {
	switch {
	case strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") || s == "." || s == "..":
		return shapeRelative
	case strings.HasPrefix(s, "/"):
		return shapeAbsoluteRoot
	default:
		return shapeBare
	}
}

// resolvePathBranch implements spec.md §4.2 step 3.
func (r *Resolver) resolvePathBranch(context, specifier string) (string, error) {
	var joined string
	if strings.HasPrefix(specifier, "/") {
		joined = specifier
	} else {
		joined = pathutil.Join(context, specifier)
	}
	joined = pathutil.Clean(joined)

	if !r.withinRoot(joined) {
		return "", &Error{Kind: ErrRequireRoot, Context: context, Name: specifier}
	}

	found, ok := r.probeFileOrDirectory(joined)
	if !ok {
		return "", &Error{Kind: ErrModuleNotFound, Context: context, Name: pathutil.Clean(specifier)}
	}
	return found, nil
}

// resolveBareBranch implements spec.md §4.2 step 4.
func (r *Resolver) resolveBareBranch(context, specifier string) (string, error) {
	pkgName, subPath := pathutil.SplitSpecifierPath(specifier)
	rootFolder := r.opts.PackageManager.RootFolder()
	if r.opts.PackageManager == Bower && r.opts.ForcedNpmDeps[pkgName] {
		rootFolder = Npm.RootFolder()
	}

	for _, ancestor := range pathutil.Ancestors(context) {
		if !r.withinRoot(ancestor) {
			break
		}
		pkgDir := pathutil.Join(ancestor, rootFolder, pkgName)
		if !pathExists(pkgDir) {
			continue
		}
		target := pkgDir
		if subPath != "" {
			target = pathutil.Join(pkgDir, subPath)
		}
		if found, ok := r.probeFileOrDirectory(target); ok {
			return found, nil
		}
		// The package directory exists but the sub-path inside it doesn't;
		// per spec.md this is still a failure, not a reason to keep walking
		// further up — node resolution never looks past the nearest
		// node_modules/<pkg> that exists.
		return "", &Error{Kind: ErrModuleNotFound, Context: context, Name: specifier}
	}
	return "", &Error{Kind: ErrModuleNotFound, Context: context, Name: specifier}
}

// probeFileOrDirectory implements the extension probe and manifest-main
// fallback of spec.md §4.2 step 3: exact path, then +".js", then
// +".json"; if the candidate is a directory, consult its manifest's
// "main" field, or index.js/index.json if there is none.
func (r *Resolver) probeFileOrDirectory(path string) (string, bool) {
	if found, ok := r.probeExtensions(path); ok {
		return found, true
	}
	if isDir(path) {
		if m := r.readManifest(path); m != nil && m.Main != "" {
			mainTarget := pathutil.Join(path, m.Main)
			if found, ok := r.probeFileOrDirectory(mainTarget); ok {
				return found, true
			}
		}
		if found, ok := r.probeExtensions(pathutil.Join(path, "index")); ok {
			return found, true
		}
	}
	return "", false
}

func (r *Resolver) probeExtensions(path string) (string, bool) {
	for _, ext := range extensionOrder {
		candidate := path + ext
		if isFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// applyBrowserField implements spec.md §4.2 step 5 and §9's "Dynamic
// field access on manifests" / Open Question (a). The nearest enclosing
// manifest (walking up from the resolved candidate) with a "browser"
// object is consulted. Both a package-relative key and the bare
// specifier may match; this implementation checks the package-relative
// key first since it is the more specific of the two (spec.md §9 Open
// Question (a): the source text leaves the precedence ambiguous, so this
// is a documented, tested choice — see DESIGN.md).
func (r *Resolver) applyBrowserField(context, originalSpecifier, candidate string, depth int) (ResolvedRef, bool, error) {
	dir := pathutil.Dir(candidate)
	for _, ancestor := range pathutil.Ancestors(dir) {
		if !r.withinRoot(ancestor) {
			break
		}
		m := r.readManifest(ancestor)
		if m == nil || m.Browser == nil {
			continue
		}
		relKey, relErr := pathutil.Rel(ancestor, candidate)
		if relErr == nil && !strings.HasPrefix(relKey, ".") {
			relKey = "./" + relKey
		}

		if relErr == nil {
			if m.Browser.Ignore[relKey] {
				return ResolvedRef{Kind: RefIgnore}, true, nil
			}
			if repl, ok := m.Browser.Replace[relKey]; ok {
				ref, err := r.resolve(placeholderReferrer(ancestor), repl, depth+1)
				return ref, true, err
			}
		}
		if m.Browser.Ignore[originalSpecifier] {
			return ResolvedRef{Kind: RefIgnore}, true, nil
		}
		if repl, ok := m.Browser.Replace[originalSpecifier]; ok {
			ref, err := r.resolve(placeholderReferrer(ancestor), repl, depth+1)
			return ref, true, err
		}
		// Only the nearest enclosing manifest's browser field applies.
		return ResolvedRef{}, false, nil
	}
	return ResolvedRef{}, false, nil
}

// placeholderReferrer fabricates a referrer path inside dir so that a
// recursive resolve() call computes the right context directory; the
// file name itself is never read.
func placeholderReferrer(dir string) string {
	return pathutil.Join(dir, "package.json")
}

func (r *Resolver) readManifest(dir string) *manifest.Manifest {
	manifestPath := pathutil.Join(dir, r.opts.PackageManager.ManifestName())
	if entry, ok := r.cache.Get(manifestPath); ok {
		return entry.m
	}
	m, err := manifest.Read(manifestPath)
	if err != nil {
		m = nil
	}
	r.cache.Add(manifestPath, manifestCacheEntry{m: m})
	return m
}

func (r *Resolver) withinRoot(path string) bool {
	path = pathutil.Clean(path)
	if path == r.root {
		return true
	}
	return strings.HasPrefix(path, r.root+string(os.PathSeparator))
}

// isExternal reports whether specifier matches InputOptions.External,
// either literally or as a glob pattern (e.g. "@scope/*"), grounded on
// doublestar's Match, see SPEC_FULL.md §2.
func (r *Resolver) isExternal(specifier string) bool {
	for _, pattern := range r.opts.External {
		if pattern == specifier {
			return true
		}
		if isGlobPattern(pattern) {
			if ok, err := doublestar.Match(pattern, specifier); err == nil && ok {
				return true
			}
		}
	}
	return false
}

func isGlobPattern(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

func pathExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

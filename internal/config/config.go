// Package config loads the ambient, environment-level settings that sit
// above spec.md's InputOptions (worker concurrency, optional .env
// bootstrap) and reproduces the original implementation's npm
// dev-dependency closure walk that "-N/--allow-npm-dev-deps" needs
// (spec.md §6, resolved against original_source/src/main.rs's
// `gather_npm_dev_deps`/`recurse_npm_deps`, see SPEC_FULL.md §3).
package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/bundlex/bundlex/internal/manifest"
	"github.com/bundlex/bundlex/internal/pathutil"
	"github.com/bundlex/bundlex/internal/resolver"
)

// Ambient is the process-wide configuration read from the environment,
// layered over any ".env" file in the working directory.
type Ambient struct {
	WorkerCount int
}

// LoadAmbient reads an optional ".env" file (a missing file is not an
// error) and then binds BUNDLEX_* environment variables through viper,
// grounded on SPEC_FULL.md §1.
func LoadAmbient() Ambient {
	_ = godotenv.Load() // optional; populates os.Environ() for viper below

	v := viper.New()
	v.SetEnvPrefix("BUNDLEX")
	v.AutomaticEnv()
	v.SetDefault("workers", runtime.GOMAXPROCS(0))

	workers := v.GetInt("workers")
	if workers < 1 {
		workers = 1
	}
	return Ambient{WorkerCount: workers}
}

// GatherNpmDevDeps walks up from inputPath looking for the nearest
// package.json, then recursively resolves the transitive dependency
// closure of every entry in its devDependencies, the set that
// "-N/--allow-npm-dev-deps" forces through the npm root even when
// --for-bower is active.
func GatherNpmDevDeps(inputPath string) (map[string]bool, error) {
	startDir := pathutil.Dir(inputPath)
	manifestPath, err := findNearestManifest(startDir, "package.json")
	if err != nil {
		return nil, err
	}
	pkg, err := manifest.Read(manifestPath)
	if err != nil {
		return nil, err
	}

	closure := map[string]bool{}
	if pkg == nil {
		return closure, nil
	}

	baseDir := pathutil.Dir(manifestPath)
	for dep := range pkg.DevDependencies {
		closure[dep] = true
		depRoot := pathutil.Join(baseDir, "node_modules", dep)
		if err := recurseNpmDeps(depRoot, closure); err != nil {
			return nil, err
		}
	}
	return closure, nil
}

func findNearestManifest(startDir, manifestName string) (string, error) {
	for _, ancestor := range pathutil.Ancestors(startDir) {
		candidate := pathutil.Join(ancestor, manifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no %s found above %s", manifestName, startDir)
}

// recurseNpmDeps mirrors the original `recurse_npm_deps`: read root's
// package.json, and for every dependency not already in names, find its
// node_modules install and recurse into it. A circular dependency is
// silently skipped rather than looped forever. A dependency missing from
// disk is tolerated if it's declared optional; otherwise it's a hard
// failure (a stale node_modules install).
func recurseNpmDeps(root string, names map[string]bool) error {
	pkgPath := pathutil.Join(root, "package.json")
	pkg, err := manifest.Read(pkgPath)
	if err != nil {
		return err
	}
	if pkg == nil {
		return fmt.Errorf("no package.json at %s; have you run `npm install`?", pkgPath)
	}

	for dep := range pkg.Dependencies {
		if names[dep] {
			continue // circular dependency, how exciting
		}
		names[dep] = true

		depRoot := findNodeModule(root, dep)
		if depRoot == "" {
			if _, optional := pkg.OptionalDependencies[dep]; optional {
				continue
			}
			return &resolver.Error{Kind: resolver.ErrModuleNotFound, Context: root, Name: dep}
		}
		if err := recurseNpmDeps(depRoot, names); err != nil {
			return err
		}
	}
	return nil
}

// findNodeModule walks up from start looking for start/node_modules/name,
// then each ancestor's node_modules/name in turn, mirroring the original
// `find_node_module`'s ancestor walk.
func findNodeModule(start string, name string) string {
	for _, ancestor := range pathutil.Ancestors(start) {
		candidate := pathutil.Join(ancestor, "node_modules", name)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
	}
	return ""
}

// ToResolverOptions builds the resolver.InputOptions from CLI flags,
// optionally enriched by GatherNpmDevDeps when allowNpmDevDeps is set.
func ToResolverOptions(forBower, allowNpmDevDeps bool, external []string, inputPath string) (resolver.InputOptions, error) {
	opts := resolver.InputOptions{
		PackageManager: resolver.Npm,
		External:       external,
	}
	if forBower {
		opts.PackageManager = resolver.Bower
	}
	if forBower && allowNpmDevDeps {
		forced, err := GatherNpmDevDeps(inputPath)
		if err != nil {
			return resolver.InputOptions{}, err
		}
		opts.ForcedNpmDeps = forced
	}
	return opts, nil
}

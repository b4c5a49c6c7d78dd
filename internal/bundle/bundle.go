// Package bundle implements the Module/ModuleTable data model and the
// bundler orchestrator of spec.md §3 and §4.5: it seeds the worker pool
// with the entry point, resolves every discovered specifier through the
// resolver, and assembles a deterministic, canonical-path-sorted module
// table.
package bundle

import (
	"fmt"
	"sort"

	"github.com/bundlex/bundlex/internal/logging"
	"github.com/bundlex/bundlex/internal/resolver"
	"github.com/bundlex/bundlex/internal/rewriter"
	"github.com/bundlex/bundlex/internal/sourcemap"
	"github.com/bundlex/bundlex/internal/workerpool"
)

// Module is the unit stored in the output table (spec.md §3).
type Module struct {
	ID       string
	Body     string
	Deps     map[string]resolver.ResolvedRef
	Segments []sourcemap.Segment
	Source   string // retained only when Options.KeepSource is set
}

// Table maps canonical path to Module. Use SortedPaths for the
// deterministic emission order the writer requires.
type Table map[string]*Module

// SortedPaths returns the table's keys in ascending lexical order, the
// order spec.md §4.5 requires the writer to emit modules in.
func (t Table) SortedPaths() []string {
	paths := make([]string, 0, len(t))
	for p := range t {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Options configures one orchestrator run.
type Options struct {
	WorkerCount int
	KeepSource  bool // retain Module.Source for the map's sourcesContent
	Log         *logging.Log
}

// Build runs spec.md §4.5's orchestrator algorithm to completion and
// returns the finished, deterministic module table. The entry must
// resolve to a Normal ref or Build fails immediately.
func Build(entry string, r *resolver.Resolver, opts Options) (Table, error) {
	entryRef, err := r.ResolveMain(entry)
	if err != nil {
		return nil, fmt.Errorf("resolving entry: %w", err)
	}
	if entryRef.Kind != resolver.RefNormal {
		return nil, fmt.Errorf("entry %q did not resolve to a module", entry)
	}

	pool := workerpool.New(opts.WorkerCount)
	defer pool.Close()

	table := Table{}
	submitted := map[string]bool{entryRef.Path: true}
	inFlight := 1
	pool.Submit(entryRef.Path)

	var firstErr error

	for inFlight > 0 {
		result := <-pool.Results()
		inFlight--

		if result.Err != nil {
			if opts.Log != nil {
				opts.Log.AddError(result.Path, "%s", result.Err)
			}
			if firstErr == nil {
				firstErr = result.Err
			}
			continue
		}

		deps := make(map[string]resolver.ResolvedRef, len(result.Sites))
		seenSpecifiers := make(map[string]bool, len(result.Sites))
		for _, site := range result.Sites {
			if seenSpecifiers[site.Specifier] {
				continue
			}
			seenSpecifiers[site.Specifier] = true

			ref, err := r.Resolve(result.Path, site.Specifier)
			if err != nil {
				if opts.Log != nil {
					opts.Log.AddError(result.Path, "%s", err)
				}
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			deps[site.Specifier] = ref

			if ref.Kind == resolver.RefNormal && !submitted[ref.Path] {
				submitted[ref.Path] = true
				inFlight++
				pool.Submit(ref.Path)
			}
		}

		body, segments, err := rewriter.Apply(result.Source, result.Sites, deps)
		if err != nil {
			if opts.Log != nil {
				opts.Log.AddError(result.Path, "%s", err)
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		module := &Module{ID: result.Path, Body: body, Deps: deps, Segments: segments}
		if opts.KeepSource {
			module.Source = result.Source
		}
		table[result.Path] = module
	}

	if firstErr != nil {
		return table, firstErr
	}
	return table, nil
}

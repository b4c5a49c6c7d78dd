// Command bundlex is the CLI entry point, spec.md §6.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"

	"github.com/bundlex/bundlex/internal/bundle"
	"github.com/bundlex/bundlex/internal/cli"
	"github.com/bundlex/bundlex/internal/config"
	"github.com/bundlex/bundlex/internal/logging"
	"github.com/bundlex/bundlex/internal/resolver"
	"github.com/bundlex/bundlex/internal/watcher"
	"github.com/bundlex/bundlex/internal/writer"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags, err := cli.ParseArgs(args)
	if err != nil {
		return reportCliError(err)
	}

	ambient := config.LoadAmbient()

	inputOptions, err := config.ToResolverOptions(flags.ForBower, flags.AllowNpmDevDeps, flags.External, flags.Input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", cli.AppName, err)
		return 1
	}

	root, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", cli.AppName, err)
		return 1
	}
	r := resolver.New(inputOptions, root)

	entryRef, err := r.ResolveMain(flags.Input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", cli.AppName, err)
		return 1
	}
	switch entryRef.Kind {
	case resolver.RefExternal:
		return reportCliError(&cli.CliError{Kind: cli.ErrExternalMain})
	case resolver.RefIgnore:
		return reportCliError(&cli.CliError{Kind: cli.ErrIgnoredMain})
	}
	// The module table is keyed by canonical path, and writer.Build looks
	// the entry up by that key.
	flags.Input = entryRef.Path

	if flags.Watch {
		return runWatch(flags, r, ambient)
	}
	return runOnce(flags, r, ambient)
}

func reportCliError(err error) int {
	cerr, ok := err.(*cli.CliError)
	if !ok {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if cerr.IsUsageOnly() {
		fmt.Println(cerr.Error())
	} else {
		fmt.Fprintf(os.Stderr, "%s: %s\n", cli.AppName, cerr.Error())
	}
	return 1
}

func wantsMap(flags *cli.Flags) bool {
	mode, _ := flags.ResolvedMapOutput()
	return mode != writer.MapSuppressed
}

func runOnce(flags *cli.Flags, r *resolver.Resolver, ambient config.Ambient) int {
	log := logging.New()
	table, err := bundle.Build(flags.Input, r, bundle.Options{
		WorkerCount: ambient.WorkerCount,
		KeepSource:  wantsMap(flags),
		Log:         log,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", cli.AppName, err)
		return 1
	}
	return emit(flags, table)
}

func emit(flags *cli.Flags, table bundle.Table) int {
	result, err := writer.Build(table, flags.Input, wantsMap(flags))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", cli.AppName, err)
		return 1
	}

	mode, mapPath := flags.ResolvedMapOutput()
	bundleBytes, mapBytes, err := writer.Finalize(result, mode, flags.Output, mapPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", cli.AppName, err)
		return 1
	}

	if err := writeOutput(flags.Output, bundleBytes); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", cli.AppName, err)
		return 1
	}
	if mapBytes != nil {
		if err := os.WriteFile(mapPath, mapBytes, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", cli.AppName, err)
			return 1
		}
	}
	return 0
}

func writeOutput(output string, data []byte) error {
	if output == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(output, data, 0o644)
}

// runWatch reproduces the original implementation's watch-mode terminal
// feedback ("build <output> ..." / "ready in N ms", then "update <output>
// ..." / "in N ms" per rebuild, with a bell on error unless --quiet-watch)
// using pterm's spinner instead of raw backspace-character erasing.
func runWatch(flags *cli.Flags, r *resolver.Resolver, ambient config.Ambient) int {
	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("build %s ...", flags.Output))
	start := time.Now()

	log := logging.New()
	table, err := bundle.Build(flags.Input, r, bundle.Options{
		WorkerCount: ambient.WorkerCount,
		KeepSource:  wantsMap(flags),
		Log:         log,
	})
	if err != nil {
		spinner.Fail(err.Error())
		return 1
	}
	if code := emit(flags, table); code != 0 {
		spinner.Fail("write failed")
		return code
	}
	spinner.Success(fmt.Sprintf("ready %s in %d ms", flags.Output, time.Since(start).Milliseconds()))

	bridge, err := watcher.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", cli.AppName, err)
		return 1
	}
	defer bridge.Close()

	watched := map[string]bool{}
	for path := range table {
		watched[path] = true
		_ = bridge.Watch(path)
	}

	const debounce = 5 * time.Millisecond
	for {
		ev, ok := <-bridge.Events()
		if !ok {
			return 0
		}
		if ev.Kind == watcher.EventError {
			continue
		}
		time.Sleep(debounce)
		drainPending(bridge.Events())

		updateSpinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("update %s ...", flags.Output))
		rebuildStart := time.Now()

		rebuildLog := logging.New()
		newTable, err := bundle.Build(flags.Input, r, bundle.Options{
			WorkerCount: ambient.WorkerCount,
			KeepSource:  wantsMap(flags),
			Log:         rebuildLog,
		})
		if err != nil {
			// Propagation policy (spec.md §7): a bundle error in watch mode is
			// reported, but the previous successful table stays watched.
			if !flags.QuietWatch {
				fmt.Print("\a")
			}
			updateSpinner.Fail(fmt.Sprintf("error: %s", err))
			continue
		}
		if code := emit(flags, newTable); code != 0 {
			if !flags.QuietWatch {
				fmt.Print("\a")
			}
			updateSpinner.Fail("write failed")
			continue
		}
		updateSpinner.Success(fmt.Sprintf("in %d ms", time.Since(rebuildStart).Milliseconds()))

		newWatched := map[string]bool{}
		for path := range newTable {
			newWatched[path] = true
		}
		toWatch, toUnwatch := watcher.Reconcile(watched, newWatched)
		for _, path := range toWatch {
			_ = bridge.Watch(path)
		}
		for _, path := range toUnwatch {
			_ = bridge.Unwatch(path)
		}
		watched = newWatched
	}
}

func drainPending(ch <-chan watcher.Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// Package cli parses bundlex's command line per spec.md §6, reproducing
// the original implementation's exact option-by-option parsing loop
// (interleaved positional/flag arguments, per-option duplicate
// detection) so the CliError taxonomy of spec.md §7 and the messages of
// original_source/src/main.rs come through unchanged. A cobra.Command is
// still built (newCobraCommand) purely to generate --help text in the
// ambient stack's own vocabulary; it is never executed.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bundlex/bundlex/internal/resolver"
	"github.com/bundlex/bundlex/internal/writer"
)

const (
	AppName = "bundlex"
	Version = "0.1.0"
)

// ErrorKind is spec.md §7's "CLI usage" error taxonomy.
type ErrorKind uint8

const (
	ErrHelp ErrorKind = iota
	ErrVersion
	ErrMissingFileName
	ErrExternalMain
	ErrIgnoredMain
	ErrDuplicateOption
	ErrMissingOptionValue
	ErrUnknownOption
	ErrUnexpectedArg
	ErrBadUsage
)

// CliError is one CLI-level failure, matching original_source/src/
// main.rs's CliError enum and its Display text.
type CliError struct {
	Kind    ErrorKind
	Option  string
	Message string
}

func (e *CliError) Error() string {
	switch e.Kind {
	case ErrHelp:
		return helpText()
	case ErrVersion:
		return versionText()
	case ErrMissingFileName:
		return usageText()
	case ErrExternalMain:
		return "main module is --external"
	case ErrIgnoredMain:
		return "main module is ignored by a browser field substitution"
	case ErrDuplicateOption:
		return fmt.Sprintf("option %s specified more than once", e.Option)
	case ErrMissingOptionValue:
		return fmt.Sprintf("missing value for option %s", e.Option)
	case ErrUnknownOption:
		return fmt.Sprintf("unknown option %s", e.Option)
	case ErrUnexpectedArg:
		return fmt.Sprintf("unexpected argument %s", e.Option)
	default:
		return e.Message
	}
}

// IsUsageOnly reports whether this error should print bare, with no
// "bundlex: " prefix — the original's main() special-cases exactly
// Help/Version/MissingFileName this way.
func (e *CliError) IsUsageOnly() bool {
	return e.Kind == ErrHelp || e.Kind == ErrVersion || e.Kind == ErrMissingFileName
}

// MapMode records which of the three mutually exclusive map flags (if
// any) was passed, deferring the actual output-path derivation to
// ResolvedMapOutput since that also needs the chosen output path.
type MapMode uint8

const (
	MapDefault MapMode = iota
	MapInlineMode
	MapFileMode
	MapNoneMode
)

// Flags is the parsed command line.
type Flags struct {
	Input           string
	Output          string
	MapPath         string
	MapMode         MapMode
	Watch           bool
	QuietWatch      bool
	External        []string
	ExternalCore    bool
	ForBower        bool
	AllowNpmDevDeps bool
}

// ResolvedMapOutput derives the effective MapOutputMode and map file path
// per spec.md §6: "When output = - and none is specified, maps are
// suppressed; otherwise maps default to <output>.map."
func (f *Flags) ResolvedMapOutput() (writer.MapOutputMode, string) {
	switch f.MapMode {
	case MapInlineMode:
		return writer.MapInline, ""
	case MapNoneMode:
		return writer.MapSuppressed, ""
	case MapFileMode:
		return writer.MapFile, f.MapPath
	default:
		if f.Output == "-" {
			return writer.MapSuppressed, ""
		}
		return writer.MapFile, f.Output + ".map"
	}
}

// ParseArgs walks args the way the original implementation does:
// positional arguments fill <input> then <output> in encounter order,
// and options may appear interleaved with them anywhere in the list.
func ParseArgs(args []string) (*Flags, error) {
	flags := &Flags{}
	var mapPathSet, mapInlineSet, noMapSet bool

	takeValue := func(i *int, opt string) (string, error) {
		*i++
		if *i >= len(args) {
			return "", &CliError{Kind: ErrMissingOptionValue, Option: opt}
		}
		return args[*i], nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "-" || !strings.HasPrefix(arg, "-") {
			switch {
			case flags.Input == "":
				flags.Input = arg
			case flags.Output == "":
				flags.Output = arg
			default:
				return nil, &CliError{Kind: ErrUnexpectedArg, Option: arg}
			}
			continue
		}

		switch arg {
		case "-h", "--help":
			return nil, &CliError{Kind: ErrHelp}
		case "-v", "--version":
			return nil, &CliError{Kind: ErrVersion}
		case "-w", "--watch":
			flags.Watch = true
		case "-W", "--quiet-watch":
			flags.Watch = true
			flags.QuietWatch = true
		case "-I", "--map-inline":
			mapInlineSet = true
		case "-M", "--no-map":
			noMapSet = true
		case "-b", "--for-bower":
			flags.ForBower = true
		case "-N", "--allow-npm-dev-deps":
			flags.AllowNpmDevDeps = true
		case "--external-core":
			flags.ExternalCore = true
		case "-x", "--external":
			v, err := takeValue(&i, arg)
			if err != nil {
				return nil, err
			}
			for _, m := range strings.Split(v, ",") {
				if m = strings.TrimSpace(m); m != "" {
					flags.External = append(flags.External, m)
				}
			}
		case "-m", "--map":
			if mapPathSet {
				return nil, &CliError{Kind: ErrDuplicateOption, Option: arg}
			}
			v, err := takeValue(&i, arg)
			if err != nil {
				return nil, err
			}
			flags.MapPath = v
			mapPathSet = true
		case "-i", "--input":
			if flags.Input != "" {
				return nil, &CliError{Kind: ErrDuplicateOption, Option: arg}
			}
			v, err := takeValue(&i, arg)
			if err != nil {
				return nil, err
			}
			flags.Input = v
		case "-o", "--output":
			if flags.Output != "" {
				return nil, &CliError{Kind: ErrDuplicateOption, Option: arg}
			}
			v, err := takeValue(&i, arg)
			if err != nil {
				return nil, err
			}
			flags.Output = v
		default:
			return nil, &CliError{Kind: ErrUnknownOption, Option: arg}
		}
	}

	exclusiveCount := 0
	for _, set := range []bool{mapInlineSet, noMapSet, mapPathSet} {
		if set {
			exclusiveCount++
		}
	}
	if exclusiveCount > 1 {
		return nil, &CliError{Kind: ErrBadUsage, Message: "--map-inline, --map <file>, and --no-map are mutually exclusive"}
	}

	if flags.Input == "" {
		return nil, &CliError{Kind: ErrMissingFileName}
	}
	if flags.Output == "" {
		flags.Output = "-"
	}

	switch {
	case mapInlineSet:
		flags.MapMode = MapInlineMode
	case noMapSet:
		flags.MapMode = MapNoneMode
	case mapPathSet:
		flags.MapMode = MapFileMode
	default:
		flags.MapMode = MapDefault
	}

	if flags.ExternalCore {
		flags.External = append(flags.External, resolver.CoreModules...)
	}

	return flags, nil
}

// newCobraCommand declares the flag set purely for FlagUsages()'s
// formatting; ParseArgs above never calls into it.
func newCobraCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "bundlex [options] <input> [output]"}
	cmd.Flags().StringP("input", "i", "", "Use <input> as the main module.")
	cmd.Flags().StringP("output", "o", "", "Write bundle to <output> and source map to <output>.map. Default: '-' for stdout.")
	cmd.Flags().StringP("map", "m", "", "Output source map to <map>.")
	cmd.Flags().BoolP("map-inline", "I", false, "Output source map inline as a data: URI.")
	cmd.Flags().BoolP("no-map", "M", false, "Suppress source map output when it would normally be implied.")
	cmd.Flags().BoolP("watch", "w", false, "Watch for changes to <input> and its dependencies.")
	cmd.Flags().BoolP("quiet-watch", "W", false, "Don't emit a bell character for errors while watching. Implies --watch.")
	cmd.Flags().StringP("external", "x", "", "Don't resolve or include modules named <module1>,<module2>,...; leave them as require() references.")
	cmd.Flags().Bool("external-core", false, "Treat all Node.js core modules as external.")
	cmd.Flags().BoolP("for-bower", "b", false, "Use bower.json instead of package.json.")
	cmd.Flags().BoolP("allow-npm-dev-deps", "N", false, "Under --for-bower, force devDependencies through the npm root.")
	return cmd
}

func usageText() string {
	return fmt.Sprintf("Usage: %s [options] <input> [output]\n       %s [-h | --help | -v | --version]", AppName, AppName)
}

func versionText() string {
	return fmt.Sprintf("%s v%s", AppName, Version)
}

func helpText() string {
	cmd := newCobraCommand()
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s\n\nOptions:\n%s", versionText(), usageText(), cmd.Flags().FlagUsages())
	return b.String()
}

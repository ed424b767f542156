// Package cli provides command-line interface functionality for shimbuild.
package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AndreyAkinshin/shimbuild/internal/errors"
	"github.com/AndreyAkinshin/shimbuild/internal/link"
	"github.com/AndreyAkinshin/shimbuild/internal/output"
	"github.com/AndreyAkinshin/shimbuild/internal/project"
	"github.com/AndreyAkinshin/shimbuild/internal/runner"
	"github.com/AndreyAkinshin/shimbuild/internal/scheduler"
)

// Version is set at build time.
var Version = "dev"

// wantsHelp returns true if args contain -h or --help.
func wantsHelp(args []string) bool {
	for _, arg := range args {
		if arg == "-h" || arg == "--help" {
			return true
		}
	}
	return false
}

// Run executes the CLI with the given arguments and returns an exit code.
// Without a command, "build" runs.
func Run(args []string) int {
	if len(args) > 0 {
		switch args[0] {
		case "-h", "--help", "help":
			printUsage()
			return 0
		case "--version", "version":
			fmt.Printf("shimbuild %s\n", Version)
			return 0
		}
	}

	opts, remaining, err := parseGlobalFlags(args)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.ExitConfigError
	}

	cmd := "build"
	var cmdArgs []string
	if len(remaining) > 0 {
		cmd = remaining[0]
		cmdArgs = remaining[1:]
	}

	switch cmd {
	case "build":
		return cmdBuild(cmdArgs, opts)
	case "link":
		opts.LinkOnly = true
		return cmdBuild(cmdArgs, opts)
	case "clean":
		return cmdClean(cmdArgs, opts)
	case "watch":
		return cmdWatch(cmdArgs, opts)
	case "stages":
		return cmdStages(cmdArgs, opts)
	case "config":
		return cmdConfig(cmdArgs, opts)
	default:
		out.ErrorPrefix("unknown command %q (run 'shimbuild help' for usage)", cmd)
		return errors.ExitConfigError
	}
}

// GlobalOptions holds parsed global flags.
type GlobalOptions struct {
	Jobs                 int
	LinkOnly             bool
	AllowCompileFailures bool
	ConfigPath           string
	Quiet                bool
	Verbose              bool
}

// parseGlobalFlags manually parses global flags from arguments.
//
// Manual parsing is used instead of stdlib flag package because flags can
// appear anywhere in the argument list, before or after the command, and
// custom error messages with usage hints are needed.
func parseGlobalFlags(args []string) (*GlobalOptions, []string, error) {
	opts := &GlobalOptions{}
	var remaining []string

	i := 0
	for i < len(args) {
		arg := args[i]

		switch {
		case arg == "--link-only":
			opts.LinkOnly = true
			i++
		case arg == "--allow-compile-failures":
			opts.AllowCompileFailures = true
			i++
		case arg == "-q" || arg == "--quiet":
			opts.Quiet = true
			i++
		case arg == "-v" || arg == "--verbose":
			opts.Verbose = true
			i++
		case arg == "-j" || arg == "--jobs":
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("%s requires a value", arg)
			}
			n, err := parseJobs(args[i+1])
			if err != nil {
				return nil, nil, err
			}
			opts.Jobs = n
			i += 2
		case strings.HasPrefix(arg, "--jobs="):
			n, err := parseJobs(strings.TrimPrefix(arg, "--jobs="))
			if err != nil {
				return nil, nil, err
			}
			opts.Jobs = n
			i++
		case strings.HasPrefix(arg, "-j") && len(arg) > 2:
			n, err := parseJobs(arg[2:])
			if err != nil {
				return nil, nil, err
			}
			opts.Jobs = n
			i++
		case arg == "--config":
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("--config requires a value")
			}
			opts.ConfigPath = args[i+1]
			i += 2
		case strings.HasPrefix(arg, "--config="):
			opts.ConfigPath = strings.TrimPrefix(arg, "--config=")
			i++
		default:
			remaining = append(remaining, arg)
			i++
		}
	}

	if err := validateGlobalOptions(opts); err != nil {
		return nil, nil, err
	}

	applyVerbosityToOutput(opts)

	return opts, remaining, nil
}

func parseJobs(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid --jobs value %q\n  example: shimbuild build -j 8", value)
	}
	if n < scheduler.MinWorkers || n > scheduler.MaxWorkers {
		return 0, fmt.Errorf("--jobs=%d out of range [%d-%d]", n, scheduler.MinWorkers, scheduler.MaxWorkers)
	}
	return n, nil
}

// validateGlobalOptions checks that global options are valid.
func validateGlobalOptions(opts *GlobalOptions) error {
	if opts.Quiet && opts.Verbose {
		return fmt.Errorf("--quiet and --verbose are mutually exclusive")
	}
	return nil
}

func printUsage() {
	w := output.New()

	w.HelpTitle("shimbuild - incremental compile and link through a compatibility layer")

	w.HelpSection("Usage:")
	w.HelpUsage("shimbuild [command] [flags]   Run a command (default: build)")

	w.HelpSection("Build Commands:")
	w.HelpCommand("build", "Compile stale files, then link every stage", widthCommand)
	w.HelpCommand("link", "Link only, skipping compilation (same as --link-only)", widthCommand)
	w.HelpCommand("clean", "Remove object files no compile record produces", widthCommand)
	w.HelpCommand("watch", "Rebuild whenever the compile database changes", widthCommand)

	w.HelpSection("Utility Commands:")
	w.HelpCommand("stages", "List the configured link stages", widthCommand)
	w.HelpCommand("config validate", "Validate project configuration", widthCommand)
	w.HelpCommand("version", "Show version information", widthCommand)

	// Show the project's stages when run inside one.
	if proj, err := project.LoadProject(); err == nil {
		w.HelpSection("Stages:")
		for _, st := range proj.Config.Link.Stages {
			w.HelpCommand(st.Name, fmt.Sprintf("%s (%s)", link.KindLabel(st.Kind), st.Tool), widthCommand)
		}
	}

	printGlobalFlags(w)

	w.HelpSection("Examples:")
	w.HelpExample("shimbuild", "Incremental build")
	w.HelpExample("shimbuild -j 16", "Build with 16 compile workers")
	w.HelpExample("shimbuild link", "Relink without compiling")
	w.HelpExample("shimbuild --allow-compile-failures", "Link despite failed compiles")
	w.Println("")
}

func printGlobalFlags(w *output.Writer) {
	w.HelpSection("Global Flags:")
	w.HelpFlag("-j, --jobs=<n>", "Compile workers (default: CPU count)", widthFlagWithValue)
	w.HelpFlag("--link-only", "Skip compilation and always relink", widthFlagWithValue)
	w.HelpFlag("--allow-compile-failures", "Link even when compile tasks failed", widthFlagWithValue)
	w.HelpFlag("--config=<path>", "Use this config instead of .shimbuild/config.json", widthFlagWithValue)
	w.HelpFlag("-q, --quiet", "Minimal output (errors only)", widthFlagWithValue)
	w.HelpFlag("-v, --verbose", "Show generated scripts and shim commands", widthFlagWithValue)
	w.HelpFlag("-h, --help", "Show this help", widthFlagWithValue)
	w.HelpFlag("--version", "Show version", widthFlagWithValue)

	w.HelpSection("Environment:")
	w.HelpEnvVar(scheduler.JobsEnvVar+"=<n>", "Default compile workers", widthEnvVar)
	w.HelpEnvVar(runner.AllowFailuresEnvVar+"=1", "Same as --allow-compile-failures", widthEnvVar)
	w.HelpEnvVar(runner.LegacyAllowFailuresEnvVar+"=1", "Legacy spelling of the above", widthEnvVar)
}

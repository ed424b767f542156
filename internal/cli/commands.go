package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/AndreyAkinshin/shimbuild/internal/errors"
	"github.com/AndreyAkinshin/shimbuild/internal/link"
	"github.com/AndreyAkinshin/shimbuild/internal/output"
	"github.com/AndreyAkinshin/shimbuild/internal/project"
	"github.com/AndreyAkinshin/shimbuild/internal/runner"
	"github.com/AndreyAkinshin/shimbuild/internal/watch"
)

// out is the shared output writer for CLI commands.
var out = output.New()

// Help text alignment widths for consistent formatting.
const (
	widthCommand       = 16 // Width for command names like "config validate"
	widthFlagShort     = 10 // Width for short flags like "-h, --help"
	widthFlagWithValue = 26 // Width for global flags like "--allow-compile-failures"
	widthEnvVar        = 36 // Width for environment variables
)

// applyVerbosityToOutput configures the output writer based on verbosity settings.
func applyVerbosityToOutput(opts *GlobalOptions) {
	out.SetQuiet(opts.Quiet)
	out.SetVerbose(opts.Verbose)
}

// loadProject loads the project configuration and handles errors uniformly.
// Returns the project and exit code 0 on success, or nil and appropriate exit code on failure.
func loadProject(opts *GlobalOptions) (*project.Project, int) {
	var proj *project.Project
	var err error
	if opts.ConfigPath != "" {
		proj, err = project.LoadConfigFile(opts.ConfigPath)
	} else {
		proj, err = project.LoadProject()
	}
	if err != nil {
		out.ErrorPrefix("%v", err)
		return nil, errors.GetExitCode(err)
	}
	for _, w := range proj.Warnings {
		out.WarningSimple("%s", w)
	}
	return proj, 0
}

func newRunner(proj *project.Project, opts *GlobalOptions) (*runner.Runner, error) {
	return runner.New(proj.Config, runner.Options{
		LinkOnly:             opts.LinkOnly,
		AllowCompileFailures: runner.AllowCompileFailures(opts.AllowCompileFailures),
		Jobs:                 opts.Jobs,
		Out:                  out,
	})
}

// interruptContext is cancelled on SIGINT or SIGTERM. In-flight shim
// processes are killed through their command contexts.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// cmdBuild runs a full build, or a link-only build when opts.LinkOnly is set.
func cmdBuild(args []string, opts *GlobalOptions) int {
	if wantsHelp(args) {
		printBuildUsage(opts.LinkOnly)
		return 0
	}
	if len(args) > 0 {
		out.ErrorPrefix("build: unexpected argument %q", args[0])
		return errors.ExitConfigError
	}

	proj, exitCode := loadProject(opts)
	if proj == nil {
		return exitCode
	}

	r, err := newRunner(proj, opts)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.GetExitCode(err)
	}

	ctx, stop := interruptContext()
	defer stop()

	res, err := r.Build(ctx)
	if err != nil {
		if opts.Verbose || len(res.Phases) > 0 {
			runner.PrintSummary(res, out)
		}
		out.ErrorPrefix("%v", err)
		return errors.GetExitCode(err)
	}
	if opts.Verbose {
		runner.PrintSummary(res, out)
	}
	return 0
}

// cmdClean removes orphaned object files.
func cmdClean(args []string, opts *GlobalOptions) int {
	if wantsHelp(args) {
		printCleanUsage()
		return 0
	}

	proj, exitCode := loadProject(opts)
	if proj == nil {
		return exitCode
	}

	r, err := newRunner(proj, opts)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.GetExitCode(err)
	}
	if _, err := r.Clean(); err != nil {
		out.ErrorPrefix("%v", err)
		return errors.GetExitCode(err)
	}
	return 0
}

// cmdWatch builds once, then rebuilds whenever the compile database changes.
func cmdWatch(args []string, opts *GlobalOptions) int {
	if wantsHelp(args) {
		printWatchUsage()
		return 0
	}

	proj, exitCode := loadProject(opts)
	if proj == nil {
		return exitCode
	}

	r, err := newRunner(proj, opts)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.GetExitCode(err)
	}

	ctx, stop := interruptContext()
	defer stop()

	w := &watch.Watcher{
		Path:       proj.Config.DatabasePath(),
		BuildFirst: true,
		Build: func(ctx context.Context) error {
			_, err := r.Build(ctx)
			return err
		},
		Out: out,
	}
	if err := w.Run(ctx); err != nil {
		out.ErrorPrefix("%v", err)
		return errors.ExitEnvironmentError
	}
	return 0
}

// cmdStages lists the configured link stages in execution order.
func cmdStages(args []string, opts *GlobalOptions) int {
	if wantsHelp(args) {
		printStagesUsage()
		return 0
	}

	proj, exitCode := loadProject(opts)
	if proj == nil {
		return exitCode
	}

	cfg := proj.Config
	for _, st := range cfg.Link.Stages {
		out.StageInfo(st.Name, link.KindLabel(st.Kind), st.Tool)
		out.StageDetail("objects", fmt.Sprintf("%s/%s (min %d)", cfg.StageObjectDir(st), st.ObjectPattern, st.MinObjects))
		out.StageDetail("outputs", strings.Join(cfg.StageOutputs(st), ", "))
		if len(st.DependsOn) > 0 {
			out.StageDetail("depends_on", strings.Join(st.DependsOn, ", "))
		}
	}
	return 0
}

// cmdConfig handles configuration utilities.
func cmdConfig(args []string, opts *GlobalOptions) int {
	if len(args) == 0 {
		out.ErrorPrefix("config: subcommand required (validate)")
		return errors.ExitConfigError
	}

	switch args[0] {
	case "validate":
		return cmdConfigValidate(opts)
	case "-h", "--help":
		printConfigUsage()
		return 0
	default:
		out.ErrorPrefix("config: unknown subcommand %q", args[0])
		return errors.ExitConfigError
	}
}

func cmdConfigValidate(opts *GlobalOptions) int {
	proj, exitCode := loadProject(opts)
	if proj == nil {
		return exitCode
	}

	cfg := proj.Config
	counts := make(map[string]int)
	for _, st := range cfg.Link.Stages {
		counts[st.Kind]++
	}
	var parts []string
	for _, kind := range []string{"archive", "executable", "shared_library"} {
		if n := counts[kind]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, strings.ReplaceAll(kind, "_", " ")))
		}
	}

	out.ValidationSuccess("Configuration is valid.")
	out.SummaryItem("Project", cfg.Project.Name)
	out.SummaryItem("Stages", fmt.Sprintf("%d (%s)", len(cfg.Link.Stages), strings.Join(parts, ", ")))
	out.SummaryItem("Shim", strings.Join(cfg.Shim.Command, " "))
	out.SummaryItem("Database", cfg.DatabasePath())
	if len(proj.Warnings) > 0 {
		out.SummaryItem("Warnings", fmt.Sprintf("%d", len(proj.Warnings)))
	}
	return 0
}

func printBuildUsage(linkOnly bool) {
	w := output.New()

	cmd := "build"
	desc := "compile stale files, then link every stage"
	if linkOnly {
		cmd = "link"
		desc = "link every stage without compiling"
	}
	w.HelpTitle(fmt.Sprintf("shimbuild %s - %s", cmd, desc))

	w.HelpSection("Usage:")
	w.HelpUsage(fmt.Sprintf("shimbuild %s [flags]", cmd))

	w.HelpSection("Description:")
	if linkOnly {
		w.Println("  Links every stage from the object files already on disk. The")
		w.Println("  up-to-date check is skipped, so outputs are always relinked.")
	} else {
		w.Println("  Compiles every record of the compile database whose object file is")
		w.Println("  older than its source, then links the stages in order. When nothing")
		w.Println("  changed and every output exists, linking is skipped.")
	}

	printGlobalFlags(w)

	w.HelpSection("Examples:")
	titleCase := cases.Title(language.English)
	w.HelpExample(fmt.Sprintf("shimbuild %s", cmd), titleCase.String(cmd)+" with default settings")
	w.HelpExample(fmt.Sprintf("shimbuild %s -v", cmd), titleCase.String(cmd)+" showing generated scripts")
	w.Println("")
}

func printCleanUsage() {
	w := output.New()

	w.HelpTitle("shimbuild clean - remove orphaned object files")

	w.HelpSection("Usage:")
	w.HelpUsage("shimbuild clean")

	w.HelpSection("Description:")
	w.Println("  Deletes object files under the clean directories that no record of")
	w.Println("  the compile database produces, so deleted sources cannot be linked.")

	w.HelpSection("Options:")
	w.HelpFlag("-h, --help", "Show this help", widthFlagShort)
	w.Println("")
}

func printWatchUsage() {
	w := output.New()

	w.HelpTitle("shimbuild watch - rebuild on compile database changes")

	w.HelpSection("Usage:")
	w.HelpUsage("shimbuild watch [flags]")

	w.HelpSection("Description:")
	w.Println("  Builds once, then rebuilds each time the compile database is")
	w.Println("  regenerated. Stop with Ctrl+C.")

	printGlobalFlags(w)
	w.Println("")
}

func printStagesUsage() {
	w := output.New()

	w.HelpTitle("shimbuild stages - list link stages")

	w.HelpSection("Usage:")
	w.HelpUsage("shimbuild stages")

	w.HelpSection("Options:")
	w.HelpFlag("-h, --help", "Show this help", widthFlagShort)
	w.Println("")
}

func printConfigUsage() {
	w := output.New()

	w.HelpTitle("shimbuild config - configuration utilities")

	w.HelpSection("Usage:")
	w.HelpUsage("shimbuild config <subcommand>")

	w.HelpSection("Subcommands:")
	w.HelpCommand("validate", "Validate the project configuration", widthFlagShort)

	w.HelpSection("Options:")
	w.HelpFlag("-h, --help", "Show this help", widthFlagShort)

	w.HelpSection("Examples:")
	w.HelpExample("shimbuild config validate", "Validate project configuration")
	w.Println("")
}

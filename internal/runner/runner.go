// Package runner orchestrates a build: compile the stale invocations, clean
// up orphaned objects, gate on object counts and compile failures, then
// link and verify the final artifacts.
package runner

import (
	"os"
	"strings"

	"github.com/AndreyAkinshin/shimbuild/internal/compdb"
	"github.com/AndreyAkinshin/shimbuild/internal/config"
	"github.com/AndreyAkinshin/shimbuild/internal/errors"
	"github.com/AndreyAkinshin/shimbuild/internal/link"
	"github.com/AndreyAkinshin/shimbuild/internal/output"
	"github.com/AndreyAkinshin/shimbuild/internal/pathmap"
	"github.com/AndreyAkinshin/shimbuild/internal/scheduler"
	"github.com/AndreyAkinshin/shimbuild/internal/shim"
)

// Environment variables that enable linking despite compile failures.
// The unprefixed name is accepted for existing build scripts.
const (
	AllowFailuresEnvVar       = "SHIMBUILD_ALLOW_COMPILE_FAILURES"
	LegacyAllowFailuresEnvVar = "ALLOW_COMPILE_FAILURES"
)

// Options configures a build run.
type Options struct {
	// LinkOnly skips compilation and the up-to-date short-circuit.
	LinkOnly bool

	// AllowCompileFailures links even when critical compile tasks failed.
	// It never bypasses threshold abort, object counts, link failures or
	// missing artifacts.
	AllowCompileFailures bool

	// Jobs is the --jobs value; zero means not given.
	Jobs int

	// Shim overrides the compatibility-layer executor built from config.
	Shim shim.Runner

	Out *output.Writer
}

// Runner runs builds for one loaded configuration.
type Runner struct {
	cfg      *config.Config
	opts     Options
	out      *output.Writer
	shim     shim.Runner
	check    func() error // compatibility layer lookup; nil for injected shims
	mapper   *pathmap.Mapper
	resolver *compdb.Resolver
	stages   []link.Stage
}

// New prepares a Runner. cfg must have defaults applied and be validated.
func New(cfg *config.Config, opts Options) (*Runner, error) {
	out := opts.Out
	if out == nil {
		out = output.New()
	}

	m, err := cfg.Mapper()
	if err != nil {
		return nil, errors.WrapKind(errors.KindConfig, err, "invalid path roots")
	}
	buildTool, err := m.ToTool(cfg.Paths.BuildDir)
	if err != nil {
		return nil, errors.WrapKind(errors.KindConfig, err, "build directory is not mappable")
	}

	runner := opts.Shim
	var check func() error
	if runner == nil {
		executor, err := shim.NewFromConfig(cfg, out)
		if err != nil {
			return nil, err
		}
		runner = executor
		check = executor.CheckAvailable
	}

	return &Runner{
		cfg:      cfg,
		opts:     opts,
		out:      out,
		shim:     runner,
		check:    check,
		mapper:   m,
		resolver: &compdb.Resolver{Mapper: m, BuildDir: buildTool},
		stages:   link.StagesFromConfig(cfg),
	}, nil
}

// AllowCompileFailures resolves the override.
// Precedence: explicit flag > SHIMBUILD_ALLOW_COMPILE_FAILURES >
// ALLOW_COMPILE_FAILURES > default (false)
func AllowCompileFailures(explicit bool) bool {
	if explicit {
		return true
	}
	for _, name := range []string{AllowFailuresEnvVar, LegacyAllowFailuresEnvVar} {
		if env := os.Getenv(name); env != "" {
			env = strings.ToLower(env)
			return env == "1" || env == "true" || env == "yes"
		}
	}
	return false
}

// workers resolves the pool size and reports an ignored environment value.
func (r *Runner) workers() (int, error) {
	n, warning, err := scheduler.ResolveWorkers(r.opts.Jobs, r.cfg.Compile.Jobs, os.Getenv(scheduler.JobsEnvVar))
	if err != nil {
		return 0, errors.Configf("%v", err)
	}
	if warning != "" {
		r.out.Warning("%s", warning)
	}
	return n, nil
}

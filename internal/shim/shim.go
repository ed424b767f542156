// Package shim runs commands through an out-of-process compatibility layer
// (wine64 cmd /c by default). Each call materializes a throwaway script in
// the scratch directory and hands its tool-form path to the layer.
package shim

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/AndreyAkinshin/shimbuild/internal/config"
	"github.com/AndreyAkinshin/shimbuild/internal/errors"
	"github.com/AndreyAkinshin/shimbuild/internal/output"
	"github.com/AndreyAkinshin/shimbuild/internal/pathmap"
)

// waitDelay bounds how long Run waits for grandchildren holding the output
// pipes after the shim process itself was killed on timeout.
const waitDelay = 2 * time.Second

// Request describes one shim invocation.
type Request struct {
	// ID names the script file. Concurrent callers must use distinct IDs.
	ID string
	// Dir is the tool-form working directory.
	Dir     string
	Command string
	Timeout time.Duration
}

// Result is the outcome of a shim invocation that ran to completion.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Success reports whether the command exited with status 0.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Combined returns stdout followed by stderr.
func (r *Result) Combined() string {
	switch {
	case r.Stdout == "":
		return r.Stderr
	case r.Stderr == "":
		return r.Stdout
	default:
		return strings.TrimRight(r.Stdout, "\n") + "\n" + r.Stderr
	}
}

// Runner executes shim requests. *Executor is the production implementation.
type Runner interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// Options configures an Executor.
type Options struct {
	Command         []string // argv prefix; the script's tool path is appended
	Preamble        []string
	Chdir           string // fmt format with one %s
	ScriptDir       string // host path
	ScriptPrefix    string
	ScriptExtension string
	LineEnding      string // "lf" or "crlf"
	KeepScripts     bool
	Mapper          *pathmap.Mapper
}

// Executor runs commands through the compatibility layer.
type Executor struct {
	opts Options
	out  *output.Writer
}

// New creates an Executor. out receives verbose diagnostics and may be nil.
func New(opts Options, out *output.Writer) *Executor {
	return &Executor{opts: opts, out: out}
}

// NewFromConfig creates an Executor from a loaded configuration with
// defaults applied.
func NewFromConfig(cfg *config.Config, out *output.Writer) (*Executor, error) {
	m, err := cfg.Mapper()
	if err != nil {
		return nil, errors.WrapKind(errors.KindConfig, err, "invalid path roots")
	}
	s := cfg.Shim
	return New(Options{
		Command:         s.Command,
		Preamble:        s.Preamble,
		Chdir:           s.Chdir,
		ScriptDir:       cfg.Paths.ScratchDir,
		ScriptPrefix:    s.ScriptPrefix,
		ScriptExtension: s.ScriptExtension,
		LineEnding:      s.LineEnding,
		KeepScripts:     s.KeepScripts,
		Mapper:          m,
	}, out), nil
}

// CheckAvailable returns an environment error if the compatibility layer
// binary cannot be found.
func (e *Executor) CheckAvailable() error {
	if len(e.opts.Command) == 0 {
		return errors.Environment("shim command is empty")
	}
	if _, err := exec.LookPath(e.opts.Command[0]); err != nil {
		return errors.WrapKind(errors.KindEnvironment, err,
			fmt.Sprintf("shim %q not found in PATH", e.opts.Command[0]))
	}
	return nil
}

// ScriptPath returns the host path of the script used for id.
func (e *Executor) ScriptPath(id string) string {
	return filepath.Join(e.opts.ScriptDir, e.opts.ScriptPrefix+id+e.opts.ScriptExtension)
}

// Run writes the script for req, runs it through the compatibility layer
// and waits for it to finish or time out. A non-zero exit is reported in
// the Result, not as an error. A timeout returns the partial Result along
// with a timeout error.
func (e *Executor) Run(ctx context.Context, req Request) (*Result, error) {
	if req.ID == "" {
		return nil, errors.New("shim request has no ID")
	}

	hostScript := e.ScriptPath(req.ID)
	toolScript, err := e.opts.Mapper.ToTool(hostScript)
	if err != nil {
		return nil, errors.WrapKind(errors.KindConfig, err, "script directory is not mappable")
	}

	script := RenderScript(e.opts.Preamble, e.opts.Chdir, req.Dir, req.Command, e.opts.LineEnding)
	if err := os.WriteFile(hostScript, []byte(script), 0644); err != nil {
		return nil, errors.Wrap(err, "failed to write script "+hostScript)
	}
	if !e.opts.KeepScripts {
		defer os.Remove(hostScript)
	}

	runCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, e.opts.Command[1:]...), toolScript)
	if e.out != nil {
		e.out.Debug("shim %s: %s %s", req.ID, e.opts.Command[0], strings.Join(args, " "))
		for _, line := range strings.Split(strings.TrimRight(script, "\r\n"), "\n") {
			e.out.Debug("  | %s", strings.TrimRight(line, "\r"))
		}
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, e.opts.Command[0], args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), req.ID+" cancelled before start")
		}
		if stderrors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, errors.Timeout(req.ID, req.Timeout)
		}
		return nil, errors.WrapKind(errors.KindEnvironment, err,
			fmt.Sprintf("failed to start shim %q", e.opts.Command[0]))
	}
	waitErr := cmd.Wait()

	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if stderrors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		res.ExitCode = -1
		return res, errors.Timeout(req.ID, req.Timeout)
	}
	if ctx.Err() != nil {
		res.ExitCode = -1
		return res, errors.Wrap(ctx.Err(), req.ID+" cancelled")
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if stderrors.As(waitErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, errors.Wrap(waitErr, req.ID+" failed")
	}
	return res, nil
}

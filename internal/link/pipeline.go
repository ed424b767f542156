package link

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/AndreyAkinshin/shimbuild/internal/artifact"
	"github.com/AndreyAkinshin/shimbuild/internal/errors"
	"github.com/AndreyAkinshin/shimbuild/internal/output"
	"github.com/AndreyAkinshin/shimbuild/internal/pathmap"
	"github.com/AndreyAkinshin/shimbuild/internal/shim"
)

// Options configures a Pipeline.
type Options struct {
	Mapper             *pathmap.Mapper
	BuildDir           string // host path; link commands run here
	ScratchDir         string // host path; response files go here
	Timeout            time.Duration
	MaxDiagnosticBytes int
}

// Pipeline links stages strictly in order.
type Pipeline struct {
	stages []Stage
	runner shim.Runner
	opts   Options
	out    *output.Writer
}

// New creates a Pipeline over stages in the given order.
func New(stages []Stage, runner shim.Runner, opts Options, out *output.Writer) *Pipeline {
	return &Pipeline{stages: stages, runner: runner, opts: opts, out: out}
}

// Stages returns the stages in execution order.
func (p *Pipeline) Stages() []Stage {
	return p.stages
}

// UpToDate reports whether linking can be skipped: every final artifact
// exists, compileFailures is zero, and no object under any stage object
// directory is newer than the oldest final artifact. The second result
// explains why linking is needed.
func (p *Pipeline) UpToDate(compileFailures int) (bool, string, error) {
	if compileFailures > 0 {
		return false, fmt.Sprintf("%d compile failures this run", compileFailures), nil
	}

	var oldest time.Time
	var oldestPath string
	for _, a := range FinalArtifacts(p.stages) {
		info, err := os.Stat(a)
		if err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				return false, a + " does not exist", nil
			}
			return false, "", errors.Wrap(err, "failed to stat "+a)
		}
		if oldestPath == "" || info.ModTime().Before(oldest) {
			oldest = info.ModTime()
			oldestPath = a
		}
	}
	if oldestPath == "" {
		return false, "no final artifacts declared", nil
	}

	for _, st := range p.stages {
		newest, newestPath, err := artifact.NewestModTime([]string{st.ObjectDir}, st.ObjectPattern)
		if err != nil {
			return false, "", errors.Wrap(err, "failed to scan "+st.ObjectDir)
		}
		if newest.After(oldest) {
			return false, fmt.Sprintf("%s is newer than %s", newestPath, oldestPath), nil
		}
	}
	return true, "", nil
}

// LinkAll runs every stage in order and stops at the first failure.
func (p *Pipeline) LinkAll(ctx context.Context) error {
	for _, st := range p.stages {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "linking interrupted")
		}
		if err := p.linkStage(ctx, st); err != nil {
			p.out.StageFailed(st.Name, err)
			return err
		}
	}
	return nil
}

// KindLabel renders a stage kind for headers, e.g. "Shared Library".
func KindLabel(kind string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(kind, "_", " "))
}

func (p *Pipeline) linkStage(ctx context.Context, st Stage) error {
	p.out.StageStart(st.Name, KindLabel(st.Kind))

	objects, err := p.collectObjects(st)
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		return errors.StageError(st.Name, fmt.Sprintf("no object files matching %s under %s", st.ObjectPattern, st.ObjectDir))
	}
	p.out.Info("  Found %d object files", len(objects))

	rspHost := filepath.Join(p.opts.ScratchDir, st.ResponseFile)
	rspTool, err := p.opts.Mapper.ToTool(rspHost)
	if err != nil {
		return errors.WrapKind(errors.KindConfig, err, "scratch directory is not mappable")
	}
	if err := os.WriteFile(rspHost, []byte(ResponseFile(objects, st.Libraries, st.SystemLibraries)), 0644); err != nil {
		return errors.Wrap(err, "failed to write response file "+rspHost)
	}

	buildTool, err := p.opts.Mapper.ToTool(p.opts.BuildDir)
	if err != nil {
		return errors.WrapKind(errors.KindConfig, err, "build directory is not mappable")
	}

	res, err := p.runner.Run(ctx, shim.Request{
		ID:      "link-" + st.Name,
		Dir:     buildTool,
		Command: Command(st.Tool, st.Args, rspTool),
		Timeout: p.opts.Timeout,
	})
	if err != nil {
		be := errors.StageError(st.Name, err.Error())
		be.Cause = err
		return be
	}
	if !res.Success() {
		msg := fmt.Sprintf("%s exited with %d", st.Tool, res.ExitCode)
		if diag := strings.TrimSpace(shim.Truncate(res.Combined(), p.opts.MaxDiagnosticBytes)); diag != "" {
			msg += "\n" + diag
		}
		return errors.StageError(st.Name, msg)
	}

	p.out.StageSuccess(st.Name, res.Duration.Round(time.Millisecond).String())
	return nil
}

// collectObjects finds a stage's objects and converts them to tool form.
func (p *Pipeline) collectObjects(st Stage) ([]string, error) {
	hostObjs, err := artifact.FindObjects(st.ObjectDir, st.ObjectPattern)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan "+st.ObjectDir)
	}
	toolObjs := make([]string, 0, len(hostObjs))
	for _, h := range hostObjs {
		tp, err := p.opts.Mapper.ToTool(h)
		if err != nil {
			return nil, errors.WrapKind(errors.KindConfig, err, "object is not mappable")
		}
		toolObjs = append(toolObjs, tp)
	}
	return toolObjs, nil
}

// ResponseFile renders a response file: quoted objects one per line, then
// libraries in declaration order, then system libraries.
func ResponseFile(objects, libraries, systemLibraries []string) string {
	var b strings.Builder
	for _, o := range objects {
		fmt.Fprintf(&b, "\"%s\"\n", o)
	}
	for _, l := range libraries {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	for _, l := range systemLibraries {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

// Command renders "<tool> <args...> @<response file>".
func Command(tool string, args []string, rspTool string) string {
	parts := make([]string, 0, len(args)+2)
	parts = append(parts, tool)
	parts = append(parts, args...)
	parts = append(parts, "@"+rspTool)
	return strings.Join(parts, " ")
}

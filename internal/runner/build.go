package runner

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/AndreyAkinshin/shimbuild/internal/artifact"
	"github.com/AndreyAkinshin/shimbuild/internal/compdb"
	"github.com/AndreyAkinshin/shimbuild/internal/errors"
	"github.com/AndreyAkinshin/shimbuild/internal/link"
	"github.com/AndreyAkinshin/shimbuild/internal/lock"
	"github.com/AndreyAkinshin/shimbuild/internal/report"
	"github.com/AndreyAkinshin/shimbuild/internal/scheduler"
)

// Phase names recorded in a Result.
const (
	PhaseCompile  = "compile"
	PhaseClean    = "clean"
	PhaseVerify   = "verify"
	PhaseLink     = "link"
	PhaseArtifact = "artifacts"
)

// Build runs one full build. The returned Result is non-nil even when the
// build fails, so callers can print a summary. The report is written only
// while the build lock is held.
func (r *Runner) Build(ctx context.Context) (*Result, error) {
	res := &Result{StartTime: time.Now()}

	unlock, err := r.acquire()
	if err != nil {
		res.finish(err)
		return res, err
	}
	defer unlock()

	rep := report.New(r.cfg.Project.Name, res.StartTime)
	rep.LinkOnly = r.opts.LinkOnly

	err = r.build(ctx, res)
	res.finish(err)

	if r.cfg.ReportEnabled() {
		r.fillReport(rep, res)
		status := report.StatusSucceeded
		if res.NothingToDo {
			status = report.StatusNothingToDo
		}
		rep.Finish(status, res.Duration, err)
		if werr := report.Write(r.cfg.ReportPath(), rep); werr != nil {
			r.out.Warning("failed to write build report: %v", werr)
		}
	}
	return res, err
}

// acquire checks the compatibility layer and takes the build lock.
func (r *Runner) acquire() (unlock func(), err error) {
	if r.check != nil {
		if err := r.check(); err != nil {
			return nil, err
		}
	}
	return r.lock()
}

func (r *Runner) build(ctx context.Context, res *Result) error {
	if !r.opts.LinkOnly {
		if err := r.compile(ctx, res); err != nil {
			return err
		}
	}

	if err := r.phase(res, PhaseVerify, func() error { return r.verify(res) }); err != nil {
		return err
	}

	if !r.opts.LinkOnly {
		p := r.pipeline()
		ok, reason, err := p.UpToDate(res.compileFailures())
		if err != nil {
			return err
		}
		if ok {
			res.NothingToDo = true
			r.out.Info("All outputs up to date, skipping link steps.")
			r.out.FinalSuccess("Build succeeded! (nothing to do)")
			return nil
		}
		r.out.Debug("linking: %s", reason)
	}

	if err := r.phase(res, PhaseLink, func() error { return r.pipeline().LinkAll(ctx) }); err != nil {
		return err
	}
	res.Linked = true

	if err := r.phase(res, PhaseArtifact, func() error { return r.verifyArtifacts(res) }); err != nil {
		return err
	}
	r.out.FinalSuccess("Build succeeded!")
	return nil
}

// compile loads the compile database, runs every stale record and removes
// orphaned objects.
func (r *Runner) compile(ctx context.Context, res *Result) error {
	suffix := r.cfg.Compile.ObjectSuffix

	all, err := compdb.Load(r.cfg.DatabasePath())
	if err != nil {
		return err
	}
	records := compdb.Filter(all, suffix)
	res.Records = len(records)

	staleness := &compdb.Staleness{Resolver: r.resolver}
	stale, current := staleness.Partition(records)
	res.UpToDate = len(current)

	err = r.phase(res, PhaseCompile, func() error {
		if len(stale) == 0 {
			r.out.Info("All targets up to date, nothing to compile.")
			return nil
		}
		if len(current) > 0 {
			r.out.Info("Skipping %d/%d up-to-date targets", len(current), len(records))
		}
		workers, err := r.workers()
		if err != nil {
			return err
		}
		r.out.Info("Compiling %d files with %d workers", len(stale), workers)
		sched := scheduler.New(r.shim, r.resolver, scheduler.Options{
			Workers:        workers,
			Threshold:      r.cfg.FailureThreshold(),
			Timeout:        r.cfg.Shim.CompileTimeout.Duration,
			NoisePrefixes:  r.cfg.Shim.NoisePrefixes,
			MaxOutputLines: r.cfg.Shim.MaxOutputLines,
		}, r.out)
		sum, err := sched.CompileAll(ctx, stale)
		res.Compile = sum
		return err
	})
	if err != nil {
		return err
	}

	return r.phase(res, PhaseClean, func() error {
		removed, err := r.cleanOrphans(records)
		res.Removed = removed
		return err
	})
}

// cleanOrphans deletes objects under the clean directories that no record
// produces. An empty record set removes nothing.
func (r *Runner) cleanOrphans(records []compdb.Record) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	suffix := r.cfg.Compile.ObjectSuffix
	expected := compdb.ExpectedOutputs(records, suffix, r.resolver)
	removed, err := artifact.CleanOrphans(r.cfg.CleanDirs(), suffix, expected)
	for _, p := range removed {
		r.out.Info("Removing stale obj: %s", p)
	}
	if err != nil {
		return removed, errors.Wrap(err, "failed to clean stale object files")
	}
	if len(removed) > 0 {
		r.out.Info("Cleaned %d stale object file(s)", len(removed))
	}
	return removed, nil
}

// verify applies the object-count gate, then the compile failure policy.
func (r *Runner) verify(res *Result) error {
	exps := make([]artifact.Expectation, 0, len(r.stages))
	for _, st := range r.stages {
		exps = append(exps, artifact.Expectation{
			Stage:   st.Name,
			Dir:     st.ObjectDir,
			Pattern: st.ObjectPattern,
			Min:     st.MinObjects,
		})
	}
	counts, err := artifact.VerifyObjectCounts(exps)
	res.Counts = counts
	if err != nil {
		return err
	}

	if res.compileFailures() == 0 {
		return nil
	}
	critical := r.criticalFailures(res.Compile.FailedOutputs)
	switch {
	case len(critical) == 0:
		r.out.Warning("%d compile failures, all non-critical; linking anyway", res.compileFailures())
		return nil
	case r.opts.AllowCompileFailures:
		r.out.Warning("%d critical compile failures; linking anyway because compile failures are allowed", len(critical))
		return nil
	}

	r.out.Errorln("")
	r.out.Errorln("Refusing to link with stale object files. Failed targets:")
	for _, o := range critical {
		r.out.Errorln("  - %s", o)
	}
	r.out.Errorln("Set %s=1 or pass --allow-compile-failures to link anyway.", AllowFailuresEnvVar)
	return errors.Kindf(errors.KindCompileFailures,
		"refusing to link: %d compile tasks failed", len(critical))
}

// criticalFailures returns the failed outputs that no noncritical pattern
// matches. Patterns use path.Match over slash-separated outputs.
func (r *Runner) criticalFailures(failed []string) []string {
	var critical []string
	for _, o := range failed {
		if !matchesAny(r.cfg.Compile.Noncritical, o) {
			critical = append(critical, o)
		}
	}
	return critical
}

func matchesAny(patterns []string, output string) bool {
	name := strings.ReplaceAll(output, `\`, "/")
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

func (r *Runner) pipeline() *link.Pipeline {
	return link.New(r.stages, r.shim, link.Options{
		Mapper:             r.mapper,
		BuildDir:           r.cfg.Paths.BuildDir,
		ScratchDir:         r.cfg.Paths.ScratchDir,
		Timeout:            r.cfg.Shim.LinkTimeout.Duration,
		MaxDiagnosticBytes: r.cfg.Shim.MaxDiagnosticBytes,
	}, r.out)
}

func (r *Runner) verifyArtifacts(res *Result) error {
	rep, err := artifact.VerifyFinal(link.FinalArtifacts(r.stages))
	res.Artifacts = rep
	if rep != nil {
		r.out.Println("")
		for _, a := range rep.Artifacts {
			r.out.Println("  %s (%s)", a.Path, artifact.FormatSize(a.Size))
		}
		for _, m := range rep.Missing {
			r.out.Errorln("  %s (missing)", m)
		}
	}
	return err
}

// lock takes the build lock in the scratch directory.
func (r *Runner) lock() (unlock func(), err error) {
	if err := os.MkdirAll(r.cfg.Paths.ScratchDir, 0755); err != nil {
		return nil, errors.WrapKind(errors.KindEnvironment, err, "failed to create scratch directory")
	}
	fl := lock.NewFileLock(filepath.Join(r.cfg.Paths.ScratchDir, lock.FileName))
	if err := fl.TryLock(); err != nil {
		return nil, err
	}
	return func() { _ = fl.Unlock() }, nil
}

// phase runs fn and records its outcome under name.
func (r *Runner) phase(res *Result, name string, fn func() error) error {
	if r.out.Verbose() {
		r.out.PhaseHeader(name)
	}
	pr := PhaseResult{Name: name, StartTime: time.Now()}
	err := fn()
	pr.EndTime = time.Now()
	pr.Duration = pr.EndTime.Sub(pr.StartTime)
	pr.Success = err == nil
	pr.Error = err
	res.Phases = append(res.Phases, pr)
	return err
}

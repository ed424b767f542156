package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/AndreyAkinshin/shimbuild/internal/artifact"
	"github.com/AndreyAkinshin/shimbuild/internal/output"
	"github.com/AndreyAkinshin/shimbuild/internal/report"
	"github.com/AndreyAkinshin/shimbuild/internal/scheduler"
)

// Result contains the outcome of a build run.
type Result struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Phases    []PhaseResult

	Records  int                // compile records after filtering
	UpToDate int                // records skipped as current
	Compile  *scheduler.Summary // nil when nothing was compiled
	Removed  []string           // orphaned objects deleted
	Counts   []artifact.Count

	NothingToDo bool
	Linked      bool
	Artifacts   *artifact.Report
	Success     bool
}

// PhaseResult contains results for one build phase.
type PhaseResult struct {
	Name      string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Success   bool
	Error     error
}

func (r *Result) finish(err error) {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Success = err == nil
}

// Dispatched returns the number of compile tasks that reached the shim.
func (r *Result) Dispatched() int {
	if r.Compile == nil {
		return 0
	}
	return r.Compile.Completed
}

func (r *Result) compileFailures() int {
	if r.Compile == nil {
		return 0
	}
	return r.Compile.Failed
}

// PrintSummary prints a summary of a build run.
func PrintSummary(result *Result, out *output.Writer) {
	out.SummaryHeader("Build Summary")

	out.SummarySectionLabel("Phases:")
	for _, p := range result.Phases {
		var errMsg string
		if p.Error != nil {
			errMsg = firstLine(p.Error.Error())
		}
		out.SummaryAction(p.Name, p.Success, FormatDuration(p.Duration), errMsg)
	}
	out.Println("")

	if result.Records > 0 {
		out.SummaryItem("Records", fmt.Sprintf("%d (%d up to date)", result.Records, result.UpToDate))
	}
	if c := result.Compile; c != nil {
		if c.Failed == 0 {
			out.SummaryPassed("Compiled", fmt.Sprintf("%d/%d", c.Succeeded(), c.Total))
		} else {
			out.SummaryFailed("Compiled", fmt.Sprintf("%d/%d (%d failed)", c.Succeeded(), c.Total, c.Failed))
		}
	}
	if len(result.Removed) > 0 {
		out.SummaryItem("Removed", fmt.Sprintf("%d stale object(s)", len(result.Removed)))
	}

	var short []string
	for _, c := range result.Counts {
		if !c.OK() {
			short = append(short, fmt.Sprintf("%s %d/%d", c.Stage, c.Found, c.Min))
		}
	}
	if len(short) > 0 {
		out.SummaryFailed("Objects", strings.Join(short, ", "))
	}

	if result.Artifacts != nil && len(result.Artifacts.Artifacts) > 0 {
		out.SummaryItem("Artifacts", fmt.Sprintf("%d", len(result.Artifacts.Artifacts)))
	}
	out.SummaryItem("Duration", FormatDuration(result.Duration))

	if result.Success {
		out.FinalSuccess("Build completed successfully.")
	} else {
		out.FinalFailure("Build failed.")
	}
}

// FormatDuration formats a duration in a human-readable way.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// fillReport copies the run's outcome into the persisted report.
func (r *Runner) fillReport(rep *report.Report, res *Result) {
	if c := res.Compile; c != nil || res.Records > 0 {
		rc := &report.Compile{Records: res.Records, UpToDate: res.UpToDate}
		if c != nil {
			rc.Dispatched = c.Completed
			rc.Failed = c.Failed
			rc.Interrupted = c.Interrupted
			rc.NotDispatched = c.NotDispatched
			rc.Aborted = c.Aborted
			rc.FailedOutputs = c.FailedOutputs
		}
		rep.Compile = rc
	}
	rep.Removed = res.Removed
	for i, c := range res.Counts {
		st := report.Stage{Name: c.Stage, Objects: c.Found, Linked: res.Linked}
		if i < len(r.stages) {
			st.Kind = r.stages[i].Kind
		}
		rep.Stages = append(rep.Stages, st)
	}
	if res.Artifacts != nil {
		for _, a := range res.Artifacts.Artifacts {
			rep.Artifacts = append(rep.Artifacts, report.Artifact{Path: a.Path, Size: a.Size})
		}
	}
}

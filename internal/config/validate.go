package config

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/AndreyAkinshin/shimbuild/internal/pathmap"
	"github.com/AndreyAkinshin/shimbuild/internal/topsort"
)

var (
	// Project name: must start with lowercase letter, may contain lowercase, digits, hyphens.
	// Hyphens must not be consecutive or trailing.
	projectNamePattern = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

	// Stage names end up in script and response file names.
	stageNamePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)
)

const maxJobs = 256

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a configuration for errors and returns warnings for non-fatal issues.
// Defaults must already be applied.
func Validate(cfg *Config) (warnings []string, err error) {
	if err := ValidateProjectName(cfg.Project.Name); err != nil {
		return nil, err
	}
	if err := validatePaths(cfg); err != nil {
		return nil, err
	}
	if err := validateShim(cfg.Shim); err != nil {
		return nil, err
	}
	if err := validateCompile(cfg.Compile); err != nil {
		return nil, err
	}
	stageWarnings, err := validateStages(cfg.Link.Stages)
	if err != nil {
		return nil, err
	}
	return stageWarnings, nil
}

func validatePaths(cfg *Config) error {
	if len(cfg.Paths.Roots) == 0 {
		return &ValidationError{Field: "paths.roots", Message: "at least one host/tool root is required"}
	}
	m, err := pathmap.New(cfg.Paths.Roots...)
	if err != nil {
		return &ValidationError{Field: "paths.roots", Message: err.Error()}
	}
	dirs := []struct {
		field string
		value string
	}{
		{"paths.build_dir", cfg.Paths.BuildDir},
		{"paths.scratch_dir", cfg.Paths.ScratchDir},
	}
	for _, d := range dirs {
		if d.value == "" {
			return &ValidationError{Field: d.field, Message: "is required"}
		}
		if !filepath.IsAbs(d.value) {
			return &ValidationError{Field: d.field, Message: "must be an absolute host path"}
		}
		if _, err := m.ToTool(d.value); err != nil {
			return &ValidationError{Field: d.field, Message: "must lie under one of paths.roots"}
		}
	}
	return nil
}

func validateShim(s *ShimConfig) error {
	if len(s.Command) == 0 || strings.TrimSpace(s.Command[0]) == "" {
		return &ValidationError{Field: "shim.command", Message: "is required"}
	}
	if strings.Count(s.Chdir, "%s") != 1 {
		return &ValidationError{Field: "shim.chdir", Message: "must contain exactly one %s placeholder"}
	}
	if s.LineEnding != "lf" && s.LineEnding != "crlf" {
		return &ValidationError{Field: "shim.line_ending", Message: `must be "lf" or "crlf"`}
	}
	if strings.ContainsAny(s.ScriptPrefix, `/\`) {
		return &ValidationError{Field: "shim.script_prefix", Message: "must not contain path separators"}
	}
	if s.CompileTimeout.Duration < 0 {
		return &ValidationError{Field: "shim.compile_timeout", Message: "must be positive"}
	}
	if s.LinkTimeout.Duration < 0 {
		return &ValidationError{Field: "shim.link_timeout", Message: "must be positive"}
	}
	if s.MaxOutputLines < 0 {
		return &ValidationError{Field: "shim.max_output_lines", Message: "must not be negative"}
	}
	if s.MaxDiagnosticBytes < 0 {
		return &ValidationError{Field: "shim.max_diagnostic_bytes", Message: "must not be negative"}
	}
	return nil
}

func validateCompile(c *CompileConfig) error {
	if !strings.HasPrefix(c.ObjectSuffix, ".") {
		return &ValidationError{Field: "compile.object_suffix", Message: `must start with "."`}
	}
	if c.FailureThreshold != nil && *c.FailureThreshold < 0 {
		return &ValidationError{Field: "compile.failure_threshold", Message: "must not be negative"}
	}
	if c.Jobs < 0 || c.Jobs > maxJobs {
		return &ValidationError{Field: "compile.jobs", Message: fmt.Sprintf("must be between 1 and %d", maxJobs)}
	}
	for i, p := range c.Noncritical {
		if _, err := path.Match(p, ""); err != nil {
			return &ValidationError{
				Field:   fmt.Sprintf("compile.noncritical[%d]", i),
				Message: fmt.Sprintf("invalid pattern %q", p),
			}
		}
	}
	return nil
}

func validateStages(stages []StageConfig) ([]string, error) {
	if len(stages) == 0 {
		return nil, &ValidationError{Field: "link.stages", Message: "at least one stage is required"}
	}

	var warnings []string
	graph := make(topsort.Graph, len(stages))
	order := make([]string, 0, len(stages))
	prevRank := -1
	sharedLibs := 0

	for i, st := range stages {
		field := fmt.Sprintf("link.stages[%d]", i)
		if err := validateStageName(field, st.Name); err != nil {
			return nil, err
		}
		if _, dup := graph[st.Name]; dup {
			return nil, &ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate stage name %q", st.Name)}
		}

		rank, ok := kindRank[st.Kind]
		if !ok {
			return nil, &ValidationError{
				Field:   field + ".kind",
				Message: fmt.Sprintf("must be %q, %q or %q", KindArchive, KindExecutable, KindSharedLibrary),
			}
		}
		if rank < prevRank {
			return nil, &ValidationError{
				Field:   field + ".kind",
				Message: fmt.Sprintf("%s stage %q declared after a later-phase stage (order is archive, executable, shared_library)", st.Kind, st.Name),
			}
		}
		prevRank = rank
		if st.Kind == KindSharedLibrary {
			sharedLibs++
		}

		if strings.TrimSpace(st.Tool) == "" {
			return nil, &ValidationError{Field: field + ".tool", Message: "is required"}
		}
		if st.ObjectDir == "" {
			return nil, &ValidationError{Field: field + ".object_dir", Message: "is required"}
		}
		if _, err := filepath.Match(st.ObjectPattern, ""); err != nil {
			return nil, &ValidationError{Field: field + ".object_pattern", Message: fmt.Sprintf("invalid pattern %q", st.ObjectPattern)}
		}
		if st.MinObjects < 1 {
			return nil, &ValidationError{Field: field + ".min_objects", Message: "must be at least 1"}
		}
		if len(st.Outputs) == 0 {
			return nil, &ValidationError{Field: field + ".outputs", Message: "at least one output is required"}
		}

		graph[st.Name] = st.DependsOn
		order = append(order, st.Name)
	}

	if err := topsort.Validate(graph); err != nil {
		return nil, &ValidationError{Field: "link.stages", Message: err.Error()}
	}
	if err := topsort.CheckOrder(graph, order); err != nil {
		return nil, &ValidationError{Field: "link.stages", Message: err.Error()}
	}

	if sharedLibs == 0 {
		warnings = append(warnings, "link.stages: no shared_library stage declared")
	}
	return warnings, nil
}

func validateStageName(field, name string) error {
	if name == "" {
		return &ValidationError{Field: field + ".name", Message: "is required"}
	}
	if !stageNamePattern.MatchString(name) {
		return &ValidationError{
			Field:   field + ".name",
			Message: "must match pattern ^[A-Za-z0-9_][A-Za-z0-9_.-]*$",
		}
	}
	return nil
}

// ValidateProjectName checks if a project name is valid.
// Returns a ValidationError if the name is empty, too long (>128 chars),
// or doesn't match the required pattern.
func ValidateProjectName(name string) error {
	if name == "" {
		return &ValidationError{Field: "project.name", Message: "is required"}
	}
	if len(name) > 128 {
		return &ValidationError{Field: "project.name", Message: "must be 128 characters or less"}
	}
	if !projectNamePattern.MatchString(name) {
		return &ValidationError{
			Field:   "project.name",
			Message: "must match pattern ^[a-z][a-z0-9]*(-[a-z0-9]+)*$ (lowercase letters, digits, non-consecutive hyphens)",
		}
	}
	return nil
}

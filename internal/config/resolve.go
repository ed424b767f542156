package config

import (
	"path/filepath"

	"github.com/AndreyAkinshin/shimbuild/internal/pathmap"
)

// Mapper builds the host/tool path mapper from the declared roots.
func (c *Config) Mapper() (*pathmap.Mapper, error) {
	return pathmap.New(c.Paths.Roots...)
}

// DatabasePath returns the host path of the compile database.
// Relative paths resolve against the scratch directory.
func (c *Config) DatabasePath() string {
	return resolveUnder(c.Paths.ScratchDir, c.Compile.Database)
}

// BuildPath resolves p against the build directory unless it is absolute.
func (c *Config) BuildPath(p string) string {
	return resolveUnder(c.Paths.BuildDir, p)
}

// StageObjectDir returns the host directory searched for a stage's objects.
func (c *Config) StageObjectDir(st StageConfig) string {
	return c.BuildPath(st.ObjectDir)
}

// StageOutputs returns the host paths of a stage's final artifacts.
func (c *Config) StageOutputs(st StageConfig) []string {
	out := make([]string, 0, len(st.Outputs))
	for _, o := range st.Outputs {
		out = append(out, c.BuildPath(o))
	}
	return out
}

// CleanDirs returns the host directories scanned for orphaned objects.
// When none are configured, every stage object directory is scanned.
func (c *Config) CleanDirs() []string {
	var dirs []string
	seen := make(map[string]bool)
	add := func(d string) {
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	if c.Compile != nil && len(c.Compile.CleanDirs) > 0 {
		for _, d := range c.Compile.CleanDirs {
			add(c.BuildPath(d))
		}
		return dirs
	}
	for _, st := range c.Link.Stages {
		add(c.StageObjectDir(st))
	}
	return dirs
}

// ReportEnabled reports whether the YAML build report should be written.
func (c *Config) ReportEnabled() bool {
	return c.Report != nil && c.Report.Enabled != nil && *c.Report.Enabled
}

// FailureThreshold returns the number of compile failures tolerated before
// the compile phase aborts.
func (c *Config) FailureThreshold() int {
	if c.Compile == nil || c.Compile.FailureThreshold == nil {
		return DefaultFailureThreshold
	}
	return *c.Compile.FailureThreshold
}

// ReportPath returns the host path of the YAML build report.
func (c *Config) ReportPath() string {
	return c.BuildPath(c.Report.File)
}

func resolveUnder(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, filepath.FromSlash(p))
}

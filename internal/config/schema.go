// Package config provides configuration loading and validation for
// .shimbuild/config.json.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/AndreyAkinshin/shimbuild/internal/pathmap"
)

// Config represents the complete config.json configuration.
type Config struct {
	Project ProjectConfig  `json:"project"`
	Paths   PathsConfig    `json:"paths"`
	Shim    *ShimConfig    `json:"shim,omitempty"`
	Compile *CompileConfig `json:"compile,omitempty"`
	Link    LinkConfig     `json:"link"`
	Report  *ReportConfig  `json:"report,omitempty"`
}

// ProjectConfig contains project metadata.
type ProjectConfig struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// PathsConfig declares the host/tool root mapping and the two working
// directories. BuildDir and ScratchDir are absolute host paths that must
// lie under one of the roots.
type PathsConfig struct {
	Roots      []pathmap.Root `json:"roots"`
	BuildDir   string         `json:"build_dir"`
	ScratchDir string         `json:"scratch_dir"`
}

// ShimConfig configures how commands are wrapped and handed to the
// compatibility layer.
type ShimConfig struct {
	Command            []string `json:"command,omitempty"`
	Preamble           []string `json:"preamble,omitempty"`
	Chdir              string   `json:"chdir,omitempty"` // fmt format with one %s for the directory
	ScriptPrefix       string   `json:"script_prefix,omitempty"`
	ScriptExtension    string   `json:"script_extension,omitempty"`
	LineEnding         string   `json:"line_ending,omitempty"` // "lf" or "crlf"
	CompileTimeout     Duration `json:"compile_timeout,omitempty"`
	LinkTimeout        Duration `json:"link_timeout,omitempty"`
	NoisePrefixes      []string `json:"noise_prefixes,omitempty"`
	MaxOutputLines     int      `json:"max_output_lines,omitempty"`
	MaxDiagnosticBytes int      `json:"max_diagnostic_bytes,omitempty"`
	KeepScripts        bool     `json:"keep_scripts,omitempty"`
}

// CompileConfig configures the compile phase.
type CompileConfig struct {
	Database         string   `json:"database,omitempty"`
	ObjectSuffix     string   `json:"object_suffix,omitempty"`
	FailureThreshold *int     `json:"failure_threshold,omitempty"` // nil means the default; 0 aborts on the first failure
	Jobs             int      `json:"jobs,omitempty"`
	Noncritical      []string `json:"noncritical,omitempty"` // glob patterns over record outputs
	CleanDirs        []string `json:"clean_dirs,omitempty"`
}

// LinkConfig lists the link stages in execution order.
type LinkConfig struct {
	Stages []StageConfig `json:"stages"`
}

// StageConfig defines one link stage.
type StageConfig struct {
	Name            string   `json:"name"`
	Kind            string   `json:"kind"`
	Tool            string   `json:"tool"`
	Args            []string `json:"args,omitempty"`
	ObjectDir       string   `json:"object_dir"`
	ObjectPattern   string   `json:"object_pattern,omitempty"`
	MinObjects      int      `json:"min_objects,omitempty"`
	Outputs         []string `json:"outputs"`
	Libraries       []string `json:"libraries,omitempty"`
	SystemLibraries []string `json:"system_libraries,omitempty"`
	DependsOn       []string `json:"depends_on,omitempty"`
	ResponseFile    string   `json:"response_file,omitempty"`
}

// ReportConfig configures the YAML build report.
type ReportConfig struct {
	Enabled *bool  `json:"enabled,omitempty"`
	File    string `json:"file,omitempty"`
}

// Stage kinds in their required execution order.
const (
	KindArchive       = "archive"
	KindExecutable    = "executable"
	KindSharedLibrary = "shared_library"
)

// kindRank orders stage kinds: archives first, then executables, then
// shared libraries.
var kindRank = map[string]int{
	KindArchive:       0,
	KindExecutable:    1,
	KindSharedLibrary: 2,
}

// Duration is a time.Duration that unmarshals from a Go duration string
// ("120s", "5m") or a number of seconds.
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		d.Duration = time.Duration(val * float64(time.Second))
		return nil
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration %s", string(data))
	}
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

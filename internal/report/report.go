// Package report writes the YAML summary of the last build.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Build status values.
const (
	StatusSucceeded   = "succeeded"
	StatusNothingToDo = "nothing_to_do"
	StatusFailed      = "failed"
)

// Report is the persisted summary of one build run.
type Report struct {
	Project   string     `yaml:"project"`
	StartedAt time.Time  `yaml:"started_at"`
	Duration  string     `yaml:"duration"`
	Status    string     `yaml:"status"`
	LinkOnly  bool       `yaml:"link_only,omitempty"`
	Error     string     `yaml:"error,omitempty"`
	Compile   *Compile   `yaml:"compile,omitempty"`
	Removed   []string   `yaml:"removed_objects,omitempty"`
	Stages    []Stage    `yaml:"stages,omitempty"`
	Artifacts []Artifact `yaml:"artifacts,omitempty"`
}

// Compile summarizes the compile phase.
type Compile struct {
	Records       int      `yaml:"records"`
	UpToDate      int      `yaml:"up_to_date"`
	Dispatched    int      `yaml:"dispatched"`
	Failed        int      `yaml:"failed"`
	Interrupted   int      `yaml:"interrupted,omitempty"`
	NotDispatched int      `yaml:"not_dispatched,omitempty"`
	Aborted       bool     `yaml:"aborted,omitempty"`
	FailedOutputs []string `yaml:"failed_outputs,omitempty"`
}

// Stage records the outcome of one link stage.
type Stage struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	Objects int    `yaml:"objects"`
	Linked  bool   `yaml:"linked"`
}

// Artifact records one final artifact.
type Artifact struct {
	Path string `yaml:"path"`
	Size int64  `yaml:"size"`
}

// New starts a report for project at the given time.
func New(project string, started time.Time) *Report {
	return &Report{Project: project, StartedAt: started.UTC().Truncate(time.Second)}
}

// Finish stamps the duration and status derived from err.
func (r *Report) Finish(status string, elapsed time.Duration, err error) {
	r.Duration = elapsed.Round(time.Millisecond).String()
	r.Status = status
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
	}
}

// Load reads a report written by Write.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}

// Write marshals the report and replaces path atomically. An existing
// report is preserved as path.bak.
func Write(path string, r *Report) error {
	content, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	return writeAtomic(path, content)
}

func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".shimbuild-tmp-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	written, err := os.ReadFile(tmpName)
	if err != nil {
		return fmt.Errorf("read temp file for validation: %w", err)
	}
	var v any
	if err := yaml.Unmarshal(written, &v); err != nil {
		return fmt.Errorf("yaml validation failed: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+".bak"); err != nil {
			return fmt.Errorf("create backup: %w", err)
		}
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

package config

import (
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultScriptPrefix       = "shimbuild_"
	DefaultScriptExtension    = ".bat"
	DefaultChdir              = "cd /d %s"
	DefaultLineEnding         = "lf"
	DefaultCompileTimeout     = 120 * time.Second
	DefaultLinkTimeout        = 300 * time.Second
	DefaultMaxOutputLines     = 100
	DefaultMaxDiagnosticBytes = 500
	DefaultDatabase           = "compdb.json"
	DefaultObjectSuffix       = ".obj"
	DefaultFailureThreshold   = 10
	DefaultReportFile         = "shimbuild-report.yaml"
)

// DefaultShimCommand runs a batch script through Wine's cmd.exe.
var DefaultShimCommand = []string{"wine64", "cmd", "/c"}

// DefaultPreamble silences command echo in generated scripts.
var DefaultPreamble = []string{"@echo off"}

// DefaultNoisePrefixes drops /showIncludes chatter from compiler output.
var DefaultNoisePrefixes = []string{"Note: including file:"}

// applyDefaults fills in default values for unset configuration fields.
func applyDefaults(cfg *Config) {
	applyShimDefaults(cfg)
	applyCompileDefaults(cfg)
	applyStageDefaults(cfg)
	applyReportDefaults(cfg)
}

func applyShimDefaults(cfg *Config) {
	if cfg.Shim == nil {
		cfg.Shim = &ShimConfig{}
	}
	s := cfg.Shim
	if len(s.Command) == 0 {
		s.Command = append([]string(nil), DefaultShimCommand...)
	}
	if s.Preamble == nil {
		s.Preamble = append([]string(nil), DefaultPreamble...)
	}
	if s.Chdir == "" {
		s.Chdir = DefaultChdir
	}
	if s.ScriptPrefix == "" {
		s.ScriptPrefix = DefaultScriptPrefix
	}
	if s.ScriptExtension == "" {
		s.ScriptExtension = DefaultScriptExtension
	}
	if s.LineEnding == "" {
		s.LineEnding = DefaultLineEnding
	}
	if s.CompileTimeout.Duration == 0 {
		s.CompileTimeout.Duration = DefaultCompileTimeout
	}
	if s.LinkTimeout.Duration == 0 {
		s.LinkTimeout.Duration = DefaultLinkTimeout
	}
	if s.NoisePrefixes == nil {
		s.NoisePrefixes = append([]string(nil), DefaultNoisePrefixes...)
	}
	if s.MaxOutputLines == 0 {
		s.MaxOutputLines = DefaultMaxOutputLines
	}
	if s.MaxDiagnosticBytes == 0 {
		s.MaxDiagnosticBytes = DefaultMaxDiagnosticBytes
	}
}

func applyCompileDefaults(cfg *Config) {
	if cfg.Compile == nil {
		cfg.Compile = &CompileConfig{}
	}
	c := cfg.Compile
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.ObjectSuffix == "" {
		c.ObjectSuffix = DefaultObjectSuffix
	}
	if c.FailureThreshold == nil {
		threshold := DefaultFailureThreshold
		c.FailureThreshold = &threshold
	}
}

func applyStageDefaults(cfg *Config) {
	suffix := DefaultObjectSuffix
	if cfg.Compile != nil && cfg.Compile.ObjectSuffix != "" {
		suffix = cfg.Compile.ObjectSuffix
	}
	for i := range cfg.Link.Stages {
		st := &cfg.Link.Stages[i]
		if st.ObjectPattern == "" {
			st.ObjectPattern = "*" + suffix
		}
		if st.MinObjects == 0 {
			st.MinObjects = 1
		}
		if st.ResponseFile == "" {
			st.ResponseFile = st.Name + ".rsp"
		}
		st.Kind = strings.ToLower(st.Kind)
	}
}

func applyReportDefaults(cfg *Config) {
	if cfg.Report == nil {
		cfg.Report = &ReportConfig{}
	}
	if cfg.Report.Enabled == nil {
		enabled := true
		cfg.Report.Enabled = &enabled
	}
	if cfg.Report.File == "" {
		cfg.Report.File = DefaultReportFile
	}
}

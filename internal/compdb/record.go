// Package compdb loads compile databases (the output of "ninja -t compdb")
// and decides which invocations need to run again.
package compdb

import (
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/AndreyAkinshin/shimbuild/internal/errors"
	"github.com/AndreyAkinshin/shimbuild/internal/pathmap"
	"github.com/AndreyAkinshin/shimbuild/internal/schema"
)

// Record is one compiler invocation. Command is opaque and is never parsed.
type Record struct {
	Directory string `json:"directory,omitempty"`
	Command   string `json:"command"`
	File      string `json:"file,omitempty"`
	Output    string `json:"output"`
}

// Load reads and parses the compile database at path.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.Environmentf(
				"compile database not found: %s (generate it with: ninja -t compdb > %s)",
				path, filepath.Base(path))
		}
		return nil, errors.WrapKind(errors.KindEnvironment, err, "failed to read compile database "+path)
	}
	records, err := Parse(data)
	if err != nil {
		return nil, errors.MalformedInput(path, err)
	}
	return records, nil
}

// Parse decodes compile database JSON after checking it against the
// embedded schema.
func Parse(data []byte) ([]Record, error) {
	if err := schema.ValidateCompileDatabase(data); err != nil {
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Filter drops records with a blank command or an output that does not end
// in suffix. Order is preserved.
func Filter(records []Record, suffix string) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if strings.TrimSpace(r.Command) == "" {
			continue
		}
		if !hasSuffixFold(r.Output, suffix) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}

// Resolver turns record paths into host paths. BuildDir is the tool-form
// build directory used when a record has no directory of its own.
type Resolver struct {
	Mapper   *pathmap.Mapper
	BuildDir string
}

// Dir returns the tool-form working directory of r.
func (res *Resolver) Dir(r Record) string {
	if r.Directory == "" {
		return res.BuildDir
	}
	return res.toolForm(res.BuildDir, r.Directory)
}

// OutputPath returns the host path of r's output. Relative outputs resolve
// against the build directory.
func (res *Resolver) OutputPath(r Record) (string, error) {
	return res.hostPath(res.BuildDir, r.Output)
}

// SourcePath returns the host path of r's source file. Relative sources
// resolve against the record's directory.
func (res *Resolver) SourcePath(r Record) (string, error) {
	return res.hostPath(res.Dir(r), r.File)
}

func (res *Resolver) hostPath(base, p string) (string, error) {
	if p == "" {
		return "", errors.New("empty path")
	}
	if filepath.IsAbs(p) && !pathmap.IsToolAbs(p) {
		return filepath.Clean(p), nil
	}
	return res.Mapper.ToHost(res.toolForm(base, p))
}

// toolForm resolves p against base. Host-absolute paths are mapped first.
func (res *Resolver) toolForm(base, p string) string {
	if strings.HasPrefix(p, "/") {
		if tool, err := res.Mapper.ToTool(p); err == nil {
			return tool
		}
	}
	return pathmap.ResolveTool(base, p)
}

// ExpectedOutputs returns the host paths of every record output carrying
// suffix, including records that are already up to date.
func ExpectedOutputs(records []Record, suffix string, res *Resolver) map[string]bool {
	expected := make(map[string]bool, len(records))
	for _, r := range records {
		if !hasSuffixFold(r.Output, suffix) {
			continue
		}
		p, err := res.OutputPath(r)
		if err != nil {
			continue
		}
		expected[p] = true
	}
	return expected
}

// Package pathmap converts artifact paths between the host filesystem form
// (used for stat, glob and removal) and the tool-native form (used inside
// generated scripts and response files).
//
// A Mapper holds an ordered list of root pairs. The host prefix /project
// paired with the tool prefix Z:\project maps /project/build/a.obj to
// Z:\project\build\a.obj and back. When several roots match, the longest
// prefix wins.
package pathmap

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Root is one declared host/tool prefix pair.
type Root struct {
	Host string `json:"host"`
	Tool string `json:"tool"`
}

// Mapper converts paths between host and tool forms.
// A Mapper is immutable and safe for concurrent use.
type Mapper struct {
	roots []Root
}

// New creates a Mapper from the given roots. Host prefixes must be absolute
// slash paths and tool prefixes must be drive-qualified (C:\ or Z:\project).
func New(roots ...Root) (*Mapper, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("pathmap: at least one root is required")
	}
	normalized := make([]Root, 0, len(roots))
	for i, r := range roots {
		if !filepath.IsAbs(r.Host) {
			return nil, fmt.Errorf("pathmap: roots[%d].host %q is not absolute", i, r.Host)
		}
		if !IsToolAbs(r.Tool) {
			return nil, fmt.Errorf("pathmap: roots[%d].tool %q is not drive-qualified", i, r.Tool)
		}
		normalized = append(normalized, Root{
			Host: filepath.Clean(r.Host),
			Tool: CleanTool(r.Tool),
		})
	}
	return &Mapper{roots: normalized}, nil
}

// MustNew is like New but panics on error. Intended for tests and static tables.
func MustNew(roots ...Root) *Mapper {
	m, err := New(roots...)
	if err != nil {
		panic(err)
	}
	return m
}

// Roots returns a copy of the declared roots in declaration order.
func (m *Mapper) Roots() []Root {
	out := make([]Root, len(m.roots))
	copy(out, m.roots)
	return out
}

// ToTool converts an absolute host path to its tool-native form.
func (m *Mapper) ToTool(hostPath string) (string, error) {
	if !filepath.IsAbs(hostPath) {
		return "", fmt.Errorf("pathmap: host path %q is not absolute", hostPath)
	}
	p := filepath.Clean(hostPath)

	for _, r := range m.byLength(func(r Root) string { return r.Host }) {
		rel, ok := trimHostPrefix(p, r.Host)
		if !ok {
			continue
		}
		if rel == "" {
			return r.Tool, nil
		}
		return JoinTool(r.Tool, strings.ReplaceAll(rel, "/", `\`)), nil
	}
	return "", fmt.Errorf("pathmap: host path %q is outside every declared root", hostPath)
}

// ToHost converts a drive-qualified tool path to its host form.
func (m *Mapper) ToHost(toolPath string) (string, error) {
	if !IsToolAbs(toolPath) {
		return "", fmt.Errorf("pathmap: tool path %q is not drive-qualified", toolPath)
	}
	p := CleanTool(toolPath)

	for _, r := range m.byLength(func(r Root) string { return r.Tool }) {
		rel, ok := trimToolPrefix(p, r.Tool)
		if !ok {
			continue
		}
		if rel == "" {
			return r.Host, nil
		}
		return filepath.Join(r.Host, filepath.FromSlash(strings.ReplaceAll(rel, `\`, "/"))), nil
	}
	return "", fmt.Errorf("pathmap: tool path %q is outside every declared root", toolPath)
}

// byLength returns the roots ordered by descending key length so that the
// most specific prefix is tried first. Ties keep declaration order.
func (m *Mapper) byLength(key func(Root) string) []Root {
	sorted := make([]Root, len(m.roots))
	copy(sorted, m.roots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(key(sorted[i])) > len(key(sorted[j]))
	})
	return sorted
}

func trimHostPrefix(p, prefix string) (string, bool) {
	if p == prefix {
		return "", true
	}
	if prefix == "/" {
		return strings.TrimPrefix(p, "/"), true
	}
	if strings.HasPrefix(p, prefix+"/") {
		return p[len(prefix)+1:], true
	}
	return "", false
}

func trimToolPrefix(p, prefix string) (string, bool) {
	if strings.EqualFold(p, prefix) {
		return "", true
	}
	base := prefix
	if !strings.HasSuffix(base, `\`) {
		base += `\`
	}
	if len(p) > len(base) && strings.EqualFold(p[:len(base)], base) {
		return p[len(base):], true
	}
	return "", false
}

// IsToolAbs reports whether p is a drive-qualified tool path such as
// C:\x64.bat or z:/project.
func IsToolAbs(p string) bool {
	if len(p) < 3 {
		return false
	}
	c := p[0]
	isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	return isLetter && p[1] == ':' && (p[2] == '\\' || p[2] == '/')
}

// CleanTool normalizes a tool path: backslash separators, no duplicate or
// trailing separators (except the drive root), "." and ".." resolved.
func CleanTool(p string) string {
	s := strings.ReplaceAll(p, `\`, "/")
	if IsToolAbs(p) {
		drive := s[:2]
		rest := path.Clean(s[2:])
		return drive + strings.ReplaceAll(rest, "/", `\`)
	}
	return strings.ReplaceAll(path.Clean(s), "/", `\`)
}

// JoinTool joins tool path elements with backslashes and cleans the result.
func JoinTool(elem ...string) string {
	var parts []string
	for _, e := range elem {
		if e != "" {
			parts = append(parts, e)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return CleanTool(strings.Join(parts, `\`))
}

// ResolveTool resolves p against dir when p is relative. Both are tool paths.
func ResolveTool(dir, p string) string {
	if IsToolAbs(p) {
		return CleanTool(p)
	}
	return JoinTool(dir, p)
}

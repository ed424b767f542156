// Package integration runs shimbuild end to end with sh standing in for
// the compatibility layer.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndreyAkinshin/shimbuild/internal/compdb"
	"github.com/AndreyAkinshin/shimbuild/internal/errors"
	"github.com/AndreyAkinshin/shimbuild/internal/output"
	"github.com/AndreyAkinshin/shimbuild/internal/pathmap"
	"github.com/AndreyAkinshin/shimbuild/internal/project"
	"github.com/AndreyAkinshin/shimbuild/internal/report"
	"github.com/AndreyAkinshin/shimbuild/internal/runner"
	"github.com/AndreyAkinshin/shimbuild/internal/testing/mocks"
)

var (
	fixturesDirOnce sync.Once
	fixturesDirPath string
)

// fixturesDir returns the path to the test fixtures directory.
func fixturesDir() string {
	fixturesDirOnce.Do(func() {
		_, filename, _, _ := runtime.Caller(0)
		fixturesDirPath = filepath.Join(filepath.Dir(filename), "..", "fixtures")
	})
	return fixturesDirPath
}

// fakeTools stand in for cl.exe and link.exe. Sources whose name contains
// "fail" do not compile.
var fakeTools = []string{
	`fakecc() { case "$(basename "$(tohost "$1")")" in *fail*) echo "$1(1): error C2065: 'x': undeclared identifier"; return 2;; esac; o="$(tohost "$2")"; mkdir -p "$(dirname "$o")" && echo obj > "$o"; }`,
	`fakelink() { rc=0; for a in "$@"; do case "$a" in /OUT:*) echo bin > "${a#/OUT:}" || rc=1;; esac; done; return $rc; }`,
}

func requireSh(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"sh", "sed"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available: %v", bin, err)
		}
	}
}

// workspace is a project tree whose root holds .shimbuild/config.json,
// sources under src/, and the build and scratch directories.
type workspace struct {
	root    string
	build   string
	scratch string
	mapper  *pathmap.Mapper
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	requireSh(t)
	root := t.TempDir()
	w := &workspace{
		root:    root,
		build:   filepath.Join(root, "build"),
		scratch: filepath.Join(root, "scratch"),
		mapper:  pathmap.MustNew(mocks.ShRoot),
	}
	require.NoError(t, os.MkdirAll(w.build, 0755))
	require.NoError(t, os.MkdirAll(w.scratch, 0755))

	cfg := map[string]any{
		"project": map[string]any{"name": "nexus-js-loader"},
		"paths": map[string]any{
			"roots":       []pathmap.Root{mocks.ShRoot},
			"build_dir":   w.build,
			"scratch_dir": w.scratch,
		},
		"shim": map[string]any{
			"command":          mocks.ShCommand,
			"preamble":         append(append([]string{}, mocks.ShPreamble...), fakeTools...),
			"chdir":            mocks.ShChdir,
			"script_extension": ".sh",
			"line_ending":      "lf",
			"compile_timeout":  "30s",
			"link_timeout":     "30s",
		},
		"compile": map[string]any{"jobs": 4, "failure_threshold": 10},
		"link": map[string]any{
			"stages": []map[string]any{{
				"name":             "nexus_js_loader",
				"kind":             "shared_library",
				"tool":             "fakelink",
				"args":             []string{"/nologo", "/DLL", "/OUT:nexus_js_loader.dll"},
				"object_dir":       "CMakeFiles/loader.dir",
				"outputs":          []string{"nexus_js_loader.dll"},
				"system_libraries": []string{"kernel32.lib"},
			}},
		},
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	require.NoError(t, err)
	cfgPath := filepath.Join(root, project.ConfigDirName, project.ConfigFileName)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfgPath), 0755))
	require.NoError(t, os.WriteFile(cfgPath, data, 0644))
	return w
}

func (w *workspace) tool(t *testing.T, host string) string {
	t.Helper()
	p, err := w.mapper.ToTool(host)
	require.NoError(t, err)
	return p
}

// writeSources creates the sources an hour in the past and a compile
// database with one record per source.
func (w *workspace) writeSources(t *testing.T, names []string) {
	t.Helper()
	past := time.Now().Add(-time.Hour)
	records := []compdb.Record{}
	for _, name := range names {
		host := filepath.Join(w.root, "src", name)
		require.NoError(t, os.MkdirAll(filepath.Dir(host), 0755))
		require.NoError(t, os.WriteFile(host, []byte("int x;\n"), 0644))
		require.NoError(t, os.Chtimes(host, past, past))

		src := w.tool(t, host)
		obj := `CMakeFiles\loader.dir\` + name + ".obj"
		records = append(records, compdb.Record{
			Directory: w.tool(t, w.build),
			Command:   fmt.Sprintf("fakecc '%s' '%s'", src, obj),
			File:      src,
			Output:    obj,
		})
	}
	data, err := json.Marshal(records)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(w.scratch, "compdb.json"), data, 0644))
}

func (w *workspace) objectPath(name string) string {
	return filepath.Join(w.build, "CMakeFiles", "loader.dir", name+".obj")
}

func (w *workspace) dllPath() string {
	return filepath.Join(w.build, "nexus_js_loader.dll")
}

func (w *workspace) runBuild(t *testing.T, opts runner.Options) (*runner.Result, error) {
	t.Helper()
	proj, err := project.LoadProjectFrom(w.root)
	require.NoError(t, err)
	if opts.Out == nil {
		opts.Out = output.NewWithWriters(&bytes.Buffer{}, &bytes.Buffer{}, false)
	}
	r, err := runner.New(proj.Config, opts)
	require.NoError(t, err)
	return r.Build(context.Background())
}

func numbered(prefix string, n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%s%02d.cpp", prefix, i)
	}
	return names
}

func TestBuild_SingleRecord(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	w.writeSources(t, []string{"loader.cpp"})

	res, err := w.runBuild(t, runner.Options{})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.True(t, res.Linked)
	assert.Equal(t, 1, res.Compile.Completed)
	assert.Equal(t, 0, res.Compile.Failed)
	assert.FileExists(t, w.objectPath("loader.cpp"))
	assert.FileExists(t, w.dllPath())

	rep, err := report.Load(filepath.Join(w.build, "shimbuild-report.yaml"))
	require.NoError(t, err)
	assert.Equal(t, report.StatusSucceeded, rep.Status)
	assert.Equal(t, "nexus-js-loader", rep.Project)

	rsp, err := os.ReadFile(filepath.Join(w.scratch, "nexus_js_loader.rsp"))
	require.NoError(t, err)
	assert.Contains(t, string(rsp), `loader.cpp.obj"`)
	assert.True(t, strings.HasSuffix(string(rsp), "kernel32.lib\n"))

	leftovers, err := filepath.Glob(filepath.Join(w.scratch, "shimbuild_*.sh"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "scripts should be removed after each run")
}

func TestBuild_CompileFailuresRefuseLink(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	names := append(numbered("ok", 11), numbered("fail", 4)...)
	w.writeSources(t, names)

	res, err := w.runBuild(t, runner.Options{})
	require.Error(t, err)

	assert.True(t, errors.Is(err, errors.KindCompileFailures))
	assert.Equal(t, errors.ExitRuntimeError, errors.GetExitCode(err))
	assert.Equal(t, 15, res.Compile.Completed)
	assert.Equal(t, 4, res.Compile.Failed)
	assert.False(t, res.Linked)
	assert.NoFileExists(t, w.dllPath())
	for _, name := range numbered("ok", 11) {
		assert.FileExists(t, w.objectPath(name))
	}
	for _, name := range numbered("fail", 4) {
		assert.NoFileExists(t, w.objectPath(name))
	}
}

func TestBuild_CompileFailuresAllowed(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	w.writeSources(t, append(numbered("ok", 11), numbered("fail", 4)...))

	res, err := w.runBuild(t, runner.Options{AllowCompileFailures: true})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Compile.Failed)
	assert.True(t, res.Linked)
	assert.FileExists(t, w.dllPath())
}

func TestBuild_NoChangeRerun(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	w.writeSources(t, numbered("src", 5))

	_, err := w.runBuild(t, runner.Options{})
	require.NoError(t, err)
	dll, err := os.Stat(w.dllPath())
	require.NoError(t, err)

	res, err := w.runBuild(t, runner.Options{})
	require.NoError(t, err)

	assert.True(t, res.NothingToDo)
	assert.False(t, res.Linked)
	assert.Equal(t, 5, res.UpToDate)
	assert.Equal(t, 0, res.Dispatched())

	again, err := os.Stat(w.dllPath())
	require.NoError(t, err)
	assert.True(t, dll.ModTime().Equal(again.ModTime()), "dll should not be relinked")

	rep, err := report.Load(filepath.Join(w.build, "shimbuild-report.yaml"))
	require.NoError(t, err)
	assert.Equal(t, report.StatusNothingToDo, rep.Status)
}

func TestBuild_LinkOnlyAlwaysRelinks(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	w.writeSources(t, []string{"loader.cpp"})

	_, err := w.runBuild(t, runner.Options{})
	require.NoError(t, err)
	require.NoError(t, os.Remove(w.dllPath()))

	res, err := w.runBuild(t, runner.Options{LinkOnly: true})
	require.NoError(t, err)

	assert.True(t, res.Linked)
	assert.Nil(t, res.Compile)
	assert.FileExists(t, w.dllPath())
}

func TestBuild_MissingDatabase(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)

	_, err := w.runBuild(t, runner.Options{})
	require.Error(t, err)
	assert.Equal(t, errors.ExitEnvironmentError, errors.GetExitCode(err))
}

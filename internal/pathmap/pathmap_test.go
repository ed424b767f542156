package pathmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wineMapper(t *testing.T) *Mapper {
	t.Helper()
	m, err := New(
		Root{Host: "/project", Tool: `Z:\project`},
		Root{Host: "/home/wine/.wine/drive_c", Tool: `C:\`},
	)
	require.NoError(t, err)
	return m
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		roots []Root
	}{
		{"no roots", nil},
		{"relative host", []Root{{Host: "project", Tool: `Z:\project`}}},
		{"undriven tool", []Root{{Host: "/project", Tool: `\project`}}},
		{"empty tool", []Root{{Host: "/project", Tool: ""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.roots...)
			assert.Error(t, err)
		})
	}
}

func TestToTool(t *testing.T) {
	t.Parallel()
	m := wineMapper(t)
	tests := []struct {
		host string
		want string
	}{
		{"/project", `Z:\project`},
		{"/project/build/CMakeFiles/a.dir/a.obj", `Z:\project\build\CMakeFiles\a.dir\a.obj`},
		{"/project/build/../src/a.cpp", `Z:\project\src\a.cpp`},
		{"/home/wine/.wine/drive_c/compile_cmd_3.bat", `C:\compile_cmd_3.bat`},
		{"/home/wine/.wine/drive_c", `C:\`},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			got, err := m.ToTool(tt.host)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToTool_OutsideRoots(t *testing.T) {
	t.Parallel()
	m := wineMapper(t)

	_, err := m.ToTool("/projectile/a.obj")
	assert.Error(t, err, "prefix match must respect path boundaries")

	_, err = m.ToTool("relative/a.obj")
	assert.Error(t, err)
}

func TestToHost(t *testing.T) {
	t.Parallel()
	m := wineMapper(t)
	tests := []struct {
		tool string
		want string
	}{
		{`Z:\project\src\plugin\main.cpp`, "/project/src/plugin/main.cpp"},
		{`z:\project\src\main.cpp`, "/project/src/main.cpp"},
		{`Z:/project/build/a.obj`, "/project/build/a.obj"},
		{`Z:\PROJECT\build`, "/project/build"},
		{`C:\compdb.json`, "/home/wine/.wine/drive_c/compdb.json"},
		{`C:\`, "/home/wine/.wine/drive_c"},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			got, err := m.ToHost(tt.tool)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToHost_OutsideRoots(t *testing.T) {
	t.Parallel()
	m := wineMapper(t)

	_, err := m.ToHost(`D:\other\a.obj`)
	assert.Error(t, err)

	_, err = m.ToHost(`Z:\projectile\a.obj`)
	assert.Error(t, err)

	_, err = m.ToHost(`build\a.obj`)
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	m := wineMapper(t)
	paths := []string{
		"/project",
		"/project/build/libcef_dll_wrapper.lib",
		"/project/build/CMakeFiles/nexus_js_loader.dir/src/plugin/overlay.cpp.obj",
		"/home/wine/.wine/drive_c/link_dll.rsp",
	}
	for _, p := range paths {
		tool, err := m.ToTool(p)
		require.NoError(t, err)
		back, err := m.ToHost(tool)
		require.NoError(t, err)
		assert.Equal(t, p, back, "round trip through %s", tool)
	}
}

func TestLongestPrefixWins(t *testing.T) {
	t.Parallel()
	m, err := New(
		Root{Host: "/", Tool: `Z:\`},
		Root{Host: "/home/wine/.wine/drive_c", Tool: `C:\`},
	)
	require.NoError(t, err)

	got, err := m.ToTool("/home/wine/.wine/drive_c/x64.bat")
	require.NoError(t, err)
	assert.Equal(t, `C:\x64.bat`, got)

	got, err = m.ToTool("/project/build")
	require.NoError(t, err)
	assert.Equal(t, `Z:\project\build`, got)

	host, err := m.ToHost(`Z:\project\build`)
	require.NoError(t, err)
	assert.Equal(t, "/project/build", host)
}

func TestCleanTool(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		`Z:\project\build\`:       `Z:\project\build`,
		`Z:/project//build`:       `Z:\project\build`,
		`Z:\project\build\..\src`: `Z:\project\src`,
		`C:\`:                     `C:\`,
		`CMakeFiles\a.dir\a.obj`:  `CMakeFiles\a.dir\a.obj`,
		`CMakeFiles/a.dir/./a.obj`: `CMakeFiles\a.dir\a.obj`,
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanTool(in), "CleanTool(%q)", in)
	}
}

func TestResolveTool(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `Z:\project\build\CMakeFiles\a.obj`, ResolveTool(`Z:\project\build`, `CMakeFiles\a.obj`))
	assert.Equal(t, `Z:\project\src\a.cpp`, ResolveTool(`Z:\project\build`, `Z:\project\src\a.cpp`))
	assert.Equal(t, `Z:\project\src\a.cpp`, ResolveTool(`Z:\project\build`, `..\src\a.cpp`))
}

func TestIsToolAbs(t *testing.T) {
	t.Parallel()
	assert.True(t, IsToolAbs(`C:\`))
	assert.True(t, IsToolAbs(`z:/project`))
	assert.False(t, IsToolAbs(`C:`))
	assert.False(t, IsToolAbs(`\\server\share`))
	assert.False(t, IsToolAbs(`/project`))
	assert.False(t, IsToolAbs(`1:\x`))
}

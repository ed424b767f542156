package integration

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndreyAkinshin/shimbuild/internal/config"
	"github.com/AndreyAkinshin/shimbuild/internal/link"
)

func fixtureConfig(name string) string {
	return filepath.Join(fixturesDir(), name, ".shimbuild", "config.json")
}

func TestWineFixture(t *testing.T) {
	t.Parallel()

	cfg, warnings, err := config.LoadAndValidate(fixtureConfig("wine"))
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, "nexus-js-loader", cfg.Project.Name)
	assert.Equal(t, []string{"wine64", "cmd", "/c"}, cfg.Shim.Command)
	assert.Equal(t, 10, cfg.FailureThreshold())
	assert.Equal(t, "/home/wine/.wine/drive_c/compdb.json", cfg.DatabasePath())

	stages := link.StagesFromConfig(cfg)
	require.Len(t, stages, 2)
	assert.Equal(t, "libcef_dll_wrapper", stages[0].Name)
	assert.Equal(t, "nexus_js_loader", stages[1].Name)
	assert.Equal(t, 14, stages[1].MinObjects)
	assert.Equal(t, "*.obj", stages[1].ObjectPattern)
	assert.Equal(t, "/project/build/CMakeFiles/nexus_js_loader.dir", stages[1].ObjectDir)

	m, err := cfg.Mapper()
	require.NoError(t, err)
	tool, err := m.ToTool("/home/wine/.wine/drive_c/nexus_js_loader.rsp")
	require.NoError(t, err)
	assert.Equal(t, `C:\nexus_js_loader.rsp`, tool)
}

func TestInvalidFixtures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fixture string
	}{
		{"missing project name", "invalid/missing-name"},
		{"shared library before archive", "invalid/stage-order"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := config.LoadAndValidate(fixtureConfig(tt.fixture))
			assert.Error(t, err)
		})
	}
}

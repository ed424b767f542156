package config

import (
	"reflect"
	"sort"
	"strings"
	"testing"
)

func TestDetectUnknownFields(t *testing.T) {
	tests := []struct {
		name string
		json string
		want []string
	}{
		{
			name: "no unknown fields",
			json: `{"$schema": "x", "project": {"name": "p"}, "link": {"stages": []}}`,
			want: nil,
		},
		{
			name: "root level",
			json: `{"project": {"name": "p"}, "targets": {}}`,
			want: []string{`unknown field "targets" at root level (ignored)`},
		},
		{
			name: "section",
			json: `{"shim": {"command": ["sh"], "shell": "bash"}, "compile": {"threads": 4}}`,
			want: []string{
				`unknown field "shell" in shim (ignored)`,
				`unknown field "threads" in compile (ignored)`,
			},
		},
		{
			name: "link section",
			json: `{"link": {"stages": [], "parallel": true}}`,
			want: []string{`unknown field "parallel" in link (ignored)`},
		},
		{
			name: "named stage",
			json: `{"link": {"stages": [{"name": "dll", "flags": []}]}}`,
			want: []string{`unknown field "flags" in stage "dll" (ignored)`},
		},
		{
			name: "unnamed stage",
			json: `{"link": {"stages": [{"tool": "lib.exe", "env": {}}]}}`,
			want: []string{`unknown field "env" in stage "#0" (ignored)`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectUnknownFields([]byte(tt.json))
			sort.Strings(got)
			if strings.Join(got, "\n") != strings.Join(tt.want, "\n") {
				t.Errorf("detectUnknownFields() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadWithWarnings_ParseError(t *testing.T) {
	_, _, err := LoadWithWarnings("config.json", []byte(`{"link": {"stages": 5}}`))
	if err == nil {
		t.Fatal("LoadWithWarnings() expected error")
	}
	if !strings.Contains(err.Error(), "config.json") {
		t.Errorf("error = %v, want path in message", err)
	}
}

func TestGetJSONFields(t *testing.T) {
	fields := getJSONFields(reflect.TypeOf(StageConfig{}))
	for _, f := range []string{"name", "kind", "tool", "object_dir", "min_objects", "depends_on"} {
		if !fields[f] {
			t.Errorf("getJSONFields(StageConfig) missing %q", f)
		}
	}
}

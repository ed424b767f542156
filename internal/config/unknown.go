package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// LoadWithWarnings parses config data and returns any unknown field warnings.
func LoadWithWarnings(path string, data []byte) (*Config, []string, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	warnings := detectUnknownFields(data)

	return &cfg, warnings, nil
}

// detectUnknownFields compares raw JSON with known struct fields.
// Note: Since this is called after successful Config parsing, a parse failure
// here would indicate an unexpected internal inconsistency.
func detectUnknownFields(data []byte) []string {
	var warnings []string

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return []string{"internal: failed to re-parse config for unknown field detection"}
	}

	knownTopLevel := getJSONFields(reflect.TypeOf(Config{}))
	for key := range raw {
		if key == "$schema" {
			continue // $schema is explicitly allowed and ignored
		}
		if !knownTopLevel[key] {
			warnings = append(warnings, fmt.Sprintf("unknown field %q at root level (ignored)", key))
		}
	}

	sections := []struct {
		key string
		typ reflect.Type
	}{
		{"project", reflect.TypeOf(ProjectConfig{})},
		{"paths", reflect.TypeOf(PathsConfig{})},
		{"shim", reflect.TypeOf(ShimConfig{})},
		{"compile", reflect.TypeOf(CompileConfig{})},
		{"report", reflect.TypeOf(ReportConfig{})},
	}
	for _, s := range sections {
		if sectionRaw, ok := raw[s.key]; ok {
			warnings = append(warnings, checkSectionUnknownFields(s.key, sectionRaw, s.typ)...)
		}
	}

	if linkRaw, ok := raw["link"]; ok {
		warnings = append(warnings, checkStagesUnknownFields(linkRaw)...)
	}

	return warnings
}

func checkSectionUnknownFields(section string, data json.RawMessage, typ reflect.Type) []string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}

	var warnings []string
	known := getJSONFields(typ)
	for key := range fields {
		if !known[key] {
			warnings = append(warnings, fmt.Sprintf("unknown field %q in %s (ignored)", key, section))
		}
	}
	return warnings
}

func checkStagesUnknownFields(data json.RawMessage) []string {
	var link struct {
		Stages []map[string]json.RawMessage `json:"stages"`
	}
	if err := json.Unmarshal(data, &link); err != nil {
		// Should not happen since Config.Link parsed successfully.
		return []string{"internal: failed to re-parse link stages for unknown field detection"}
	}

	var warnings []string
	warnings = append(warnings, checkSectionUnknownFields("link", data, reflect.TypeOf(LinkConfig{}))...)

	knownStageFields := getJSONFields(reflect.TypeOf(StageConfig{}))
	for i, stage := range link.Stages {
		name := fmt.Sprintf("#%d", i)
		if rawName, ok := stage["name"]; ok {
			var s string
			if json.Unmarshal(rawName, &s) == nil && s != "" {
				name = s
			}
		}
		for key := range stage {
			if !knownStageFields[key] {
				warnings = append(warnings, fmt.Sprintf("unknown field %q in stage %q (ignored)", key, name))
			}
		}
	}

	return warnings
}

// getJSONFields returns a map of known JSON field names for a struct type.
func getJSONFields(t reflect.Type) map[string]bool {
	fields := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		if name != "" {
			fields[name] = true
		}
	}
	return fields
}

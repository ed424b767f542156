package shimbuild_test

import (
	"testing"

	"github.com/AndreyAkinshin/shimbuild/internal/errors"
	"github.com/AndreyAkinshin/shimbuild/pkg/shimbuild"
)

func TestExitCodeValues(t *testing.T) {
	tests := []struct {
		name     string
		constant int
		expected int
	}{
		{"ExitSuccess", shimbuild.ExitSuccess, 0},
		{"ExitFailure", shimbuild.ExitFailure, 1},
		{"ExitConfigError", shimbuild.ExitConfigError, 2},
		{"ExitEnvError", shimbuild.ExitEnvError, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.constant != tt.expected {
				t.Errorf("shimbuild.%s = %d, want %d", tt.name, tt.constant, tt.expected)
			}
		})
	}
}

// TestExitCodeConsistency verifies that public exit code constants match
// the internal errors package constants.
func TestExitCodeConsistency(t *testing.T) {
	tests := []struct {
		name     string
		public   int
		internal int
	}{
		{"Success", shimbuild.ExitSuccess, errors.ExitSuccess},
		{"Failure/RuntimeError", shimbuild.ExitFailure, errors.ExitRuntimeError},
		{"ConfigError", shimbuild.ExitConfigError, errors.ExitConfigError},
		{"EnvError/EnvironmentError", shimbuild.ExitEnvError, errors.ExitEnvironmentError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.public != tt.internal {
				t.Errorf("exit code mismatch: shimbuild constant = %d, errors constant = %d",
					tt.public, tt.internal)
			}
		})
	}
}

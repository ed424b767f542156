package shim

import (
	"strings"
	"testing"
)

func TestFilterNoise(t *testing.T) {
	noise := []string{"Note: including file:"}

	tests := []struct {
		name     string
		text     string
		maxLines int
		want     string
	}{
		{"empty", "", 100, ""},
		{
			name:     "drops include notes",
			text:     "a.cpp\r\nNote: including file: C:\\x.h\r\n  Note: including file:  C:\\y.h\r\na.cpp(3): error C2065\r\n",
			maxLines: 100,
			want:     "a.cpp\na.cpp(3): error C2065",
		},
		{
			name:     "caps lines",
			text:     "1\n2\n3\n4\n5\n",
			maxLines: 3,
			want:     "1\n2\n3\n... (2 more lines)",
		},
		{
			name:     "zero keeps everything",
			text:     "1\n2\n3",
			maxLines: 0,
			want:     "1\n2\n3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FilterNoise(tt.text, noise, tt.maxLines); got != tt.want {
				t.Errorf("FilterNoise() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{"short", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"long", "abcdefgh", 5, "abcde..."},
		{"disabled", "abcdefgh", 0, "abcdefgh"},
		{"rune boundary", "ab✓cd", 3, "ab..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.text, tt.n); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.text, tt.n, got, tt.want)
			}
		})
	}
}

func TestTruncate_LinkDiagnostics(t *testing.T) {
	long := strings.Repeat("x", 2000)
	got := Truncate(long, 500)
	if len(got) != 503 {
		t.Errorf("len(Truncate()) = %d, want 503", len(got))
	}
}

package shim

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// FilterNoise drops lines whose trimmed form starts with one of prefixes and
// keeps at most maxLines of what remains (0 keeps everything). A trailer
// notes how many lines were cut.
func FilterNoise(text string, prefixes []string, maxLines int) string {
	if text == "" {
		return ""
	}
	var kept []string
	for _, line := range strings.Split(strings.TrimRight(text, "\r\n"), "\n") {
		line = strings.TrimRight(line, "\r")
		if isNoise(line, prefixes) {
			continue
		}
		kept = append(kept, line)
	}
	if maxLines > 0 && len(kept) > maxLines {
		cut := len(kept) - maxLines
		kept = append(kept[:maxLines], fmt.Sprintf("... (%d more lines)", cut))
	}
	return strings.Join(kept, "\n")
}

func isNoise(line string, prefixes []string) bool {
	trimmed := strings.TrimSpace(line)
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// Truncate caps text at n bytes without splitting a UTF-8 sequence.
// n <= 0 disables truncation.
func Truncate(text string, n int) string {
	if n <= 0 || len(text) <= n {
		return text
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

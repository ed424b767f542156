package shim

import (
	"fmt"
	"strings"
)

// RenderScript builds the script body: preamble lines, the directory change,
// then the command. Every line ends with the configured line ending.
func RenderScript(preamble []string, chdir, dir, command, lineEnding string) string {
	eol := "\n"
	if lineEnding == "crlf" {
		eol = "\r\n"
	}

	var b strings.Builder
	for _, line := range preamble {
		b.WriteString(line)
		b.WriteString(eol)
	}
	if dir != "" && chdir != "" {
		fmt.Fprintf(&b, chdir, dir)
		b.WriteString(eol)
	}
	b.WriteString(command)
	b.WriteString(eol)
	return b.String()
}

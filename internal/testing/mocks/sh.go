package mocks

import "github.com/AndreyAkinshin/shimbuild/internal/pathmap"

// The settings below let tests run the real shim executor with sh standing
// in for the compatibility layer. The host filesystem is exposed as drive
// Z:, the way Wine does it, so tool paths stay drive-qualified.

// ShRoot maps the whole host filesystem to Z:\.
var ShRoot = pathmap.Root{Host: "/", Tool: `Z:\`}

// ShCommand converts the script's tool path back to a host path and runs it.
var ShCommand = []string{
	"sh", "-c",
	`exec sh "$(printf '%s' "$1" | sed -e 's|^[Zz]:||' -e 's|\\|/|g')"`,
	"shim",
}

// ShPreamble defines the tohost helper used by ShChdir.
var ShPreamble = []string{
	`tohost() { printf '%s\n' "$1" | sed -e 's|^[Zz]:||' -e 's|\\|/|g'; }`,
}

// ShChdir changes into a tool-form directory.
const ShChdir = `cd "$(tohost '%s')" || exit 97`

// Package shimbuild provides public constants for scripts and CI jobs
// that invoke the shimbuild CLI.
package shimbuild

// Exit codes returned by the shimbuild CLI.
// These constants allow wrappers to check exit codes symbolically
// rather than using magic numbers.
const (
	// ExitSuccess indicates the build succeeded or there was nothing to do.
	ExitSuccess = 0

	// ExitFailure indicates a build failure (compile threshold, link stage,
	// object count shortfall, missing artifact).
	ExitFailure = 1

	// ExitConfigError indicates invalid configuration or a malformed compile database.
	ExitConfigError = 2

	// ExitEnvError indicates an environment error (compile database missing,
	// shim binary unavailable, another build holding the lock).
	ExitEnvError = 3
)

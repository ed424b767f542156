package scheduler

import (
	"fmt"
	"runtime"
	"strconv"
)

const (
	// MinWorkers ensures at least one worker even if runtime.NumCPU()
	// returns 0 in a restricted container.
	MinWorkers = 1

	// MaxWorkers caps the pool. Every worker holds a compatibility-layer
	// process, so more than this only adds scheduling overhead.
	MaxWorkers = 256

	// JobsEnvVar overrides the worker count when no flag is given.
	JobsEnvVar = "SHIMBUILD_JOBS"
)

// DefaultWorkers returns the CPU count, at least MinWorkers.
func DefaultWorkers() int {
	return min(max(MinWorkers, runtime.NumCPU()), MaxWorkers)
}

// ResolveWorkers picks the worker count from, in order, the command-line
// value, the configured value and the environment value. Zero or empty
// means "not set". Invalid environment values fall back to the default and
// return a warning; invalid flag or config values are errors.
func ResolveWorkers(flag, configured int, env string) (workers int, warning string, err error) {
	for _, v := range []struct {
		source string
		n      int
	}{{"--jobs", flag}, {"compile.jobs", configured}} {
		if v.n == 0 {
			continue
		}
		if v.n < MinWorkers || v.n > MaxWorkers {
			return 0, "", fmt.Errorf("%s=%d out of range [%d-%d]", v.source, v.n, MinWorkers, MaxWorkers)
		}
		return v.n, "", nil
	}

	if env == "" {
		return DefaultWorkers(), "", nil
	}
	n, convErr := strconv.Atoi(env)
	if convErr != nil {
		return DefaultWorkers(), fmt.Sprintf("invalid %s value %q (not a number), using default", JobsEnvVar, env), nil
	}
	if n < MinWorkers || n > MaxWorkers {
		return DefaultWorkers(), fmt.Sprintf("%s=%d out of range [%d-%d], using default", JobsEnvVar, n, MinWorkers, MaxWorkers), nil
	}
	return n, "", nil
}

package project

import (
	"os"

	"github.com/AndreyAkinshin/shimbuild/internal/errors"
)

// validateDirectory checks that a configured host directory exists. The
// build directory is created by the build system generator, so a missing
// one means the generator has not run yet.
func validateDirectory(dir string, field string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return errors.Environmentf("%s: directory %q does not exist (run the build system generator first)", field, dir)
	}
	if err != nil {
		return errors.WrapKind(errors.KindEnvironment, err, field+": cannot access directory "+dir)
	}
	if !info.IsDir() {
		return errors.Environmentf("%s: %q is not a directory", field, dir)
	}
	return nil
}

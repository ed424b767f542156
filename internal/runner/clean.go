package runner

import (
	"github.com/AndreyAkinshin/shimbuild/internal/compdb"
)

// Clean removes orphaned object files without compiling or linking. It
// takes the build lock and needs the compile database.
func (r *Runner) Clean() ([]string, error) {
	unlock, err := r.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	all, err := compdb.Load(r.cfg.DatabasePath())
	if err != nil {
		return nil, err
	}
	records := compdb.Filter(all, r.cfg.Compile.ObjectSuffix)
	if len(records) == 0 {
		r.out.Info("Compile database has no %s outputs; nothing to clean.", r.cfg.Compile.ObjectSuffix)
		return nil, nil
	}
	removed, err := r.cleanOrphans(records)
	if err != nil {
		return removed, err
	}
	if len(removed) == 0 {
		r.out.Info("No stale object files.")
	}
	return removed, nil
}

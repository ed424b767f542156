package compdb

import "os"

// Staleness decides whether a record's output is newer than its source.
type Staleness struct {
	Resolver *Resolver
}

// IsCurrent reports whether r's output and source both exist and the
// output was modified strictly after the source. Any error means stale.
func (s *Staleness) IsCurrent(r Record) bool {
	outPath, err := s.Resolver.OutputPath(r)
	if err != nil {
		return false
	}
	srcPath, err := s.Resolver.SourcePath(r)
	if err != nil {
		return false
	}
	out, err := os.Stat(outPath)
	if err != nil {
		return false
	}
	src, err := os.Stat(srcPath)
	if err != nil {
		return false
	}
	return out.ModTime().After(src.ModTime())
}

// Partition splits records into those that must be compiled and those that
// are already current. Both slices keep the input order.
func (s *Staleness) Partition(records []Record) (stale, current []Record) {
	for _, r := range records {
		if s.IsCurrent(r) {
			current = append(current, r)
		} else {
			stale = append(stale, r)
		}
	}
	return stale, current
}

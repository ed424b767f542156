package artifact

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/AndreyAkinshin/shimbuild/internal/errors"
)

// Expectation is the minimum object count for one link stage.
type Expectation struct {
	Stage   string
	Dir     string // host path
	Pattern string
	Min     int
}

// Count is the number of objects found for one stage.
type Count struct {
	Stage string
	Found int
	Min   int
}

// OK reports whether the stage met its minimum.
func (c Count) OK() bool {
	return c.Found >= c.Min
}

// VerifyObjectCounts counts objects for every expectation. Every stage below
// its minimum is reported; the joined error carries one
// KindObjectCountShortfall error per short stage.
func VerifyObjectCounts(exps []Expectation) ([]Count, error) {
	counts := make([]Count, 0, len(exps))
	var errs []error
	for _, e := range exps {
		objs, err := FindObjects(e.Dir, e.Pattern)
		if err != nil {
			return counts, errors.Wrap(err, fmt.Sprintf("failed to scan %s", e.Dir))
		}
		c := Count{Stage: e.Stage, Found: len(objs), Min: e.Min}
		counts = append(counts, c)
		if !c.OK() {
			be := errors.Kindf(errors.KindObjectCountShortfall,
				"found %d object files in %s, expected at least %d", c.Found, e.Dir, c.Min)
			be.Stage = e.Stage
			errs = append(errs, be)
		}
	}
	return counts, stderrors.Join(errs...)
}

// Artifact is one final build output.
type Artifact struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Report lists the final artifacts that exist and those that are missing.
type Report struct {
	Artifacts []Artifact
	Missing   []string
}

// VerifyFinal checks that every path exists and records its size. Any
// missing artifact yields a KindMissingArtifact error alongside the report.
func VerifyFinal(paths []string) (*Report, error) {
	r := &Report{}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				r.Missing = append(r.Missing, p)
				continue
			}
			return r, errors.Wrap(err, "failed to stat "+p)
		}
		r.Artifacts = append(r.Artifacts, Artifact{Path: p, Size: info.Size(), ModTime: info.ModTime()})
	}
	if len(r.Missing) > 0 {
		return r, errors.Kindf(errors.KindMissingArtifact, "missing final artifacts: %v", r.Missing)
	}
	return r, nil
}

var sizePrinter = message.NewPrinter(language.English)

// FormatSize renders n with thousands separators, e.g. "1,234,567 bytes".
func FormatSize(n int64) string {
	return sizePrinter.Sprintf("%d bytes", n)
}

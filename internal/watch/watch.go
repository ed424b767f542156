// Package watch reruns a build whenever the compile database changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AndreyAkinshin/shimbuild/internal/output"
)

// DefaultDebounce coalesces the burst of writes a generator emits while
// rewriting the database.
const DefaultDebounce = 500 * time.Millisecond

// BuildFunc runs one build. Its error is reported and watching continues.
type BuildFunc func(ctx context.Context) error

// Watcher triggers builds on changes to a single file.
type Watcher struct {
	Path       string        // host path of the watched file
	Debounce   time.Duration // quiet period before a build starts
	BuildFirst bool          // run one build before waiting for changes
	Build      BuildFunc
	Out        *output.Writer
}

// Run watches the file's parent directory until ctx is cancelled.
// The directory is watched rather than the file so that generators which
// replace the file through a rename are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	if w.Build == nil {
		return fmt.Errorf("watch: no build function")
	}
	out := w.Out
	if out == nil {
		out = output.New()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	target := filepath.Clean(w.Path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(target)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	if w.BuildFirst {
		w.runBuild(ctx, out)
	}
	out.Info("Watching %s for changes (Ctrl+C to stop)", target)

	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				out.Debug("fsnotify event=%s file=%s", event.Op, event.Name)
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			out.Warning("fsnotify error: %v", err)
		case <-timer.C:
			out.Info("%s changed, rebuilding", filepath.Base(target))
			w.runBuild(ctx, out)
			out.Info("Watching %s for changes (Ctrl+C to stop)", target)
		}
	}
}

func (w *Watcher) runBuild(ctx context.Context, out *output.Writer) {
	if err := w.Build(ctx); err != nil && ctx.Err() == nil {
		out.Errorln("build failed: %v", err)
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/Carbocode/2mpeg-dash/internal/logging"
	"github.com/Carbocode/2mpeg-dash/internal/metrics"
)

// DefaultSettle is how long a new file must stay unchanged before it is
// processed.
const DefaultSettle = 10 * time.Second

// Watcher processes the input directory once, then keeps processing
// sources as they appear or change. Each batch goes through the same
// Orchestrator, so source IDs stay stable for the life of the watcher.
type Watcher struct {
	Orch    *Orchestrator
	Settle  time.Duration
	Log     zerolog.Logger
	Metrics *metrics.Recorder
	// OnBatch, when set, is called after every batch, the initial scan
	// included.
	OnBatch func(RunStats)

	failed map[string]Stage // path -> stage of its last failure
}

// Run blocks until ctx is cancelled or the watcher fails. Cancellation is
// not an error.
func (w *Watcher) Run(ctx context.Context) error {
	settle := w.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	w.failed = make(map[string]Stage)
	cfg := w.Orch.cfg

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := w.addDirs(fw, cfg.InputDir, cfg.Recursive); err != nil {
		return err
	}

	stats, err := w.Orch.Run(ctx)
	if err != nil {
		return err
	}
	w.finish(stats)
	w.Log.Info().Str(logging.FieldPath, cfg.InputDir).Dur("settle", settle).Msg("watching for new sources")

	pending := make(map[string]time.Time)
	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) && cfg.Recursive && isDir(ev.Name) && !isHidden(filepath.Base(ev.Name)) {
				if err := w.addDirs(fw, ev.Name, true); err != nil {
					w.Log.Warn().Err(err).Str(logging.FieldPath, ev.Name).Msg("cannot watch new directory")
				}
				for _, f := range w.existing(ev.Name) {
					pending[f] = time.Now()
				}
				timer.Reset(settle)
				continue
			}
			if !matchesExtension(ev.Name, cfg.Extensions) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				delete(pending, ev.Name)
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
				pending[ev.Name] = time.Now()
				timer.Reset(settle)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.Log.Warn().Err(err).Msg("watch error")

		case <-timer.C:
			due, next := settled(pending, time.Now(), settle)
			if next > 0 {
				timer.Reset(next)
			}
			if len(due) == 0 {
				continue
			}
			for _, p := range due {
				if stage, ok := w.failed[p]; ok {
					w.Metrics.Retried(string(stage))
				}
			}
			w.finish(w.Orch.Process(ctx, due))
		}
	}
}

// finish remembers failures for retry accounting and hands stats on.
func (w *Watcher) finish(stats RunStats) {
	for _, r := range stats.Results {
		if r.State == StateFailed {
			w.failed[r.Path] = r.FailedAt
		} else {
			delete(w.failed, r.Path)
		}
	}
	if w.OnBatch != nil {
		w.OnBatch(stats)
	}
}

// settled splits out the pending paths that have been quiet for settle,
// in sorted order, and returns the wait until the next one is due (0 when
// nothing remains). Paths that vanished are dropped.
func settled(pending map[string]time.Time, now time.Time, settle time.Duration) ([]string, time.Duration) {
	var due []string
	var next time.Duration
	for p, t := range pending {
		wait := settle - now.Sub(t)
		if wait <= 0 {
			delete(pending, p)
			if _, err := os.Stat(p); err == nil {
				due = append(due, p)
			}
			continue
		}
		if next == 0 || wait < next {
			next = wait
		}
	}
	sort.Strings(due)
	return due, next
}

// addDirs watches root and, when recursive, every non-hidden directory
// below it.
func (w *Watcher) addDirs(fw *fsnotify.Watcher, root string, recursive bool) error {
	if !recursive {
		if err := fw.Add(root); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// existing returns media files already inside a directory that appeared
// after the watch started, e.g. one moved into place.
func (w *Watcher) existing(dir string) []string {
	files, err := Discover(dir, w.Orch.cfg.Extensions, true)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		w.Log.Warn().Err(err).Str(logging.FieldPath, dir).Msg("cannot scan new directory")
	}
	return files
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// Package watch regenerates outputs when the test report file changes on
// disk.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"caseport/internal/checksum"
)

// debounceDelay smooths over editors and test runners that write the
// report in multiple bursts.
const debounceDelay = 200 * time.Millisecond

// Run starts an fsnotify watcher on the report file's directory and calls
// regen after each change to the report until ctx is cancelled. Writes
// that leave the report content unchanged are skipped by checksum.
//
// The directory is watched rather than the file itself: many tools replace
// the report atomically (write to temp, rename over), which would drop a
// watch on the file node.
func Run(ctx context.Context, reportPath string, logger *slog.Logger, regen func() error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	absPath, err := filepath.Abs(reportPath)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(absPath)); err != nil {
		return err
	}

	logger.Info("watch: started", slog.String("report", absPath))

	lastSum := ""
	if data, readErr := os.ReadFile(absPath); readErr == nil {
		lastSum = checksum.Sum(data)
	}

	// debounceTimer coalesces event bursts into one regeneration.
	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

	schedule := func() {
		if debounceTimer == nil {
			debounceTimer = time.NewTimer(debounceDelay)
			debounceCh = debounceTimer.C
		} else {
			debounceTimer.Reset(debounceDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			logger.Info("watch: stopped")
			return nil

		case <-debounceCh:
			data, readErr := os.ReadFile(absPath)
			if readErr != nil {
				logger.Warn("watch: read failed", slog.String("error", readErr.Error()))
				continue
			}
			sum := checksum.Sum(data)
			if sum == lastSum {
				logger.Debug("watch: content unchanged, skipping")
				continue
			}
			lastSum = sum
			if regenErr := regen(); regenErr != nil {
				logger.Error("watch: regenerate failed", slog.String("error", regenErr.Error()))
				continue
			}
			logger.Info("watch: outputs regenerated")

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Name != absPath {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("watch: report changed", slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch: error", slog.String("error", watchErr.Error()))
		}
	}
}

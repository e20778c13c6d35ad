package scheduler

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/together/internal/gallery"
	"github.com/MrSnakeDoc/together/internal/logger"
)

const (
	// DefaultSweepMaxAge is how old a leftover must be before it is touched
	DefaultSweepMaxAge = time.Hour
)

// TempSweeper cleans the local image directory of leftovers from
// interrupted uploads and renumbering passes.
type TempSweeper struct {
	dir      string
	logger   logger.Logger
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// SweepResult counts what one pass did
type SweepResult struct {
	TempFilesRemoved int
	FilesRestored    int
	ScratchRemoved   int
}

// NewTempSweeper creates a sweeper for dir
func NewTempSweeper(dir string, log logger.Logger, interval, maxAge time.Duration) *TempSweeper {
	if maxAge <= 0 {
		maxAge = DefaultSweepMaxAge
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &TempSweeper{
		dir:      dir,
		logger:   log,
		interval: interval,
		maxAge:   maxAge,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start sweeps once, then on every interval until Stop or ctx is done
func (s *TempSweeper) Start(ctx context.Context) {
	if _, err := s.Sweep(); err != nil {
		s.logger.Warn("initial temp sweep failed", logger.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.Sweep(); err != nil {
					s.logger.Error("temp sweep failed", logger.Error(err))
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the sweeper; calling it twice is safe
func (s *TempSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Sweep runs one pass. Stale upload temp files are deleted. Files found in
// a stale renumber scratch directory are moved back under their own name
// when it is free, and the directory is removed once empty.
func (s *TempSweeper) Sweep() (SweepResult, error) {
	var res SweepResult

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return res, nil
		}
		return res, err
	}

	cutoff := s.now().Add(-s.maxAge)
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, gallery.UploadTempPrefix) && !strings.HasPrefix(name, gallery.RenumberPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(s.dir, name)
		switch {
		case strings.HasPrefix(name, gallery.UploadTempPrefix) && info.Mode().IsRegular():
			if err := os.Remove(path); err != nil {
				s.logger.Warn("failed to remove temp upload", logger.String("path", path), logger.Error(err))
				continue
			}
			res.TempFilesRemoved++

		case strings.HasPrefix(name, gallery.RenumberPrefix) && info.IsDir():
			restored, empty := s.drainScratch(path)
			res.FilesRestored += restored
			if !empty {
				continue
			}
			if err := os.Remove(path); err != nil {
				s.logger.Warn("failed to remove renumber directory", logger.String("path", path), logger.Error(err))
				continue
			}
			res.ScratchRemoved++
		}
	}

	if res != (SweepResult{}) {
		s.logger.Info("temp sweep completed",
			logger.Int("temp_files_removed", res.TempFilesRemoved),
			logger.Int("files_restored", res.FilesRestored),
			logger.Int("scratch_dirs_removed", res.ScratchRemoved))
	} else {
		s.logger.Debug("nothing to sweep")
	}
	return res, nil
}

// drainScratch moves the files of a scratch directory back into the image
// directory. It reports how many were moved and whether the directory is
// now empty.
func (s *TempSweeper) drainScratch(scratch string) (int, bool) {
	entries, err := os.ReadDir(scratch)
	if err != nil {
		s.logger.Warn("failed to read renumber directory", logger.String("path", scratch), logger.Error(err))
		return 0, false
	}

	restored := 0
	left := 0
	for _, e := range entries {
		target := filepath.Join(s.dir, e.Name())
		if _, err := os.Lstat(target); err == nil {
			s.logger.Warn("cannot restore image from renumber directory, name in use",
				logger.String("path", filepath.Join(scratch, e.Name())))
			left++
			continue
		}
		if err := os.Rename(filepath.Join(scratch, e.Name()), target); err != nil {
			s.logger.Warn("failed to restore image", logger.String("name", e.Name()), logger.Error(err))
			left++
			continue
		}
		restored++
	}
	return restored, left == 0
}

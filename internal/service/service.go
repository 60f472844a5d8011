// Package service orchestrates full reconciliation runs: the overlay
// walk that converges the destination onto the repository, and the
// purge walk that additionally removes destination entries the
// repository no longer carries.
package service

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/avermeulen/confsync/internal/config"
	"github.com/avermeulen/confsync/internal/core/checksum"
	"github.com/avermeulen/confsync/internal/core/reconcile"
	"github.com/avermeulen/confsync/internal/domain"
	"github.com/avermeulen/confsync/internal/logger"
	"github.com/avermeulen/confsync/internal/report"
	"github.com/avermeulen/confsync/internal/state"
)

// Stats aggregates the outcome of one run
type Stats struct {
	EntriesChecked int
	ContentChanged int
	MetaChanged    int
	Deleted        int
}

// Service runs reconciliation passes over the configured trees
type Service struct {
	cfg      *config.Config
	flags    config.RunFlags
	rep      *report.Reporter
	comparer *checksum.Comparer
	state    *state.Manager
	log      logger.Logger
}

// New creates a service. The state manager is optional; without one,
// runs are not recorded.
func New(cfg *config.Config, flags config.RunFlags, rep *report.Reporter,
	st *state.Manager) (*Service, error) {

	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	cmp, err := checksum.NewComparer(cfg.ChecksumOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create comparer: %w", err)
	}

	if rep == nil {
		rep = report.New(flags, report.Options{OverlayRoot: cfg.OverlayDir})
	}

	return &Service{
		cfg:      cfg,
		flags:    flags,
		rep:      rep,
		comparer: cmp,
		state:    st,
		log:      logger.Get(),
	}, nil
}

// Sync walks the overlay tree and converges every destination entry
// onto its repository counterpart. Parents are visited before their
// children, so a directory is always created before anything inside it.
func (s *Service) Sync(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	start := time.Now()

	err := s.walkOverlay(ctx, s.cfg.OverlayDir, stats)

	s.recordRun("sync", start, stats, err)
	if err != nil {
		return stats, err
	}
	return stats, nil
}

// Purge walks the purge tree like a sync pass, then deletes
// destination entries under it that have no repository counterpart.
// Entries Check() found already converged get a timestamp pass.
func (s *Service) Purge(ctx context.Context) (*Stats, error) {
	if s.cfg.PurgeDir == "" {
		return nil, fmt.Errorf("%w: purge_dir is not configured", domain.ErrConfigInvalid)
	}

	stats := &Stats{}
	start := time.Now()

	err := s.walkPurge(ctx, stats)

	s.recordRun("purge", start, stats, err)
	if err != nil {
		return stats, err
	}
	return stats, nil
}

// walkOverlay visits every entry under root and reconciles it against
// the mapped destination path
func (s *Service) walkOverlay(ctx context.Context, root string, stats *Stats) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.rep.Stderr("error: %s: %v", path, err)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if s.ignored(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		destPath, err := s.destFor(root, path)
		if err != nil {
			s.rep.Stderr("error: %s: %v", path, err)
			return nil
		}

		content, meta, err := s.checkOne(path, destPath, domain.OverlayNone)
		if err != nil {
			return nil
		}
		stats.EntriesChecked++
		if content {
			stats.ContentChanged++
		}
		if meta {
			stats.MetaChanged++
		}
		return nil
	})
}

// walkPurge runs a sync-style pass over the purge tree, with a
// timestamp check for converged entries, then removes destination
// entries the purge tree does not carry
func (s *Service) walkPurge(ctx context.Context, stats *Stats) error {
	root := s.cfg.PurgeDir

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.rep.Stderr("error: %s: %v", path, err)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if s.ignored(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		destPath, err := s.destFor(root, path)
		if err != nil {
			s.rep.Stderr("error: %s: %v", path, err)
			return nil
		}

		r, err := reconcile.New(path, destPath, domain.OverlayPurge,
			s.comparer, s.flags, s.rep)
		if err != nil {
			s.rep.Stderr("error: %s: %v", path, err)
			return nil
		}

		content, meta := r.Check()
		stats.EntriesChecked++
		if content {
			stats.ContentChanged++
		}
		if meta {
			stats.MetaChanged++
		}
		if !content && !meta && r.SrcStat.IsFile() {
			r.CheckPurgeTimestamp()
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.purgeObsolete(ctx, root, stats)
}

// purgeObsolete deletes destination entries under the purge tree that
// no longer exist in the repository. Children are removed before their
// parent so an emptied directory can be removed in the same pass.
func (s *Service) purgeObsolete(ctx context.Context, root string, stats *Stats) error {
	destRoot, err := s.destFor(root, root)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(destRoot); err != nil {
		// nothing on the destination side to purge
		return nil
	}

	var obsolete []string
	err = filepath.WalkDir(destRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.rep.Stderr("error: %s: %v", path, err)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == destRoot {
			return nil
		}

		rel, err := filepath.Rel(destRoot, path)
		if err != nil {
			return nil
		}
		srcPath := filepath.Join(root, rel)
		if _, err := os.Lstat(srcPath); err == nil {
			return nil
		}

		obsolete = append(obsolete, path)
		if d.IsDir() {
			// children of a doomed directory are deleted with it
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return err
	}

	// deepest paths first, so directory contents go before the directory
	sort.Slice(obsolete, func(i, j int) bool {
		return len(obsolete[i]) > len(obsolete[j])
	})

	for _, destPath := range obsolete {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.deleteObsolete(root, destPath, stats); err != nil {
			s.rep.Stderr("error: %s: %v", destPath, err)
		}
	}
	return nil
}

// deleteObsolete removes one destination entry (and, for a directory,
// everything inside it) via the handler selected by what is actually
// there
func (s *Service) deleteObsolete(purgeRoot, destPath string, stats *Stats) error {
	rel, err := filepath.Rel(s.destFirst(purgeRoot), destPath)
	if err != nil {
		return err
	}
	srcPath := filepath.Join(purgeRoot, rel)

	r, err := reconcile.New(srcPath, destPath, domain.OverlayPurge,
		s.comparer, s.flags, s.rep)
	if err != nil {
		return err
	}
	if !r.DestStat.Exists() {
		return nil
	}

	if r.DestStat.IsDir() {
		// contents first, then the directory itself
		entries, err := os.ReadDir(destPath)
		if err == nil {
			for _, e := range entries {
				if derr := s.deleteObsolete(purgeRoot, filepath.Join(destPath, e.Name()), stats); derr != nil {
					s.rep.Stderr("error: %s: %v", filepath.Join(destPath, e.Name()), derr)
				}
			}
		}
	}

	h, err := r.DestHandler()
	if err != nil {
		return err
	}
	h.HardDelete()
	stats.Deleted++
	return nil
}

// destFor maps a repository path onto the destination root
func (s *Service) destFor(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return s.cfg.DestDir, nil
	}
	return filepath.Join(s.cfg.DestDir, rel), nil
}

// destFirst returns the destination root mapped from a repository root
func (s *Service) destFirst(root string) string {
	dest, _ := s.destFor(root, root)
	return dest
}

// checkOne builds a Reconciler for one pair and runs its cycle
func (s *Service) checkOne(srcPath, destPath string, overlay domain.OverlayType) (bool, bool, error) {
	r, err := reconcile.New(srcPath, destPath, overlay, s.comparer, s.flags, s.rep)
	if err != nil {
		s.rep.Stderr("error: %s: %v", srcPath, err)
		return false, false, err
	}
	content, meta := r.Check()
	return content, meta, nil
}

// ignored reports whether a base name matches a configured ignore
// pattern
func (s *Service) ignored(name string) bool {
	for _, pattern := range s.cfg.Ignore {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// recordRun persists the run outcome when a state manager is attached.
// Dry runs are recorded too; the mode string marks them.
func (s *Service) recordRun(mode string, start time.Time, stats *Stats, runErr error) {
	if s.state == nil {
		return
	}

	status := "success"
	errMsg := ""
	if runErr != nil {
		status = "failed"
		errMsg = runErr.Error()
	}

	record := state.RunRecord{
		Mode:           mode,
		StartTime:      start,
		EndTime:        time.Now(),
		Status:         status,
		EntriesChecked: stats.EntriesChecked,
		ContentChanged: stats.ContentChanged,
		MetaChanged:    stats.MetaChanged,
		Deleted:        stats.Deleted,
		Error:          errMsg,
	}
	if err := s.state.SaveRun(record); err != nil {
		s.log.Warn("failed to record run", "mode", mode, "error", err)
	}
}

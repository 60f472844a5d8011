// Package reconcile drives the compare-then-fix cycle for one
// source/destination path pair. A Reconciler is built per candidate
// entry, runs one cycle, and is discarded; nothing is shared across
// entries.
package reconcile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/avermeulen/confsync/internal/config"
	"github.com/avermeulen/confsync/internal/core/checksum"
	"github.com/avermeulen/confsync/internal/core/entry"
	"github.com/avermeulen/confsync/internal/domain"
	"github.com/avermeulen/confsync/internal/fstat"
	"github.com/avermeulen/confsync/internal/report"
)

// Reconciler holds one source path (in the repository) and one
// destination path (on the host), with a cached metadata snapshot of
// each, taken exactly once at construction time.
type Reconciler struct {
	// SrcPath is the absolute path of the repository entry
	SrcPath string

	// DestPath is the absolute path of the host entry
	DestPath string

	// Overlay is threaded through unchanged for the overlay layer
	Overlay domain.OverlayType

	// SrcStat and DestStat are the cached snapshots
	SrcStat  *fstat.Snapshot
	DestStat *fstat.Snapshot

	flags    config.RunFlags
	rep      *report.Reporter
	comparer *checksum.Comparer
}

// New builds a Reconciler for a source/destination pair. Relative
// paths are resolved to absolute ones and both snapshots are taken
// here, once.
func New(srcPath, destPath string, overlay domain.OverlayType,
	cmp *checksum.Comparer, flags config.RunFlags, rep *report.Reporter) (*Reconciler, error) {

	absSrc, err := filepath.Abs(srcPath)
	if err != nil {
		return nil, fmt.Errorf("resolving source path %s: %w", srcPath, err)
	}
	absDest, err := filepath.Abs(destPath)
	if err != nil {
		return nil, fmt.Errorf("resolving destination path %s: %w", destPath, err)
	}

	srcStat, err := fstat.New(absSrc)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", absSrc, err)
	}
	destStat, err := fstat.New(absDest)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", absDest, err)
	}

	if cmp == nil {
		cmp = checksum.NewDefaultComparer()
	}

	return &Reconciler{
		SrcPath:  absSrc,
		DestPath: absDest,
		Overlay:  overlay,
		SrcStat:  srcStat,
		DestStat: destStat,
		flags:    flags,
		rep:      rep,
		comparer: cmp,
	}, nil
}

// PrintSrc renders the source path for display, with a trailing slash
// for directories
func (r *Reconciler) PrintSrc() string {
	if r.SrcStat != nil && r.SrcStat.IsDir() {
		return r.rep.Pretty(r.SrcPath) + "/"
	}
	return r.rep.Pretty(r.SrcPath)
}

// Check compares destination against source and converges when they
// differ. The first result reports a content-level change (new entry,
// type change or content change) that should trigger dependent
// post-change actions; the second reports a metadata-only correction
// (owner or mode), which should not.
func (r *Reconciler) Check() (contentChanged, metadataChanged bool) {
	if !r.DestStat.Exists() {
		r.rep.Stdout("%s does not exist", r.DestPath)
		h, err := r.Handler()
		if err != nil {
			return false, false
		}
		if !r.flags.DryRun {
			r.rep.Audit("creating", r.DestPath)
		}
		h.Fix()
		return true, false
	}

	if r.SrcStat.FileType() != r.DestStat.FileType() {
		// entry is of a different file type
		h, err := r.Handler()
		if err != nil {
			return false, false
		}
		r.rep.Stdout("%s should be a %s", r.DestPath, h.TypeName())
		r.rep.Terse(domain.TerseWarning, "wrong type %s", r.DestPath)
		if !r.flags.DryRun {
			r.rep.Audit("fix type", r.DestPath)
		}
		h.Fix()
		return true, false
	}

	h, err := r.Handler()
	if err != nil {
		return false, false
	}
	if !h.Compare(r.SrcPath, r.DestStat) {
		// content differs; replace the entire entry
		if !r.flags.DryRun {
			r.rep.Audit("updating", r.DestPath)
		}
		h.Fix()
		return true, false
	}

	// Content matches. Owner and mode are checked and corrected
	// independently; a mismatch in one never short-circuits the other.
	metaUpdated := false
	if r.SrcStat.UID != r.DestStat.UID || r.SrcStat.GID != r.DestStat.GID {
		r.rep.Stdout("%s should have owner %s.%s (%d.%d), but has %s.%s (%d.%d)",
			r.DestPath,
			r.SrcStat.AsciiUID(), r.SrcStat.AsciiGID(), r.SrcStat.UID, r.SrcStat.GID,
			r.DestStat.AsciiUID(), r.DestStat.AsciiGID(), r.DestStat.UID, r.DestStat.GID)
		r.rep.Terse(domain.TerseOwner, "%s.%s %s",
			r.SrcStat.AsciiUID(), r.SrcStat.AsciiGID(), r.DestPath)
		if !r.flags.DryRun {
			r.rep.Audit("set owner", r.DestPath)
		}
		_ = h.SetOwner()
		metaUpdated = true
	}

	if r.SrcStat.Mode != r.DestStat.Mode {
		r.rep.Stdout("%s should have mode %04o, but has %04o",
			r.DestPath, r.SrcStat.Mode, r.DestStat.Mode)
		r.rep.Terse(domain.TerseMode, "%04o %s", r.SrcStat.Mode, r.DestPath)
		if !r.flags.DryRun {
			r.rep.Audit("set mode", r.DestPath)
		}
		_ = h.SetPermissions()
		metaUpdated = true
	}

	return false, metaUpdated
}

// Handler builds the entry handler for this pair, dispatching on the
// source's type. This is the normal convergence path.
func (r *Reconciler) Handler() (entry.Handler, error) {
	return r.buildHandler(r.SrcStat)
}

// DestHandler builds the entry handler dispatching on the destination's
// type, for callers that act on whatever currently exists at the
// destination (purge mode deleting obsolete entries).
func (r *Reconciler) DestHandler() (entry.Handler, error) {
	return r.buildHandler(r.DestStat)
}

// buildHandler constructs the variant selected by the discriminating
// snapshot. The source snapshot always describes the target state.
func (r *Reconciler) buildHandler(sel *fstat.Snapshot) (entry.Handler, error) {
	exists := r.DestStat.Exists()

	switch sel.FileType() {
	case domain.EntryFile:
		return entry.NewFile(r.DestPath, r.SrcStat, exists, r.SrcPath,
			r.comparer, r.flags, r.rep), nil

	case domain.EntryDirectory:
		return entry.NewDir(r.DestPath, r.SrcStat, exists, r.flags, r.rep), nil

	case domain.EntrySymlink:
		// The recorded target comes from whichever side selected the
		// variant; a purge pass must be able to handle a dangling
		// destination link whose source never existed.
		linkPath := r.SrcPath
		if sel == r.DestStat {
			linkPath = r.DestPath
		}
		target, err := os.Readlink(linkPath)
		if err != nil {
			r.rep.Stderr("error reading symlink %s : %v", r.PrintSrc(), err)
			r.rep.Terse(domain.TerseFail, "%s", linkPath)
			return nil, err
		}
		return entry.NewSymlink(r.DestPath, r.SrcStat, exists, target, r.flags, r.rep), nil

	case domain.EntryFifo:
		return entry.NewFifo(r.DestPath, r.SrcStat, exists, r.flags, r.rep), nil

	case domain.EntryCharDev:
		return entry.NewCharDev(r.DestPath, r.SrcStat, exists, r.flags, r.rep), nil

	case domain.EntryBlockDev:
		return entry.NewBlockDev(r.DestPath, r.SrcStat, exists, r.flags, r.rep), nil
	}

	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEntryType, sel.Path)
}

// CheckPurgeTimestamp compares the modification times of source and
// destination, stat-ing both fresh because snapshots never cache
// timestamps. When the source is strictly newer its access and
// modification times are propagated onto the destination. Returns true
// when the timestamps already match, false on a (repaired) mismatch.
//
// Only used by single-file purge mode, after Check() has already
// established that content and metadata match.
func (r *Reconciler) CheckPurgeTimestamp() bool {
	var srcStat, destStat unix.Stat_t

	if err := unix.Lstat(r.SrcPath, &srcStat); err != nil {
		r.rep.Stderr("error: stat(%s) failed: %v", r.SrcPath, err)
		return false
	}
	if err := unix.Lstat(r.DestPath, &destStat); err != nil {
		r.rep.Stderr("error: stat(%s) failed: %v", r.DestPath, err)
		return false
	}

	srcMtime := time.Unix(srcStat.Mtim.Unix())
	destMtime := time.Unix(destStat.Mtim.Unix())
	if srcMtime.After(destMtime) {
		r.rep.Stdout("%s mismatch (only timestamp)", r.DestPath)
		r.rep.Terse(domain.TerseWarning, "%s (only timestamp)", r.DestPath)

		r.rep.Verbose(r.rep.DryRunMsg("  utime(%s, %s)"), r.DestPath, srcMtime.Format(time.UnixDate))
		r.rep.ShellEcho("touch -r %s %s", r.SrcPath, r.DestPath)

		h, err := r.Handler()
		if err != nil {
			return false
		}
		srcAtime := time.Unix(srcStat.Atim.Unix())
		_ = h.SetTimes(srcAtime, srcMtime)
		return false
	}

	return true
}

// Package entry implements the per-type filesystem entry handlers of
// the reconciliation engine. One handler is built per reconciliation
// attempt and discarded afterwards; handlers are never shared.
package entry

import (
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/avermeulen/confsync/internal/config"
	"github.com/avermeulen/confsync/internal/domain"
	"github.com/avermeulen/confsync/internal/fstat"
	"github.com/avermeulen/confsync/internal/report"
)

// Handler is the capability contract every entry type implements.
//
// Compare never mutates and never lets an I/O failure escape: it picks
// the conservative result instead (source unreadable reads as equal,
// destination unreadable as not equal). Mutating leaf operations return
// their error after reporting it; the orchestrating layer decides per
// call site whether to continue, and almost always does.
type Handler interface {
	// TypeName returns the human-readable type label, diagnostics only
	TypeName() string

	// Compare reports whether the destination already matches the
	// source for this type's notion of equality
	Compare(srcPath string, destStat *fstat.Snapshot) bool

	// Create makes the destination entry match the source description
	Create() error

	// Fix runs the full convergence sequence: move aside or delete an
	// incompatible existing entry, ensure the parent chain, create,
	// then apply owner and permission bits
	Fix()

	// SetOwner applies the source's uid/gid to the destination
	SetOwner() error

	// SetPermissions applies the source's permission bits
	SetPermissions() error

	// SetTimes applies access and modification times (purge mode only)
	SetTimes(atime, mtime time.Time) error

	// HardDelete is the user-visible, always-logged deletion used by
	// purge mode; it is never called from Fix
	HardDelete()
}

// base carries the state common to all entry types: the destination
// path, the source snapshot describing the target state, and whether
// the destination existed at check time.
type base struct {
	name   string
	stat   *fstat.Snapshot
	exists bool
	flags  config.RunFlags
	rep    *report.Reporter
}

// Compare is the default: type match is sufficient (directories, fifos)
func (b *base) Compare(srcPath string, destStat *fstat.Snapshot) bool {
	return true
}

// SetTimes sets access and mod times; only the purge timestamp check
// calls this
func (b *base) SetTimes(atime, mtime time.Time) error {
	if b.flags.DryRun {
		return nil
	}
	if err := os.Chtimes(b.name, atime, mtime); err != nil {
		b.rep.Stderr("failed to set utime on %s : %v", b.name, err)
		b.rep.Terse(domain.TerseFail, "utime %s", b.name)
		return err
	}
	return nil
}

// SetOwner sets ownership equal to source
func (b *base) SetOwner() error {
	b.rep.Verbose(b.rep.DryRunMsg("  chown(%s, %d, %d)"), b.name, b.stat.UID, b.stat.GID)
	b.rep.ShellEcho("chown %s.%s %s", b.stat.AsciiUID(), b.stat.AsciiGID(), b.name)
	if b.flags.DryRun {
		return nil
	}
	if err := os.Chown(b.name, b.stat.UID, b.stat.GID); err != nil {
		b.rep.Stderr("failed to chown %s.%s %s : %v",
			b.stat.AsciiUID(), b.stat.AsciiGID(), b.name, err)
		b.rep.Terse(domain.TerseFail, "owner %s", b.name)
		return err
	}
	return nil
}

// SetPermissions sets access permission bits equal to source.
// The snapshot carries raw st_mode bits, so the chmod goes through the
// raw syscall; a cast to os.FileMode would lose setuid/setgid/sticky.
func (b *base) SetPermissions() error {
	b.rep.Verbose(b.rep.DryRunMsg("  chmod(%s, %04o)"), b.name, b.stat.Mode)
	b.rep.ShellEcho("chmod 0%o %s", b.stat.Mode, b.name)
	if b.flags.DryRun {
		return nil
	}
	if err := unix.Chmod(b.name, b.stat.Mode); err != nil {
		b.rep.Stderr("failed to chmod %04o %s : %v", b.stat.Mode, b.name, err)
		b.rep.Terse(domain.TerseFail, "mode %s", b.name)
		return err
	}
	return nil
}

// HardDelete deletes the existing entry, visibly
func (b *base) HardDelete() {
	b.rep.Stdout("%sdeleting %s", b.rep.NotStr(), b.name)
	b.rep.ShellEcho("rm %s", b.name)
	b.rep.Terse(domain.TerseDelete, "%s", b.name)

	if b.flags.DryRun {
		return
	}
	b.rep.Verbose("  unlink(%s)", b.name)
	if err := os.Remove(b.name); err != nil {
		b.rep.Stderr("failed to delete %s : %v", b.name, err)
		b.rep.Terse(domain.TerseFail, "delete %s", b.name)
		return
	}
	b.rep.Audit("deleted", b.name)
}

// moveSaved moves the existing entry aside to <name>.saved. Failure is
// reported but not fatal; the following create will surface its own,
// more specific error.
func (b *base) moveSaved() {
	b.rep.Verbose(b.rep.DryRunMsg("saving %s as %s.saved"), b.name, b.name)
	b.rep.ShellEcho("mv %s %s.saved", b.name, b.name)

	if b.flags.DryRun {
		return
	}
	b.rep.Verbose("  rename(%s, %s.saved)", b.name, b.name)
	if err := os.Rename(b.name, b.name+".saved"); err != nil {
		b.rep.Stderr("failed to save %s as %s.saved : %v", b.name, b.name, err)
		b.rep.Terse(domain.TerseFail, "save %s.saved", b.name)
	}
}

// quietDelete silently deletes the existing entry; only called from the
// fix sequence. A failed delete falls through to create, which then
// reports the specific failure.
func (b *base) quietDelete() {
	if b.flags.DryRun {
		return
	}
	b.rep.Verbose("  unlink(%s)", b.name)
	_ = os.Remove(b.name)
}

// mkdirBase ensures the leading directory chain exists
func (b *base) mkdirBase() {
	if b.flags.DryRun {
		return
	}

	basedir := filepath.Dir(b.name)

	// be a bit quiet about it
	if b.flags.Verbose || b.flags.ShellEcho {
		b.rep.Verbose("making directory %s", b.rep.Pretty(basedir))
		b.rep.ShellEcho("mkdir -p %s", basedir)
	}

	if err := os.MkdirAll(basedir, 0755); err != nil {
		b.rep.Stderr("failed to make directory %s : %v", basedir, err)
		b.rep.Terse(domain.TerseFail, "mkdir %s", basedir)
	}
}

// runFix is the shared convergence sequence. quietDelete is passed in
// so directory handlers can substitute their move-aside fallback.
// Every step reports its own failure and the sequence keeps going; a
// single failed entry must not abort the rest of the host run.
func (b *base) runFix(h Handler, quietDelete func()) {
	if b.exists {
		if b.flags.BackupCopies {
			b.moveSaved()
		} else {
			quietDelete()
		}
	}

	b.mkdirBase()
	_ = h.Create()
	_ = h.SetOwner()
	_ = h.SetPermissions()
}

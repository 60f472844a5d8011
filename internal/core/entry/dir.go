package entry

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/avermeulen/confsync/internal/config"
	"github.com/avermeulen/confsync/internal/domain"
	"github.com/avermeulen/confsync/internal/fstat"
	"github.com/avermeulen/confsync/internal/report"
)

// Dir handles a directory entry. Directories are never content-compared;
// a type match is sufficient.
type Dir struct {
	base
}

// NewDir creates the handler for a directory
func NewDir(name string, stat *fstat.Snapshot, exists bool,
	flags config.RunFlags, rep *report.Reporter) *Dir {
	return &Dir{
		base: base{name: name, stat: stat, exists: exists, flags: flags, rep: rep},
	}
}

// TypeName returns the human readable type label
func (d *Dir) TypeName() string {
	return domain.EntryDirectory.String()
}

// Create makes the directory with the source's permission bits.
// An already-existing directory is success: recursive convergence plus
// parent-chain creation legitimately gets here twice.
func (d *Dir) Create() error {
	if info, err := os.Lstat(d.name); err == nil && info.IsDir() {
		return nil
	}

	d.rep.Verbose(d.rep.DryRunMsg("  mkdir(%s)"), d.name)
	d.rep.ShellEcho("mkdir %s", d.name)
	d.rep.Terse(domain.TerseMkdir, "%s", d.name)

	if d.flags.DryRun {
		return nil
	}
	if err := os.Mkdir(d.name, os.FileMode(d.stat.Mode&0777)); err != nil {
		d.rep.Stderr("failed to make directory %s : %v", d.name, err)
		d.rep.Terse(domain.TerseFail, "mkdir %s", d.name)
		return err
	}
	// mkdir honors the umask and cannot set setgid/sticky; apply the
	// raw source bits afterwards
	if err := unix.Chmod(d.name, d.stat.Mode); err != nil {
		d.rep.Stderr("failed to chmod %04o %s : %v", d.stat.Mode, d.name, err)
		d.rep.Terse(domain.TerseFail, "mode %s", d.name)
		return err
	}
	return nil
}

// HardDelete removes the directory. A non-empty directory is never
// forcibly emptied: the delete is downgraded to a move-aside.
func (d *Dir) HardDelete() {
	d.rep.Stdout("%sremoving %s/", d.rep.NotStr(), d.name)
	d.rep.ShellEcho("rmdir %s", d.name)
	d.rep.Terse(domain.TerseDelete, "%s/", d.name)

	if d.flags.DryRun {
		return
	}
	d.rep.Verbose("  rmdir(%s)", d.name)
	if err := os.Remove(d.name); err != nil {
		// probably directory not empty; refuse to delete, move aside
		d.rep.Verbose("refusing to delete directory %s", d.name)
		d.moveSaved()
		return
	}
	d.rep.Audit("deleted", d.name)
}

// quietDelete silently removes the directory during fix, falling back
// to move-aside when the directory is not empty
func (d *Dir) quietDelete() {
	if d.flags.DryRun {
		return
	}
	d.rep.Verbose("  rmdir(%s)", d.name)
	if err := os.Remove(d.name); err != nil {
		// probably directory not empty; refuse to delete, move aside
		d.rep.Verbose("refusing to delete directory %s", d.name)
		d.moveSaved()
	}
}

// Fix converges the destination to the source description
func (d *Dir) Fix() {
	d.runFix(d, d.quietDelete)
}

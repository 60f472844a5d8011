package entry

import (
	"golang.org/x/sys/unix"

	"github.com/avermeulen/confsync/internal/config"
	"github.com/avermeulen/confsync/internal/domain"
	"github.com/avermeulen/confsync/internal/fstat"
	"github.com/avermeulen/confsync/internal/report"
)

// Fifo handles a named pipe entry. A type match is sufficient; there is
// no deeper comparison.
type Fifo struct {
	base
}

// NewFifo creates the handler for a named pipe
func NewFifo(name string, stat *fstat.Snapshot, exists bool,
	flags config.RunFlags, rep *report.Reporter) *Fifo {
	return &Fifo{
		base: base{name: name, stat: stat, exists: exists, flags: flags, rep: rep},
	}
}

// TypeName returns the human readable type label
func (f *Fifo) TypeName() string {
	return domain.EntryFifo.String()
}

// Create makes the named pipe with the source's permission bits
func (f *Fifo) Create() error {
	f.rep.Verbose(f.rep.DryRunMsg("  mkfifo(%s)"), f.name)
	f.rep.ShellEcho("mkfifo %s", f.name)
	f.rep.Terse(domain.TerseNew, "%s", f.name)

	if f.flags.DryRun {
		return nil
	}
	if err := unix.Mkfifo(f.name, f.stat.Mode&0777); err != nil {
		f.rep.Stderr("failed to create fifo %s : %v", f.name, err)
		f.rep.Terse(domain.TerseFail, "fifo %s", f.name)
		return err
	}
	return nil
}

// Fix converges the destination to the source description
func (f *Fifo) Fix() {
	f.runFix(f, f.quietDelete)
}

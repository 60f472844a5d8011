package entry

import (
	"golang.org/x/sys/unix"

	"github.com/avermeulen/confsync/internal/config"
	"github.com/avermeulen/confsync/internal/domain"
	"github.com/avermeulen/confsync/internal/fstat"
	"github.com/avermeulen/confsync/internal/report"
)

// Device handles a character or block device entry. The source snapshot
// carries the raw device number, so comparison needs no extra stat
// call: the destination snapshot carries its own.
type Device struct {
	base
	dtype domain.EntryType
}

// NewCharDev creates the handler for a character device file
func NewCharDev(name string, stat *fstat.Snapshot, exists bool,
	flags config.RunFlags, rep *report.Reporter) *Device {
	return &Device{
		base:  base{name: name, stat: stat, exists: exists, flags: flags, rep: rep},
		dtype: domain.EntryCharDev,
	}
}

// NewBlockDev creates the handler for a block device file
func NewBlockDev(name string, stat *fstat.Snapshot, exists bool,
	flags config.RunFlags, rep *report.Reporter) *Device {
	return &Device{
		base:  base{name: name, stat: stat, exists: exists, flags: flags, rep: rep},
		dtype: domain.EntryBlockDev,
	}
}

// TypeName returns the human readable type label
func (d *Device) TypeName() string {
	return d.dtype.String()
}

// Compare reports whether the destination device carries the same
// major,minor numbers as the source
func (d *Device) Compare(srcPath string, destStat *fstat.Snapshot) bool {
	if !d.exists || !destStat.Exists() {
		return false
	}

	srcMajor, srcMinor := d.stat.Major(), d.stat.Minor()
	destMajor, destMinor := destStat.Major(), destStat.Minor()
	if srcMajor != destMajor || srcMinor != destMinor {
		d.rep.Stdout("%s should have major,minor %d,%d but has %d,%d",
			d.name, srcMajor, srcMinor, destMajor, destMinor)
		d.rep.ShellEcho("# updating major,minor %s", d.name)
		d.rep.Terse(domain.TerseSync, "%s", d.name)
		return false
	}

	return true
}

// Create makes the device special file with the correct type bit, the
// source's permission bits and the source's device number
func (d *Device) Create() error {
	major, minor := d.stat.Major(), d.stat.Minor()

	typeBit := uint32(unix.S_IFCHR)
	typeChar := "c"
	if d.dtype == domain.EntryBlockDev {
		typeBit = unix.S_IFBLK
		typeChar = "b"
	}

	d.rep.Verbose(d.rep.DryRunMsg("  mknod(%s, %s %d,%d)"), d.name, typeChar, major, minor)
	d.rep.ShellEcho("mknod %s %s %d %d", d.name, typeChar, major, minor)
	d.rep.Terse(domain.TerseNew, "%s", d.name)

	if d.flags.DryRun {
		return nil
	}
	mode := (d.stat.Mode & 0777) | typeBit
	if err := unix.Mknod(d.name, mode, int(unix.Mkdev(major, minor))); err != nil {
		d.rep.Stderr("failed to create device %s : %v", d.name, err)
		d.rep.Terse(domain.TerseFail, "device %s", d.name)
		return err
	}
	return nil
}

// Fix converges the destination to the source description
func (d *Device) Fix() {
	d.runFix(d, d.quietDelete)
}

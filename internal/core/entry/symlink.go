package entry

import (
	"errors"
	"os"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/avermeulen/confsync/internal/config"
	"github.com/avermeulen/confsync/internal/domain"
	"github.com/avermeulen/confsync/internal/fstat"
	"github.com/avermeulen/confsync/internal/report"
)

// Symlink handles a symbolic link entry. The recorded target string is
// what gets compared and created; the link is never followed.
type Symlink struct {
	base
	target string
}

// NewSymlink creates the handler for a symbolic link pointing at target
func NewSymlink(name string, stat *fstat.Snapshot, exists bool, target string,
	flags config.RunFlags, rep *report.Reporter) *Symlink {
	return &Symlink{
		base:   base{name: name, stat: stat, exists: exists, flags: flags, rep: rep},
		target: target,
	}
}

// TypeName returns the human readable type label
func (s *Symlink) TypeName() string {
	return domain.EntrySymlink.String()
}

// Compare reports whether the destination link points at the recorded
// target, exactly
func (s *Symlink) Compare(srcPath string, destStat *fstat.Snapshot) bool {
	if !s.exists {
		return false
	}

	linkTo, err := os.Readlink(s.name)
	if err != nil {
		s.rep.Stderr("error reading symlink %s : %v", s.name, err)
		return false
	}

	if s.target != linkTo {
		s.rep.Stdout("%s should point to %s, but points to %s", s.name, s.target, linkTo)
		s.rep.Terse(domain.TerseLink, "%s", s.name)
		return false
	}

	return true
}

// Create makes the symbolic link
func (s *Symlink) Create() error {
	s.rep.Verbose(s.rep.DryRunMsg("  symlink(%s, %s)"), s.target, s.name)
	s.rep.ShellEcho("ln -s %s %s", s.target, s.name)
	s.rep.Terse(domain.TerseLink, "%s", s.name)

	if s.flags.DryRun {
		return nil
	}
	if err := os.Symlink(s.target, s.name); err != nil {
		s.rep.Stderr("failed to create symlink %s -> %s : %v", s.name, s.target, err)
		s.rep.Terse(domain.TerseFail, "link %s", s.name)
		return err
	}
	return nil
}

// SetOwner sets ownership of the link itself, not its target
func (s *Symlink) SetOwner() error {
	s.rep.Verbose(s.rep.DryRunMsg("  lchown(%s, %d, %d)"), s.name, s.stat.UID, s.stat.GID)
	s.rep.ShellEcho("lchown %s.%s %s", s.stat.AsciiUID(), s.stat.AsciiGID(), s.name)
	if s.flags.DryRun {
		return nil
	}
	if err := os.Lchown(s.name, s.stat.UID, s.stat.GID); err != nil {
		s.rep.Stderr("failed to lchown %s.%s %s : %v",
			s.stat.AsciiUID(), s.stat.AsciiGID(), s.name, err)
		s.rep.Terse(domain.TerseFail, "owner %s", s.name)
		return err
	}
	return nil
}

// SetPermissions sets the mode of the link itself where the platform
// supports it. Linux symlinks are always mode 0777; there the step is
// a silent no-op, not an error.
func (s *Symlink) SetPermissions() error {
	if !lchmodSupported() {
		return nil
	}

	s.rep.Verbose(s.rep.DryRunMsg("  lchmod(%s, %04o)"), s.name, s.stat.Mode)
	s.rep.ShellEcho("lchmod 0%o %s", s.stat.Mode, s.name)
	if s.flags.DryRun {
		return nil
	}
	err := unix.Fchmodat(unix.AT_FDCWD, s.name, s.stat.Mode, unix.AT_SYMLINK_NOFOLLOW)
	if err != nil {
		if errors.Is(err, unix.EOPNOTSUPP) {
			return nil
		}
		s.rep.Stderr("failed to lchmod %04o %s : %v", s.stat.Mode, s.name, err)
		s.rep.Terse(domain.TerseFail, "mode %s", s.name)
		return err
	}
	return nil
}

// lchmodSupported reports whether the platform can change the mode of
// a link itself
func lchmodSupported() bool {
	switch runtime.GOOS {
	case "darwin", "freebsd", "netbsd", "openbsd":
		return true
	default:
		return false
	}
}

// Fix converges the destination to the source description
func (s *Symlink) Fix() {
	s.runFix(s, s.quietDelete)
}

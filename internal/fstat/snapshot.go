package fstat

import (
	"errors"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/avermeulen/confsync/internal/domain"
)

// Snapshot is an immutable lstat view of a single path, taken once at
// construction time. Staleness is the caller's responsibility: a Snapshot
// never re-queries the filesystem.
//
// Timestamps are deliberately not cached; they are only needed by the
// purge timestamp check, which stats fresh.
type Snapshot struct {
	// Path is the absolute path this snapshot describes
	Path string

	// Mode holds the permission bits (mode & 07777)
	Mode uint32

	// UID and GID of the entry owner
	UID int
	GID int

	// Size in bytes (meaningful for regular files only)
	Size int64

	// RDev is the raw device number for character and block device
	// entries, so compare/create never needs a second stat call
	RDev uint64

	exists bool
	ftype  domain.EntryType
}

// New takes a snapshot of path via lstat. A missing path yields a valid
// snapshot with Exists() == false; any other stat failure is returned.
func New(path string) (*Snapshot, error) {
	s := &Snapshot{Path: path}

	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.ENOTDIR) {
			return s, nil
		}
		if errors.Is(err, unix.EACCES) {
			return nil, domain.ErrPermissionDenied
		}
		return nil, err
	}

	s.exists = true
	s.Mode = uint32(st.Mode) & 07777
	s.UID = int(st.Uid)
	s.GID = int(st.Gid)
	s.Size = st.Size
	s.ftype = entryType(uint32(st.Mode))
	if s.ftype == domain.EntryCharDev || s.ftype == domain.EntryBlockDev {
		s.RDev = uint64(st.Rdev)
	}
	return s, nil
}

// entryType decodes the file type bits of a raw st_mode
func entryType(mode uint32) domain.EntryType {
	switch mode & unix.S_IFMT {
	case unix.S_IFREG:
		return domain.EntryFile
	case unix.S_IFDIR:
		return domain.EntryDirectory
	case unix.S_IFLNK:
		return domain.EntrySymlink
	case unix.S_IFIFO:
		return domain.EntryFifo
	case unix.S_IFCHR:
		return domain.EntryCharDev
	case unix.S_IFBLK:
		return domain.EntryBlockDev
	default:
		return domain.EntryUnknown
	}
}

// Exists reports whether the path existed at snapshot time
func (s *Snapshot) Exists() bool {
	return s.exists
}

// FileType returns the entry type seen at snapshot time
func (s *Snapshot) FileType() domain.EntryType {
	return s.ftype
}

// IsFile reports whether the entry is a regular file
func (s *Snapshot) IsFile() bool {
	return s.exists && s.ftype == domain.EntryFile
}

// IsDir reports whether the entry is a directory
func (s *Snapshot) IsDir() bool {
	return s.exists && s.ftype == domain.EntryDirectory
}

// IsLink reports whether the entry is a symbolic link
func (s *Snapshot) IsLink() bool {
	return s.exists && s.ftype == domain.EntrySymlink
}

// IsFifo reports whether the entry is a named pipe
func (s *Snapshot) IsFifo() bool {
	return s.exists && s.ftype == domain.EntryFifo
}

// IsCharDev reports whether the entry is a character device file
func (s *Snapshot) IsCharDev() bool {
	return s.exists && s.ftype == domain.EntryCharDev
}

// IsBlockDev reports whether the entry is a block device file
func (s *Snapshot) IsBlockDev() bool {
	return s.exists && s.ftype == domain.EntryBlockDev
}

// Major returns the device major number for device entries
func (s *Snapshot) Major() uint32 {
	return unix.Major(s.RDev)
}

// Minor returns the device minor number for device entries
func (s *Snapshot) Minor() uint32 {
	return unix.Minor(s.RDev)
}

// AsciiUID renders the owner as a user name, falling back to the
// numeric uid when the name cannot be resolved
func (s *Snapshot) AsciiUID() string {
	if u, err := user.LookupId(strconv.Itoa(s.UID)); err == nil {
		return u.Username
	}
	return strconv.Itoa(s.UID)
}

// AsciiGID renders the group as a group name, falling back to the
// numeric gid when the name cannot be resolved
func (s *Snapshot) AsciiGID() string {
	if g, err := user.LookupGroupId(strconv.Itoa(s.GID)); err == nil {
		return g.Name
	}
	return strconv.Itoa(s.GID)
}

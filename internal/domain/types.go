package domain

// EntryType represents the type of a filesystem entry
type EntryType int

const (
	EntryUnknown EntryType = iota
	EntryFile
	EntryDirectory
	EntrySymlink
	EntryFifo
	EntryCharDev
	EntryBlockDev
)

// String returns a human readable name for the entry type
func (t EntryType) String() string {
	switch t {
	case EntryFile:
		return "regular file"
	case EntryDirectory:
		return "directory"
	case EntrySymlink:
		return "symbolic link"
	case EntryFifo:
		return "fifo"
	case EntryCharDev:
		return "character device file"
	case EntryBlockDev:
		return "block device file"
	default:
		return "(unknown file type)"
	}
}

// OverlayType tags where a source entry came from in the repository.
// The reconciliation core threads it through unchanged; only the
// overlay walking layer interprets it.
type OverlayType int

const (
	OverlayNone OverlayType = iota
	OverlayPost
	OverlayTemplate
	OverlayPurge
)

// TerseCode is a short machine-parseable tag emitted once per event
// for downstream aggregation across hosts.
type TerseCode string

const (
	TerseNew     TerseCode = "new"
	TerseDelete  TerseCode = "delete"
	TerseMkdir   TerseCode = "mkdir"
	TerseSync    TerseCode = "sync"
	TerseOwner   TerseCode = "owner"
	TerseMode    TerseCode = "mode"
	TerseLink    TerseCode = "link"
	TerseWarning TerseCode = "warning"
	TerseFail    TerseCode = "fail"
)

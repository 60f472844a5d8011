package domain

import "errors"

// Filesystem errors
var (
	// ErrNotFound indicates the requested path does not exist
	ErrNotFound = errors.New("path not found")

	// ErrPermissionDenied indicates insufficient permissions
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotDirectory indicates expected a directory but got something else
	ErrNotDirectory = errors.New("not a directory")

	// ErrDirectoryNotEmpty indicates a directory delete was refused
	ErrDirectoryNotEmpty = errors.New("directory not empty")

	// ErrUnknownEntryType indicates an entry type the engine cannot handle
	ErrUnknownEntryType = errors.New("unknown entry type")

	// ErrUnsupported indicates the platform lacks the required capability
	ErrUnsupported = errors.New("operation not supported on this platform")
)

// Reconciliation errors
var (
	// ErrSourceUnreadable indicates the source entry could not be read;
	// the destination is never touched in this case
	ErrSourceUnreadable = errors.New("source unreadable")

	// ErrSyncInProgress indicates another run already holds the host lock
	ErrSyncInProgress = errors.New("sync already in progress")
)

// Config errors
var (
	// ErrConfigNotFound indicates config file not found
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigInvalid indicates config file is malformed
	ErrConfigInvalid = errors.New("invalid config")
)

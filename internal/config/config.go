package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/avermeulen/confsync/internal/core/checksum"
	"github.com/avermeulen/confsync/internal/domain"
)

// RunFlags holds the per-run behavior switches. The value is immutable
// once a run starts and is passed explicitly into every Reconciler and
// entry handler, never read from ambient globals, so tests can run
// several configurations in one process.
type RunFlags struct {
	// DryRun skips every mutating filesystem call but still reports
	// what would have been done
	DryRun bool

	// Verbose enables the detailed per-syscall output lines
	Verbose bool

	// ShellEcho emits a line resembling the shell command that would
	// have performed each mutation, for audit/replay
	ShellEcho bool

	// BackupCopies renames a soon-to-be-replaced entry to a .saved
	// sibling instead of deleting it
	BackupCopies bool
}

// Config represents the complete configuration for confsync
type Config struct {
	// OverlayDir is the repository tree holding desired state
	OverlayDir string `mapstructure:"overlay_dir"`

	// PurgeDir is the repository tree for purge mode (optional)
	PurgeDir string `mapstructure:"purge_dir"`

	// DestDir is the destination root the overlay maps onto
	DestDir string `mapstructure:"dest_dir"`

	// BackupCopies is the default backup-on-replace policy
	BackupCopies bool `mapstructure:"backup_copies"`

	// Ignore holds glob patterns skipped during the overlay walk
	Ignore []string `mapstructure:"ignore"`

	// Checksum configures content comparison
	Checksum ChecksumConfig `mapstructure:"checksum"`

	// Logging configures the process logger
	Logging LoggingConfig `mapstructure:"logging"`

	// DataDir holds the run history database
	DataDir string `mapstructure:"data_dir"`

	// LockDir holds the host run lock
	LockDir string `mapstructure:"lock_dir"`
}

// ChecksumConfig configures the streaming content comparison
type ChecksumConfig struct {
	// Algorithm is "md5" or "sha256"
	Algorithm string `mapstructure:"algorithm"`

	// BlockSizeKB is the lock-step read block size in KB
	BlockSizeKB int `mapstructure:"block_size_kb"`
}

// LoggingConfig configures the process logger
type LoggingConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig configures the rotated log file
type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// Validate checks if the configuration is complete and consistent
func (c *Config) Validate() error {
	if c.OverlayDir == "" {
		return fmt.Errorf("%w: overlay_dir cannot be empty", domain.ErrConfigInvalid)
	}
	if c.DestDir == "" {
		return fmt.Errorf("%w: dest_dir cannot be empty", domain.ErrConfigInvalid)
	}
	if c.Checksum.Algorithm != "" && !checksum.IsSupported(checksum.Algorithm(c.Checksum.Algorithm)) {
		return fmt.Errorf("%w: unsupported checksum algorithm: %s",
			domain.ErrConfigInvalid, c.Checksum.Algorithm)
	}
	if c.Checksum.BlockSizeKB < 0 {
		return fmt.Errorf("%w: checksum block size cannot be negative", domain.ErrConfigInvalid)
	}
	return nil
}

// ChecksumOptions translates the config into comparer options
func (c *Config) ChecksumOptions() checksum.Options {
	opts := checksum.DefaultOptions()
	if c.Checksum.Algorithm != "" {
		opts.Algorithm = checksum.Algorithm(c.Checksum.Algorithm)
	}
	if c.Checksum.BlockSizeKB > 0 {
		opts.BlockSize = c.Checksum.BlockSizeKB * 1024
	}
	return opts
}

// GetDataDir returns the data directory, defaulting under the user
// config directory
func (c *Config) GetDataDir() string {
	if c.DataDir != "" {
		return ExpandPath(c.DataDir)
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "confsync")
	}
	return ".confsync"
}

// GetLockDir returns the lock directory, defaulting to the data dir
func (c *Config) GetLockDir() string {
	if c.LockDir != "" {
		return ExpandPath(c.LockDir)
	}
	return c.GetDataDir()
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			if len(path) > 1 && (path[1] == '/' || path[1] == filepath.Separator) {
				path = filepath.Join(home, path[2:])
			} else if len(path) == 1 {
				path = home
			}
		}
	}
	path = os.ExpandEnv(path)
	return filepath.Clean(path)
}

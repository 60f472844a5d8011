package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/avermeulen/confsync/internal/domain"
)

func TestLoadFromString_Valid(t *testing.T) {
	yaml := `
overlay_dir: /var/lib/confsync/overlay
dest_dir: /
purge_dir: /var/lib/confsync/purge
backup_copies: true
ignore:
  - "*.swp"
  - ".git"
checksum:
  algorithm: sha256
  block_size_kb: 64
logging:
  level: debug
`
	cfg, err := LoadFromString(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.OverlayDir != "/var/lib/confsync/overlay" {
		t.Errorf("unexpected overlay_dir: %s", cfg.OverlayDir)
	}
	if cfg.DestDir != "/" {
		t.Errorf("unexpected dest_dir: %s", cfg.DestDir)
	}
	if !cfg.BackupCopies {
		t.Error("expected backup_copies true")
	}
	if len(cfg.Ignore) != 2 {
		t.Errorf("expected 2 ignore patterns, got %d", len(cfg.Ignore))
	}
	if cfg.Checksum.Algorithm != "sha256" {
		t.Errorf("unexpected checksum algorithm: %s", cfg.Checksum.Algorithm)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("unexpected log level: %s", cfg.Logging.Level)
	}
}

func TestLoadFromString_MissingOverlayDir(t *testing.T) {
	_, err := LoadFromString("dest_dir: /\n")
	if !errors.Is(err, domain.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestLoadFromString_MissingDestDir(t *testing.T) {
	_, err := LoadFromString("overlay_dir: /overlay\n")
	if !errors.Is(err, domain.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestLoadFromString_BadChecksumAlgorithm(t *testing.T) {
	yaml := `
overlay_dir: /overlay
dest_dir: /
checksum:
  algorithm: crc32
`
	_, err := LoadFromString(yaml)
	if !errors.Is(err, domain.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestLoadFromString_DefaultsApplied(t *testing.T) {
	cfg, err := LoadFromString("overlay_dir: /overlay\ndest_dir: /\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Checksum.Algorithm != "md5" {
		t.Errorf("expected default algorithm md5, got %s", cfg.Checksum.Algorithm)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default level info, got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected default format text, got %s", cfg.Logging.Format)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "confsync.yaml")
	content := "overlay_dir: /overlay\ndest_dir: /\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OverlayDir != "/overlay" {
		t.Errorf("unexpected overlay_dir: %s", cfg.OverlayDir)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "no-such.yaml"))
	if err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestChecksumOptions(t *testing.T) {
	cfg := &Config{
		Checksum: ChecksumConfig{Algorithm: "sha256", BlockSizeKB: 64},
	}

	opts := cfg.ChecksumOptions()
	if string(opts.Algorithm) != "sha256" {
		t.Errorf("unexpected algorithm: %s", opts.Algorithm)
	}
	if opts.BlockSize != 64*1024 {
		t.Errorf("expected block size 65536, got %d", opts.BlockSize)
	}
}

func TestChecksumOptions_Defaults(t *testing.T) {
	cfg := &Config{}

	opts := cfg.ChecksumOptions()
	if string(opts.Algorithm) != "md5" {
		t.Errorf("expected md5 default, got %s", opts.Algorithm)
	}
	if opts.BlockSize != 16*1024 {
		t.Errorf("expected 16KB default, got %d", opts.BlockSize)
	}
}

func TestExpandPath_Tilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}

	got := ExpandPath("~/overlay")
	want := filepath.Join(home, "overlay")
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestExpandPath_EnvVar(t *testing.T) {
	t.Setenv("CONFSYNC_TEST_DIR", "/srv/overlay")

	got := ExpandPath("$CONFSYNC_TEST_DIR/etc")
	if got != "/srv/overlay/etc" {
		t.Errorf("unexpected expansion: %s", got)
	}
}

func TestGetLockDir_DefaultsToDataDir(t *testing.T) {
	cfg := &Config{DataDir: "/var/lib/confsync"}

	if cfg.GetLockDir() != "/var/lib/confsync" {
		t.Errorf("expected data dir fallback, got %s", cfg.GetLockDir())
	}
}

func TestValidate_NegativeBlockSize(t *testing.T) {
	cfg := &Config{
		OverlayDir: "/overlay",
		DestDir:    "/",
		Checksum:   ChecksumConfig{BlockSizeKB: -1},
	}
	if err := cfg.Validate(); !errors.Is(err, domain.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

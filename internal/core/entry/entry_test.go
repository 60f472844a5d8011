package entry

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/avermeulen/confsync/internal/config"
	"github.com/avermeulen/confsync/internal/fstat"
	"github.com/avermeulen/confsync/internal/report"
)

func mkfifo(t *testing.T, path string) {
	t.Helper()
	if err := unix.Mkfifo(path, 0644); err != nil {
		t.Skipf("mkfifo unavailable: %v", err)
	}
}

// newTestReporter builds a reporter writing to buffers so tests can
// inspect the emitted lines
func newTestReporter(flags config.RunFlags) (*report.Reporter, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	terse := &bytes.Buffer{}
	rep := report.New(flags, report.Options{
		Stdout:   out,
		Stderr:   out,
		TerseOut: terse,
	})
	return rep, out, terse
}

func mustSnapshot(t *testing.T, path string) *fstat.Snapshot {
	t.Helper()
	s, err := fstat.New(path)
	if err != nil {
		t.Fatalf("failed to snapshot %s: %v", path, err)
	}
	return s
}

func writeFile(t *testing.T, path string, content []byte, mode os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, content, mode); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestFile_CreateCopiesContent(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src")
	destPath := filepath.Join(dir, "dest")
	writeFile(t, srcPath, []byte("payload"), 0644)

	rep, _, terse := newTestReporter(config.RunFlags{})
	f := NewFile(destPath, mustSnapshot(t, srcPath), false, srcPath, nil, config.RunFlags{}, rep)

	if err := f.Create(); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("destination not created: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("expected payload, got %q", got)
	}
	if !strings.Contains(terse.String(), "new ") {
		t.Errorf("expected terse new event, got %q", terse.String())
	}
}

func TestFile_CompareSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src")
	destPath := filepath.Join(dir, "dest")
	writeFile(t, srcPath, []byte("longer content"), 0644)
	writeFile(t, destPath, []byte("short"), 0644)

	rep, out, terse := newTestReporter(config.RunFlags{})
	f := NewFile(destPath, mustSnapshot(t, srcPath), true, srcPath, nil, config.RunFlags{}, rep)

	if f.Compare(srcPath, mustSnapshot(t, destPath)) {
		t.Error("different sizes should not compare equal")
	}
	if !strings.Contains(out.String(), "file size") {
		t.Errorf("expected size mismatch line, got %q", out.String())
	}
	if !strings.Contains(terse.String(), "sync ") {
		t.Errorf("expected terse sync event, got %q", terse.String())
	}
}

func TestFile_CompareEqualContent(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src")
	destPath := filepath.Join(dir, "dest")
	writeFile(t, srcPath, []byte("same bytes"), 0644)
	writeFile(t, destPath, []byte("same bytes"), 0644)

	rep, _, _ := newTestReporter(config.RunFlags{})
	f := NewFile(destPath, mustSnapshot(t, srcPath), true, srcPath, nil, config.RunFlags{}, rep)

	if !f.Compare(srcPath, mustSnapshot(t, destPath)) {
		t.Error("identical files should compare equal")
	}
}

func TestFile_CompareChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src")
	destPath := filepath.Join(dir, "dest")
	writeFile(t, srcPath, []byte("aaaaaaaa"), 0644)
	writeFile(t, destPath, []byte("bbbbbbbb"), 0644)

	rep, out, _ := newTestReporter(config.RunFlags{})
	f := NewFile(destPath, mustSnapshot(t, srcPath), true, srcPath, nil, config.RunFlags{}, rep)

	if f.Compare(srcPath, mustSnapshot(t, destPath)) {
		t.Error("same-size different content should not compare equal")
	}
	if !strings.Contains(out.String(), "checksum") {
		t.Errorf("expected checksum mismatch line, got %q", out.String())
	}
}

func TestFile_CompareUnreadableSourceReadsEqual(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src")
	destPath := filepath.Join(dir, "dest")
	writeFile(t, srcPath, []byte("12345678"), 0644)
	writeFile(t, destPath, []byte("abcdefgh"), 0644)

	srcStat := mustSnapshot(t, srcPath)
	destStat := mustSnapshot(t, destPath)

	// the source vanishes between snapshot and compare
	missing := filepath.Join(dir, "gone")

	rep, _, _ := newTestReporter(config.RunFlags{})
	f := NewFile(destPath, srcStat, true, missing, nil, config.RunFlags{}, rep)

	if !f.Compare(missing, destStat) {
		t.Error("an unreadable source must read as equal, never triggering a rewrite")
	}
}

func TestFile_CompareUnreadableDestReadsUnequal(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src")
	destPath := filepath.Join(dir, "dest")
	writeFile(t, srcPath, []byte("12345678"), 0644)
	writeFile(t, destPath, []byte("12345678"), 0644)

	srcStat := mustSnapshot(t, srcPath)
	destStat := mustSnapshot(t, destPath)

	// the destination vanishes between snapshot and compare
	if err := os.Remove(destPath); err != nil {
		t.Fatalf("failed to remove dest: %v", err)
	}

	rep, _, _ := newTestReporter(config.RunFlags{})
	f := NewFile(destPath, srcStat, true, srcPath, nil, config.RunFlags{}, rep)

	if f.Compare(srcPath, destStat) {
		t.Error("an unreadable destination must read as not equal so it gets replaced")
	}
}

func TestFile_FixReplacesContent(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src")
	destPath := filepath.Join(dir, "dest")
	writeFile(t, srcPath, []byte("new content"), 0644)
	writeFile(t, destPath, []byte("old content"), 0644)

	rep, _, _ := newTestReporter(config.RunFlags{})
	f := NewFile(destPath, mustSnapshot(t, srcPath), true, srcPath, nil, config.RunFlags{}, rep)
	f.Fix()

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("destination missing after fix: %v", err)
	}
	if string(got) != "new content" {
		t.Errorf("expected new content, got %q", got)
	}
	if _, err := os.Lstat(destPath + ".saved"); err == nil {
		t.Error("no .saved copy expected without the backup flag")
	}
}

func TestFile_FixKeepsSavedCopy(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src")
	destPath := filepath.Join(dir, "dest")
	writeFile(t, srcPath, []byte("new content"), 0644)
	writeFile(t, destPath, []byte("old content"), 0644)

	flags := config.RunFlags{BackupCopies: true}
	rep, _, _ := newTestReporter(flags)
	f := NewFile(destPath, mustSnapshot(t, srcPath), true, srcPath, nil, flags, rep)
	f.Fix()

	saved, err := os.ReadFile(destPath + ".saved")
	if err != nil {
		t.Fatalf(".saved copy missing: %v", err)
	}
	if string(saved) != "old content" {
		t.Errorf("expected old content in .saved, got %q", saved)
	}

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("destination missing after fix: %v", err)
	}
	if string(got) != "new content" {
		t.Errorf("expected new content, got %q", got)
	}
}

func TestFile_FixDryRunTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src")
	destPath := filepath.Join(dir, "dest")
	writeFile(t, srcPath, []byte("new content"), 0644)
	writeFile(t, destPath, []byte("old content"), 0644)

	flags := config.RunFlags{DryRun: true}
	rep, _, _ := newTestReporter(flags)
	f := NewFile(destPath, mustSnapshot(t, srcPath), true, srcPath, nil, flags, rep)
	f.Fix()

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("destination vanished in dry run: %v", err)
	}
	if string(got) != "old content" {
		t.Errorf("dry run modified the destination: %q", got)
	}
}

func TestFile_FixCreatesParentChain(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src")
	destPath := filepath.Join(dir, "a", "b", "dest")
	writeFile(t, srcPath, []byte("x"), 0644)

	rep, _, _ := newTestReporter(config.RunFlags{})
	f := NewFile(destPath, mustSnapshot(t, srcPath), false, srcPath, nil, config.RunFlags{}, rep)
	f.Fix()

	if _, err := os.ReadFile(destPath); err != nil {
		t.Fatalf("destination not created under new parent chain: %v", err)
	}
}

func TestDir_Create(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	destDir := filepath.Join(dir, "dest")
	if err := os.Mkdir(srcDir, 0750); err != nil {
		t.Fatalf("failed to create source dir: %v", err)
	}

	rep, _, terse := newTestReporter(config.RunFlags{})
	d := NewDir(destDir, mustSnapshot(t, srcDir), false, config.RunFlags{}, rep)

	if err := d.Create(); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	info, err := os.Lstat(destDir)
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected a directory")
	}
	if !strings.Contains(terse.String(), "mkdir ") {
		t.Errorf("expected terse mkdir event, got %q", terse.String())
	}
}

func TestDir_CreateExistingIsSuccess(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	destDir := filepath.Join(dir, "dest")
	if err := os.Mkdir(srcDir, 0755); err != nil {
		t.Fatalf("failed to create source dir: %v", err)
	}
	if err := os.Mkdir(destDir, 0755); err != nil {
		t.Fatalf("failed to create dest dir: %v", err)
	}

	rep, _, _ := newTestReporter(config.RunFlags{})
	d := NewDir(destDir, mustSnapshot(t, srcDir), true, config.RunFlags{}, rep)

	if err := d.Create(); err != nil {
		t.Errorf("creating an existing directory should succeed, got %v", err)
	}
}

func TestDir_HardDeleteEmpty(t *testing.T) {
	dir := t.TempDir()
	destDir := filepath.Join(dir, "doomed")
	if err := os.Mkdir(destDir, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}

	rep, _, _ := newTestReporter(config.RunFlags{})
	d := NewDir(destDir, mustSnapshot(t, destDir), true, config.RunFlags{}, rep)
	d.HardDelete()

	if _, err := os.Lstat(destDir); !os.IsNotExist(err) {
		t.Error("empty directory should be removed")
	}
}

func TestDir_HardDeleteNonEmptyMovesAside(t *testing.T) {
	dir := t.TempDir()
	destDir := filepath.Join(dir, "doomed")
	if err := os.Mkdir(destDir, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	writeFile(t, filepath.Join(destDir, "keep"), []byte("x"), 0644)

	rep, _, _ := newTestReporter(config.RunFlags{})
	d := NewDir(destDir, mustSnapshot(t, destDir), true, config.RunFlags{}, rep)
	d.HardDelete()

	if _, err := os.Lstat(destDir + ".saved"); err != nil {
		t.Error("non-empty directory should be moved aside, not deleted")
	}
	if _, err := os.Lstat(filepath.Join(destDir+".saved", "keep")); err != nil {
		t.Error("moved-aside directory should keep its contents")
	}
}

func TestSymlink_CompareMatch(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "link")
	if err := os.Symlink("/etc/passwd", link); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	rep, _, _ := newTestReporter(config.RunFlags{})
	s := NewSymlink(link, mustSnapshot(t, link), true, "/etc/passwd", config.RunFlags{}, rep)

	if !s.Compare("", mustSnapshot(t, link)) {
		t.Error("link pointing at the recorded target should compare equal")
	}
}

func TestSymlink_CompareMismatch(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "link")
	if err := os.Symlink("/etc/hosts", link); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	rep, out, terse := newTestReporter(config.RunFlags{})
	s := NewSymlink(link, mustSnapshot(t, link), true, "/etc/passwd", config.RunFlags{}, rep)

	if s.Compare("", mustSnapshot(t, link)) {
		t.Error("link pointing elsewhere should not compare equal")
	}
	if !strings.Contains(out.String(), "should point to /etc/passwd") {
		t.Errorf("expected retarget line, got %q", out.String())
	}
	if !strings.Contains(terse.String(), "link ") {
		t.Errorf("expected terse link event, got %q", terse.String())
	}
}

func TestSymlink_Create(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "link")

	rep, _, _ := newTestReporter(config.RunFlags{})
	s := NewSymlink(link, &fstat.Snapshot{Path: link, Mode: 0777}, false, "/etc/passwd", config.RunFlags{}, rep)

	if err := s.Create(); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	target, err := os.Readlink(link)
	if err != nil {
		t.Fatalf("link not created: %v", err)
	}
	if target != "/etc/passwd" {
		t.Errorf("expected target /etc/passwd, got %s", target)
	}
}

func TestFifo_Create(t *testing.T) {
	dir := t.TempDir()
	srcFifo := filepath.Join(dir, "src.pipe")
	destFifo := filepath.Join(dir, "dest.pipe")

	mkfifo(t, srcFifo)

	rep, _, _ := newTestReporter(config.RunFlags{})
	f := NewFifo(destFifo, mustSnapshot(t, srcFifo), false, config.RunFlags{}, rep)

	if err := f.Create(); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	s := mustSnapshot(t, destFifo)
	if !s.IsFifo() {
		t.Errorf("expected a fifo, got %v", s.FileType())
	}
}

func TestDevice_CompareSameNumbers(t *testing.T) {
	null := mustSnapshot(t, "/dev/null")
	if !null.IsCharDev() {
		t.Skip("/dev/null is not a character device here")
	}

	rep, _, _ := newTestReporter(config.RunFlags{})
	d := NewCharDev("/dev/null", null, true, config.RunFlags{}, rep)

	if !d.Compare("", null) {
		t.Error("identical device numbers should compare equal")
	}
}

func TestDevice_CompareDifferentNumbers(t *testing.T) {
	null := mustSnapshot(t, "/dev/null")
	zero := mustSnapshot(t, "/dev/zero")
	if !null.IsCharDev() || !zero.IsCharDev() {
		t.Skip("character devices unavailable here")
	}

	rep, out, _ := newTestReporter(config.RunFlags{})
	d := NewCharDev("/dev/null", null, true, config.RunFlags{}, rep)

	if d.Compare("", zero) {
		t.Error("different device numbers should not compare equal")
	}
	if !strings.Contains(out.String(), "major,minor") {
		t.Errorf("expected device number line, got %q", out.String())
	}
}

func TestBase_HardDeleteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "victim")
	writeFile(t, path, []byte("x"), 0644)

	rep, out, terse := newTestReporter(config.RunFlags{})
	f := NewFile(path, mustSnapshot(t, path), true, path, nil, config.RunFlags{}, rep)
	f.HardDelete()

	if _, err := os.Lstat(path); !os.IsNotExist(err) {
		t.Error("file should be deleted")
	}
	if !strings.Contains(out.String(), "deleting") {
		t.Errorf("expected deleting line, got %q", out.String())
	}
	if !strings.Contains(terse.String(), "delete ") {
		t.Errorf("expected terse delete event, got %q", terse.String())
	}
}

func TestBase_HardDeleteDryRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "victim")
	writeFile(t, path, []byte("x"), 0644)

	flags := config.RunFlags{DryRun: true}
	rep, out, _ := newTestReporter(flags)
	f := NewFile(path, mustSnapshot(t, path), true, path, nil, flags, rep)
	f.HardDelete()

	if _, err := os.Lstat(path); err != nil {
		t.Error("dry run must not delete anything")
	}
	if !strings.Contains(out.String(), "not deleting") {
		t.Errorf("expected 'not deleting' line, got %q", out.String())
	}
}

func TestBase_SetPermissionsSpecialBits(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src")
	destPath := filepath.Join(dir, "dest")
	writeFile(t, srcPath, []byte("x"), 0755)
	writeFile(t, destPath, []byte("x"), 0755)

	// setuid on the source, raw bits as lstat reports them
	if err := unix.Chmod(srcPath, 04755); err != nil {
		t.Fatalf("failed to set setuid bit: %v", err)
	}
	srcStat := mustSnapshot(t, srcPath)
	if srcStat.Mode != 04755 {
		t.Fatalf("snapshot should carry raw mode 04755, got %04o", srcStat.Mode)
	}

	rep, _, _ := newTestReporter(config.RunFlags{})
	f := NewFile(destPath, srcStat, true, srcPath, nil, config.RunFlags{}, rep)

	if err := f.SetPermissions(); err != nil {
		t.Fatalf("SetPermissions failed: %v", err)
	}
	if got := mustSnapshot(t, destPath).Mode; got != 04755 {
		t.Errorf("setuid bit lost: expected mode 04755, got %04o", got)
	}
}

func TestDir_CreateSetgidSticky(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	destDir := filepath.Join(dir, "dest")
	if err := os.Mkdir(srcDir, 0755); err != nil {
		t.Fatalf("failed to create source dir: %v", err)
	}
	if err := unix.Chmod(srcDir, 03775); err != nil {
		t.Fatalf("failed to set setgid/sticky bits: %v", err)
	}

	rep, _, _ := newTestReporter(config.RunFlags{})
	d := NewDir(destDir, mustSnapshot(t, srcDir), false, config.RunFlags{}, rep)

	if err := d.Create(); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if got := mustSnapshot(t, destDir).Mode; got != 03775 {
		t.Errorf("special bits lost: expected mode 03775, got %04o", got)
	}
}

func TestBase_SetPermissions(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src")
	destPath := filepath.Join(dir, "dest")
	writeFile(t, srcPath, []byte("x"), 0600)
	writeFile(t, destPath, []byte("x"), 0644)

	rep, _, _ := newTestReporter(config.RunFlags{})
	f := NewFile(destPath, mustSnapshot(t, srcPath), true, srcPath, nil, config.RunFlags{}, rep)

	if err := f.SetPermissions(); err != nil {
		t.Fatalf("SetPermissions failed: %v", err)
	}
	s := mustSnapshot(t, destPath)
	if s.Mode != 0600 {
		t.Errorf("expected mode 0600, got %04o", s.Mode)
	}
}

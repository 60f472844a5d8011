package entry

import (
	"context"
	"io"
	"os"

	"github.com/avermeulen/confsync/internal/config"
	"github.com/avermeulen/confsync/internal/core/checksum"
	"github.com/avermeulen/confsync/internal/domain"
	"github.com/avermeulen/confsync/internal/fstat"
	"github.com/avermeulen/confsync/internal/report"
)

// File handles a regular file entry
type File struct {
	base
	srcPath  string
	comparer *checksum.Comparer
}

// NewFile creates the handler for a regular file.
// name is the destination path, stat the source snapshot, srcPath the
// source content path.
func NewFile(name string, stat *fstat.Snapshot, exists bool, srcPath string,
	cmp *checksum.Comparer, flags config.RunFlags, rep *report.Reporter) *File {
	if cmp == nil {
		cmp = checksum.NewDefaultComparer()
	}
	return &File{
		base:     base{name: name, stat: stat, exists: exists, flags: flags, rep: rep},
		srcPath:  srcPath,
		comparer: cmp,
	}
}

// TypeName returns the human readable type label
func (f *File) TypeName() string {
	return domain.EntryFile.String()
}

// Compare reports whether source and destination carry the same bytes.
// Cached sizes short-circuit a mismatch without any read; equal sizes
// fall through to the streaming checksum comparison.
func (f *File) Compare(srcPath string, destStat *fstat.Snapshot) bool {
	if f.stat.Size != destStat.Size {
		if f.flags.DryRun {
			f.rep.Stdout("%s mismatch (file size)", f.name)
		} else {
			f.rep.Stdout("%s updated (file size mismatch)", f.name)
		}
		f.rep.Terse(domain.TerseSync, "%s", f.name)
		f.rep.ShellEcho("# updating file %s", f.name)
		return false
	}

	return f.compareChecksums(srcPath)
}

// compareChecksums streams both files through the comparer.
// An unreadable source reads as equal: we can never fix an error on the
// source side, and replacing a destination over a transient source
// fault would be destructive. An unreadable destination reads as not
// equal so it gets replaced.
func (f *File) compareChecksums(srcPath string) bool {
	src, err := os.Open(srcPath)
	if err != nil {
		f.rep.Stderr("error: failed to open %s : %v", srcPath, err)
		return true
	}
	defer src.Close()

	dest, err := os.Open(f.name)
	if err != nil {
		f.rep.Stderr("error: failed to open %s : %v", f.name, err)
		return false
	}
	defer dest.Close()

	result, err := f.comparer.Compare(context.Background(), src, dest)
	switch result {
	case checksum.SourceError:
		f.rep.Stderr("error reading file %s: %v", srcPath, err)
		return true
	case checksum.DestError:
		f.rep.Stderr("error reading file %s: %v", f.name, err)
		return false
	case checksum.Different:
		if f.flags.DryRun {
			f.rep.Stdout("%s mismatch (checksum)", f.name)
		} else {
			f.rep.Stdout("%s updated (checksum mismatch)", f.name)
		}
		f.rep.ShellEcho("# updating file %s", f.name)
		f.rep.Terse(domain.TerseSync, "%s", f.name)
		return false
	}
	return true
}

// Create copies the source content byte-for-byte to the destination.
// No metadata is preserved here; the fix sequence applies owner and
// mode afterwards.
func (f *File) Create() error {
	if !f.exists {
		f.rep.Terse(domain.TerseNew, "%s", f.name)
	}

	f.rep.Verbose(f.rep.DryRunMsg("  copy %s %s"), f.srcPath, f.name)
	f.rep.ShellEcho("cp %s %s", f.srcPath, f.name)

	if f.flags.DryRun {
		return nil
	}
	if err := f.copyFile(); err != nil {
		f.rep.Stderr("failed to copy %s to %s: %v", f.rep.Pretty(f.srcPath), f.name, err)
		f.rep.Terse(domain.TerseFail, "%s", f.name)
		return err
	}
	return nil
}

// copyFile copies the content of srcPath to the destination path
func (f *File) copyFile() error {
	src, err := os.Open(f.srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dest, err := os.Create(f.name)
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(dest, src)
	closeErr := dest.Close()

	if copyErr != nil {
		return copyErr
	}
	return closeErr
}

// Fix converges the destination to the source description
func (f *File) Fix() {
	f.runFix(f, f.quietDelete)
}

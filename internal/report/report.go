package report

import (
	"fmt"
	"io"
	"os"

	"github.com/avermeulen/confsync/internal/config"
	"github.com/avermeulen/confsync/internal/domain"
	"github.com/avermeulen/confsync/internal/logger"
)

// AuditSink receives one event per successful destructive action
// (deletion, creation, replacement). Implemented by the state manager.
type AuditSink interface {
	RecordEvent(action, path string) error
}

// Options configures a Reporter. Nil writers fall back to the standard
// streams; a nil TerseOut disables the terse stream, a nil EchoOut
// disables shell command echoing regardless of the run flag.
type Options struct {
	Stdout   io.Writer
	Stderr   io.Writer
	TerseOut io.Writer
	EchoOut  io.Writer
	Log      logger.Logger
	Audit    AuditSink

	// OverlayRoot abbreviates the repository root in displayed paths
	OverlayRoot string
}

// Reporter routes every user-visible line of the reconciliation engine:
// human-readable stdout lines, verbose detail, stderr failures, the
// machine-terse event stream, the optional shell command echo, and the
// persistent audit trail.
type Reporter struct {
	flags  config.RunFlags
	out    io.Writer
	errw   io.Writer
	terse  io.Writer
	echo   io.Writer
	log    logger.Logger
	audit  AuditSink
	pretty *PathPrettifier
}

// New creates a reporter for one run
func New(flags config.RunFlags, opts Options) *Reporter {
	r := &Reporter{
		flags:  flags,
		out:    opts.Stdout,
		errw:   opts.Stderr,
		terse:  opts.TerseOut,
		echo:   opts.EchoOut,
		log:    opts.Log,
		audit:  opts.Audit,
		pretty: NewPathPrettifier(opts.OverlayRoot),
	}
	if r.out == nil {
		r.out = os.Stdout
	}
	if r.errw == nil {
		r.errw = os.Stderr
	}
	if r.log == nil {
		r.log = logger.Get()
	}
	return r
}

// Flags returns the run flags this reporter was built with
func (r *Reporter) Flags() config.RunFlags {
	return r.flags
}

// Pretty abbreviates the overlay root in a path for display
func (r *Reporter) Pretty(path string) string {
	return r.pretty.Pretty(path)
}

// Stdout emits one human-readable line describing a change
func (r *Reporter) Stdout(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

// Verbose emits a detail line when verbose mode is on
func (r *Reporter) Verbose(format string, args ...any) {
	if r.flags.Verbose {
		fmt.Fprintf(r.out, format+"\n", args...)
	}
}

// Stderr emits a failure line; the run continues
func (r *Reporter) Stderr(format string, args ...any) {
	fmt.Fprintf(r.errw, format+"\n", args...)
	r.log.Warn(fmt.Sprintf(format, args...))
}

// Terse emits one machine-parseable event line
func (r *Reporter) Terse(code domain.TerseCode, format string, args ...any) {
	if r.terse == nil {
		return
	}
	fmt.Fprintf(r.terse, "%s %s\n", code, fmt.Sprintf(format, args...))
}

// ShellEcho emits the shell command that would have performed the
// mutation, when echoing is enabled
func (r *Reporter) ShellEcho(format string, args ...any) {
	if !r.flags.ShellEcho || r.echo == nil {
		return
	}
	fmt.Fprintf(r.echo, format+"\n", args...)
}

// DryRunMsg suffixes a message in dry-run mode so every simulated
// mutation is visibly marked
func (r *Reporter) DryRunMsg(s string) string {
	if r.flags.DryRun {
		return s + " (dry run)"
	}
	return s
}

// NotStr returns the "not " stdout prefix used for simulated deletions
func (r *Reporter) NotStr() string {
	if r.flags.DryRun {
		return "not "
	}
	return ""
}

// Audit records a destructive action in the persistent trail at the
// point it is decided on; a step that then fails reports through the
// error channels and its audit line stands as the attempt. Never
// called for simulated (dry-run) mutations.
func (r *Reporter) Audit(action, path string) {
	r.log.Info(action, "path", path)
	if r.audit == nil {
		return
	}
	if err := r.audit.RecordEvent(action, path); err != nil {
		r.log.Warn("failed to record audit event", "action", action, "path", path, "error", err)
	}
}

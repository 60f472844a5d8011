package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/avermeulen/confsync/internal/config"
	"github.com/avermeulen/confsync/internal/domain"
)

type captureSink struct {
	actions []string
	paths   []string
	err     error
}

func (s *captureSink) RecordEvent(action, path string) error {
	s.actions = append(s.actions, action)
	s.paths = append(s.paths, path)
	return s.err
}

func TestStdout_Line(t *testing.T) {
	out := &bytes.Buffer{}
	rep := New(config.RunFlags{}, Options{Stdout: out})

	rep.Stdout("%s does not exist", "/etc/motd")
	if out.String() != "/etc/motd does not exist\n" {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func TestVerbose_GatedOnFlag(t *testing.T) {
	out := &bytes.Buffer{}
	rep := New(config.RunFlags{}, Options{Stdout: out})
	rep.Verbose("  chmod(%s)", "/etc/motd")
	if out.Len() != 0 {
		t.Errorf("verbose line emitted without the flag: %q", out.String())
	}

	rep = New(config.RunFlags{Verbose: true}, Options{Stdout: out})
	rep.Verbose("  chmod(%s)", "/etc/motd")
	if !strings.Contains(out.String(), "chmod(/etc/motd)") {
		t.Errorf("expected verbose line, got %q", out.String())
	}
}

func TestTerse_Format(t *testing.T) {
	terse := &bytes.Buffer{}
	rep := New(config.RunFlags{}, Options{TerseOut: terse})

	rep.Terse(domain.TerseMkdir, "%s", "/etc/cron.d")
	if terse.String() != "mkdir /etc/cron.d\n" {
		t.Errorf("unexpected terse line: %q", terse.String())
	}
}

func TestTerse_DisabledWithoutWriter(t *testing.T) {
	rep := New(config.RunFlags{}, Options{Stdout: &bytes.Buffer{}})
	// must not panic
	rep.Terse(domain.TerseNew, "%s", "/etc/motd")
}

func TestShellEcho_GatedOnFlag(t *testing.T) {
	echo := &bytes.Buffer{}
	rep := New(config.RunFlags{}, Options{EchoOut: echo})
	rep.ShellEcho("cp %s %s", "/src", "/dst")
	if echo.Len() != 0 {
		t.Errorf("echo emitted without the flag: %q", echo.String())
	}

	rep = New(config.RunFlags{ShellEcho: true}, Options{EchoOut: echo})
	rep.ShellEcho("cp %s %s", "/src", "/dst")
	if echo.String() != "cp /src /dst\n" {
		t.Errorf("unexpected echo line: %q", echo.String())
	}
}

func TestDryRunMsg(t *testing.T) {
	rep := New(config.RunFlags{DryRun: true}, Options{Stdout: &bytes.Buffer{}})
	if rep.DryRunMsg("copy a b") != "copy a b (dry run)" {
		t.Errorf("unexpected dry run message: %q", rep.DryRunMsg("copy a b"))
	}

	rep = New(config.RunFlags{}, Options{Stdout: &bytes.Buffer{}})
	if rep.DryRunMsg("copy a b") != "copy a b" {
		t.Errorf("unexpected message: %q", rep.DryRunMsg("copy a b"))
	}
}

func TestNotStr(t *testing.T) {
	rep := New(config.RunFlags{DryRun: true}, Options{Stdout: &bytes.Buffer{}})
	if rep.NotStr() != "not " {
		t.Errorf("expected 'not ', got %q", rep.NotStr())
	}

	rep = New(config.RunFlags{}, Options{Stdout: &bytes.Buffer{}})
	if rep.NotStr() != "" {
		t.Errorf("expected empty prefix, got %q", rep.NotStr())
	}
}

func TestAudit_RecordsEvent(t *testing.T) {
	sink := &captureSink{}
	rep := New(config.RunFlags{}, Options{Stdout: &bytes.Buffer{}, Audit: sink})

	rep.Audit("deleted", "/etc/old.conf")
	if len(sink.actions) != 1 || sink.actions[0] != "deleted" {
		t.Errorf("unexpected audit actions: %v", sink.actions)
	}
	if sink.paths[0] != "/etc/old.conf" {
		t.Errorf("unexpected audit path: %v", sink.paths)
	}
}

func TestAudit_NilSinkIsFine(t *testing.T) {
	rep := New(config.RunFlags{}, Options{Stdout: &bytes.Buffer{}})
	// must not panic
	rep.Audit("deleted", "/etc/old.conf")
}

func TestPretty_AbbreviatesOverlayRoot(t *testing.T) {
	rep := New(config.RunFlags{}, Options{
		Stdout:      &bytes.Buffer{},
		OverlayRoot: "/var/lib/confsync/overlay",
	})

	got := rep.Pretty("/var/lib/confsync/overlay/etc/motd")
	if got != "$overlay/etc/motd" {
		t.Errorf("expected abbreviated path, got %q", got)
	}
}

func TestPretty_LeavesOtherPathsAlone(t *testing.T) {
	rep := New(config.RunFlags{}, Options{
		Stdout:      &bytes.Buffer{},
		OverlayRoot: "/var/lib/confsync/overlay",
	})

	if rep.Pretty("/etc/motd") != "/etc/motd" {
		t.Errorf("unexpected rewrite: %q", rep.Pretty("/etc/motd"))
	}
}

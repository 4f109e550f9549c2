package supervisor

import (
	"path/filepath"
	"testing"
	"time"
)

func TestNormalizeDefaults(t *testing.T) {
	var s Spec
	s.normalize()
	if s.StopTimeout != DefaultStopTimeout {
		t.Fatalf("StopTimeout = %s, want %s", s.StopTimeout, DefaultStopTimeout)
	}
	if s.SummaryLines != DefaultSummaryLines {
		t.Fatalf("SummaryLines = %d, want %d", s.SummaryLines, DefaultSummaryLines)
	}
	if s.TailMax != DefaultTailMax {
		t.Fatalf("TailMax = %d, want %d", s.TailMax, DefaultTailMax)
	}

	s = Spec{StopTimeout: 2 * time.Second, SummaryLines: 5, TailMax: 10}
	s.normalize()
	if s.StopTimeout != 2*time.Second || s.SummaryLines != 5 || s.TailMax != 10 {
		t.Fatalf("normalize overwrote explicit values: %+v", s)
	}
}

func TestBuildCommandPlain(t *testing.T) {
	s := Spec{Command: "java -Xmx4G -jar server.jar nogui"}
	cmd := s.buildCommand()
	if filepath.Base(cmd.Path) == "sh" {
		t.Fatalf("plain command wrapped in shell: %v", cmd.Args)
	}
	want := []string{"java", "-Xmx4G", "-jar", "server.jar", "nogui"}
	if len(cmd.Args) != len(want) {
		t.Fatalf("args = %v, want %v", cmd.Args, want)
	}
	for i := range want {
		if cmd.Args[i] != want[i] {
			t.Fatalf("args[%d] = %q, want %q", i, cmd.Args[i], want[i])
		}
	}
}

func TestBuildCommandShellMetachars(t *testing.T) {
	s := Spec{Command: "java -jar server.jar > /dev/null"}
	cmd := s.buildCommand()
	if cmd.Path != "/bin/sh" {
		t.Fatalf("metachar command not shell-wrapped: %v", cmd.Args)
	}
	if cmd.Args[2] != s.Command {
		t.Fatalf("shell arg = %q", cmd.Args[2])
	}
}

func TestBuildCommandExplicitShellNotDoubleWrapped(t *testing.T) {
	s := Spec{Command: `sh -c 'echo hi; sleep 1'`}
	cmd := s.buildCommand()
	if cmd.Path != "/bin/sh" {
		t.Fatalf("path = %q", cmd.Path)
	}
	if cmd.Args[2] != "echo hi; sleep 1" {
		t.Fatalf("inner command = %q", cmd.Args[2])
	}
}

func TestBuildCommandRelativeScriptResolvesAgainstDirectory(t *testing.T) {
	s := Spec{Directory: "/srv/game", Command: "./start.sh nogui"}
	cmd := s.buildCommand()
	if want := filepath.Join("/srv/game", "./start.sh"); cmd.Path != want && cmd.Args[0] != want {
		t.Fatalf("script path = %q (args %v), want %q", cmd.Path, cmd.Args, want)
	}
}

func TestBuildCommandEmpty(t *testing.T) {
	s := Spec{}
	cmd := s.buildCommand()
	if cmd.Path != "/bin/true" {
		t.Fatalf("empty command path = %q", cmd.Path)
	}
}

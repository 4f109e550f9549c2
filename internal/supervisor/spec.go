package supervisor

import (
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gamewarden/gamewarden/internal/logger"
)

// Default tuning values applied by Spec.normalize.
const (
	DefaultStopTimeout  = 60 * time.Second
	DefaultSummaryLines = 15
	DefaultTailMax      = 30
)

// Spec describes the single game server process to supervise.
type Spec struct {
	Directory   string        `json:"directory"`    // working directory of the server
	Command     string        `json:"command"`      // launch command or script (shell syntax allowed)
	Env         []string      `json:"env"`          // optional extra env (KEY=VALUE)
	StopCommand string        `json:"stop_command"` // text written to the server's stdin on stop; empty sends SIGTERM
	StopTimeout time.Duration `json:"stop_timeout"` // grace period before escalation to a forced kill

	Log          logger.FileConfig `json:"log"`           // persisted output log
	SummaryLines int               `json:"summary_lines"` // tail length embedded in status snapshots
	TailMax      int               `json:"tail_max"`      // upper bound for explicit tail requests
}

func (s *Spec) normalize() {
	if s.StopTimeout <= 0 {
		s.StopTimeout = DefaultStopTimeout
	}
	if s.SummaryLines <= 0 {
		s.SummaryLines = DefaultSummaryLines
	}
	if s.TailMax <= 0 {
		s.TailMax = DefaultTailMax
	}
}

// buildCommand constructs an *exec.Cmd for the spec's Command.
// It avoids invoking a shell when not necessary, and it also respects
// an explicit shell invocation already present in the command string
// (e.g., "sh -c 'echo hi'"), avoiding double-wrapping with another shell.
func (s *Spec) buildCommand() *exec.Cmd {
	cmdStr := strings.TrimSpace(s.Command)
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	if afterC, ok := parseExplicitShell(cmdStr); ok {
		// Always use absolute shell path to avoid PATH dependency when Env is overridden.
		// #nosec G204
		return exec.Command("/bin/sh", "-c", afterC)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	name := parts[0]
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	// A relative script path like "./start.sh" must resolve against the
	// server directory, not the supervisor's cwd.
	if s.Directory != "" && !filepath.IsAbs(name) && strings.ContainsRune(name, filepath.Separator) {
		name = filepath.Join(s.Directory, name)
	}
	// ok: intentional execution, input comes from the operator's config
	// #nosec G204
	return exec.Command(name, args...)
}

// parseExplicitShell detects patterns like "sh -c <ARG>" or "/bin/sh -c <ARG>"
// at the beginning of cmdStr and returns the argument after "-c" verbatim
// to avoid breaking quoting.
func parseExplicitShell(cmdStr string) (string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	candidates := []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "}
	for _, p := range candidates {
		if strings.HasPrefix(trim, p) {
			after := trim[len(p):]
			if n := len(after); n >= 2 {
				if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
					after = after[1 : n-1]
				}
			}
			return after, true
		}
	}
	return "", false
}

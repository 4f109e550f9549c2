package supervisor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gamewarden/gamewarden/internal/logbuf"
)

// State is the supervisor's lifecycle state.
//
// Stopped and Crashed both accept a new Start; Crashed is kept distinct
// so status reporting can surface an unsolicited exit as an error
// condition.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateKilling
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateKilling:
		return "killing"
	case StateCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, error) {
	for st := StateStopped; st <= StateCrashed; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return StateStopped, fmt.Errorf("unknown state %q", s)
}

func (s State) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *State) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	st, err := ParseState(str)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ExitStatus records how the last server run ended. Forced marks exits
// produced by a kill or a stop-timeout escalation; the numeric code of a
// forced exit is OS-dependent and treated as opaque.
type ExitStatus struct {
	Code   int       `json:"code"`
	Forced bool      `json:"forced"`
	At     time.Time `json:"at"`
}

// Snapshot is an immutable point-in-time view of supervisor state.
// It is a copy, never a reference into live state.
type Snapshot struct {
	State     State         `json:"state"`
	PID       int           `json:"pid,omitempty"`
	StartedAt time.Time     `json:"started_at,omitzero"`
	Uptime    time.Duration `json:"uptime,omitempty"`
	LastExit  *ExitStatus   `json:"last_exit,omitempty"`
	LogTail   []logbuf.Line `json:"log_tail,omitempty"`
}

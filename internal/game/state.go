package game

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Phase is the discriminant of a game State.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseBetting
	PhaseTrick
	PhaseCompleted
	PhaseAborted
)

// State is the tagged machine state. For Betting and Trick, K counts how many
// bids or cards have already been contributed in the current sub-phase (0..3);
// it is not a round counter.
type State struct {
	Phase Phase
	K     int
}

// Convenience constructors for the tagged states.
func NotStarted() State   { return State{Phase: PhaseNotStarted} }
func Betting(k int) State { return State{Phase: PhaseBetting, K: k} }
func InTrick(k int) State { return State{Phase: PhaseTrick, K: k} }
func Completed() State    { return State{Phase: PhaseCompleted} }
func Aborted() State      { return State{Phase: PhaseAborted} }

// Terminal reports whether no further transitions are accepted.
func (s State) Terminal() bool {
	return s.Phase == PhaseCompleted || s.Phase == PhaseAborted
}

// Active reports whether a seat is currently to act.
func (s State) Active() bool {
	return s.Phase == PhaseBetting || s.Phase == PhaseTrick
}

// String renders the state with its progress discriminant, e.g. "Trick(2)".
// This is also the wire and persistence encoding.
func (s State) String() string {
	switch s.Phase {
	case PhaseNotStarted:
		return "NotStarted"
	case PhaseBetting:
		return fmt.Sprintf("Betting(%d)", s.K)
	case PhaseTrick:
		return fmt.Sprintf("Trick(%d)", s.K)
	case PhaseCompleted:
		return "Completed"
	case PhaseAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// ParseState is the inverse of String.
func ParseState(raw string) (State, error) {
	switch raw {
	case "NotStarted":
		return NotStarted(), nil
	case "Completed":
		return Completed(), nil
	case "Aborted":
		return Aborted(), nil
	}
	for _, tag := range []string{"Betting", "Trick"} {
		prefix := tag + "("
		if strings.HasPrefix(raw, prefix) && strings.HasSuffix(raw, ")") {
			k, err := strconv.Atoi(raw[len(prefix) : len(raw)-1])
			if err != nil || k < 0 || k > 3 {
				return State{}, fmt.Errorf("bad state discriminant in %q", raw)
			}
			if tag == "Betting" {
				return Betting(k), nil
			}
			return InTrick(k), nil
		}
	}
	return State{}, fmt.Errorf("unknown state %q", raw)
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseState(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

package scenario

import (
	"fmt"
	"time"
)

// State is a step of the per-phase state machine.
type State int

const (
	Init State = iota
	Shadowed
	Mutated
	Ticked
	Built
	Asserted
	Done
)

var stateNames = [...]string{"init", "shadowed", "mutated", "ticked", "built", "asserted", "done"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// next lists the legal successors of every state.
var next = map[State][]State{
	Init:     {Shadowed},
	Shadowed: {Mutated},
	Mutated:  {Ticked},
	Ticked:   {Built},
	Built:    {Asserted},
	Asserted: {Shadowed, Done},
}

// Transition is one entry of a scenario trace.
type Transition struct {
	Phase string
	State State
	Time  time.Time // logical time when the state was entered
}

// machine enforces the legal order of states.
type machine struct {
	state State
	trace []Transition
}

func (m *machine) to(phase string, s State, now time.Time) {
	for _, ok := range next[m.state] {
		if ok == s {
			m.state = s
			m.trace = append(m.trace, Transition{Phase: phase, State: s, Time: now})
			return
		}
	}
	panic(fmt.Sprintf("scenario: illegal transition %s -> %s", m.state, s))
}

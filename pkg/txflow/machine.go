package txflow

import (
	"errors"
	"fmt"
	"sync"
)

// State is a rebalance flow state.
type State int

const (
	StateIdle State = iota
	StateApproving
	StateRemoving
	StateAdding
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateApproving:
		return "approving"
	case StateRemoving:
		return "removing"
	case StateAdding:
		return "adding"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further step runs from s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Step is a confirmable rebalance transaction.
type Step int

const (
	StepApprove Step = iota + 1
	StepRemove
	StepAdd
)

func (s Step) String() string {
	switch s {
	case StepApprove:
		return "approve"
	case StepRemove:
		return "remove"
	case StepAdd:
		return "add"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// state returns the state in which s is in flight.
func (s Step) state() State {
	switch s {
	case StepApprove:
		return StateApproving
	case StepRemove:
		return StateRemoving
	case StepAdd:
		return StateAdding
	default:
		return -1
	}
}

var (
	ErrInvalidTransition = errors.New("txflow: invalid transition")
	ErrDetached          = errors.New("txflow: flow detached")
)

// Transition is delivered to subscribers on every state change.
type Transition struct {
	From State
	To   State
	// Step is the confirmed step, zero for Start, Fail and Reset.
	Step Step
	Err  error
}

// RebalanceMachine tracks an approve, remove, add rebalance.
//
// A confirmation only advances the machine when its step is the one in
// flight, so duplicate or late confirmations are ignored. After Detach the
// machine stops reacting to events; transactions already sent keep running
// on chain.
type RebalanceMachine struct {
	mu       sync.Mutex
	state    State
	err      error
	detached bool
	subs     map[int]func(Transition)
	nextSub  int
}

// NewRebalanceMachine returns a machine in StateIdle.
func NewRebalanceMachine() *RebalanceMachine {
	return &RebalanceMachine{subs: make(map[int]func(Transition))}
}

// State returns the current state.
func (m *RebalanceMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the failure cause once in StateFailed.
func (m *RebalanceMachine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Detached reports whether Detach was called.
func (m *RebalanceMachine) Detached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detached
}

// Start leaves StateIdle for the first step.
func (m *RebalanceMachine) Start(needsApproval bool) error {
	to := StateRemoving
	if needsApproval {
		to = StateApproving
	}
	return m.transition(func(from State) (State, error) {
		if from != StateIdle {
			return from, fmt.Errorf("%w: start from %s", ErrInvalidTransition, from)
		}
		return to, nil
	}, 0, nil)
}

// Confirm records step's receipt. It returns false when the step is not the
// one in flight, including repeated confirmations of an exited step.
func (m *RebalanceMachine) Confirm(step Step) bool {
	err := m.transition(func(from State) (State, error) {
		if from != step.state() {
			return from, ErrInvalidTransition
		}
		switch from {
		case StateApproving:
			return StateRemoving, nil
		case StateRemoving:
			return StateAdding, nil
		default:
			return StateSucceeded, nil
		}
	}, step, nil)
	return err == nil
}

// Fail moves an active flow to StateFailed.
func (m *RebalanceMachine) Fail(cause error) error {
	return m.transition(func(from State) (State, error) {
		if from == StateIdle || from.Terminal() {
			return from, fmt.Errorf("%w: fail from %s", ErrInvalidTransition, from)
		}
		return StateFailed, nil
	}, 0, cause)
}

// Reset returns a finished flow to StateIdle so it can be retried.
func (m *RebalanceMachine) Reset() error {
	return m.transition(func(from State) (State, error) {
		if !from.Terminal() {
			return from, fmt.Errorf("%w: reset from %s", ErrInvalidTransition, from)
		}
		return StateIdle, nil
	}, 0, nil)
}

// Detach stops all further transitions and notifications.
func (m *RebalanceMachine) Detach() {
	m.mu.Lock()
	m.detached = true
	clear(m.subs)
	m.mu.Unlock()
}

// Subscribe registers fn for every transition.
func (m *RebalanceMachine) Subscribe(fn func(Transition)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *RebalanceMachine) transition(next func(from State) (State, error), step Step, cause error) error {
	m.mu.Lock()
	if m.detached {
		m.mu.Unlock()
		return ErrDetached
	}
	from := m.state
	to, err := next(from)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.state = to
	switch to {
	case StateFailed:
		m.err = cause
	case StateIdle, StateApproving, StateRemoving:
		m.err = nil
	}
	fns := make([]func(Transition), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	t := Transition{From: from, To: to, Step: step, Err: cause}
	for _, fn := range fns {
		fn(t)
	}
	return nil
}

package playback

import "time"

// StateType represents the current state of the playback engine.
type StateType int

const (
	// StateIdle indicates no track is loaded or playing.
	StateIdle StateType = iota
	// StateLoading indicates a track is being fetched, decoded, or
	// handed to a backend.
	StateLoading
	// StatePlaying indicates a track is audibly playing.
	StatePlaying
	// StatePaused indicates playback is paused mid-track.
	StatePaused
	// StateError indicates the last request failed on every tier.
	StateError
)

// String returns the string representation of the state.
func (s StateType) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// State holds a snapshot of the playback engine's state.
type State struct {
	CurrentState StateType     // Current state of the engine
	Track        *Track        // Track being loaded or played, nil when idle
	Tier         Tier          // Tier serving the current track
	Position     time.Duration // Position within the current track
	Duration     time.Duration // Duration of the current track, zero if unknown
	LastError    error         // Last terminal error, cleared on new play
}

// IsActive returns true if a track is playing or paused.
func (s *State) IsActive() bool {
	return s.CurrentState == StatePlaying || s.CurrentState == StatePaused
}

// IsBusy returns true if the engine is loading or actively playing.
func (s *State) IsBusy() bool {
	return s.CurrentState == StateLoading || s.CurrentState == StatePlaying
}

// CanPause returns true if playback can be paused.
func (s *State) CanPause() bool {
	return s.CurrentState == StatePlaying
}

// CanResume returns true if playback can be resumed.
func (s *State) CanResume() bool {
	return s.CurrentState == StatePaused
}

// StateMachine manages state transitions for the playback engine.
type StateMachine struct {
	current     StateType
	transitions map[StateType][]StateType
	onEnter     map[StateType]func()
	onExit      map[StateType]func()
}

// NewStateMachine creates a new state machine with valid transitions.
// Every state may re-enter loading because a new play request preempts
// whatever the engine was doing.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[StateType][]StateType{
			StateIdle:    {StateLoading},
			StateLoading: {StatePlaying, StateError, StateIdle, StateLoading},
			StatePlaying: {StatePaused, StateIdle, StateError, StateLoading},
			StatePaused:  {StatePlaying, StateIdle, StateError, StateLoading},
			StateError:   {StateLoading, StateIdle},
		},
		onEnter: make(map[StateType]func()),
		onExit:  make(map[StateType]func()),
	}
}

// Transition attempts to transition to the specified state. Transitioning
// to the current state is a no-op that reports success, which makes
// repeated stops idempotent.
func (sm *StateMachine) Transition(to StateType) bool {
	if to == sm.current && to != StateLoading {
		return true
	}

	validTransitions, ok := sm.transitions[sm.current]
	if !ok {
		return false
	}

	valid := false
	for _, state := range validTransitions {
		if state == to {
			valid = true
			break
		}
	}

	if !valid {
		return false
	}

	if exitFn, ok := sm.onExit[sm.current]; ok && exitFn != nil {
		exitFn()
	}

	sm.current = to

	if enterFn, ok := sm.onEnter[to]; ok && enterFn != nil {
		enterFn()
	}

	return true
}

// Current returns the current state.
func (sm *StateMachine) Current() StateType {
	return sm.current
}

// OnEnter registers a callback for entering a state.
func (sm *StateMachine) OnEnter(state StateType, fn func()) {
	sm.onEnter[state] = fn
}

// OnExit registers a callback for exiting a state.
func (sm *StateMachine) OnExit(state StateType, fn func()) {
	sm.onExit[state] = fn
}

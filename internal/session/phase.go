package session

import (
	"errors"
	"fmt"
)

// Phase is the bootstrap state of a Store.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseInitializing
	PhaseAnonymous
	PhaseLoadingProfile
	PhaseProvisioning
	PhaseReady
	PhaseErrored
)

// ErrIllegalTransition is returned when a phase change is not in the transition table.
var ErrIllegalTransition = errors.New("session: illegal phase transition")

var phaseNames = map[Phase]string{
	PhaseUninitialized:  "uninitialized",
	PhaseInitializing:   "initializing",
	PhaseAnonymous:      "anonymous",
	PhaseLoadingProfile: "loading_profile",
	PhaseProvisioning:   "provisioning",
	PhaseReady:          "ready",
	PhaseErrored:        "errored",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// loading reports whether the phase represents work in flight.
func (p Phase) loading() bool {
	switch p {
	case PhaseUninitialized, PhaseInitializing, PhaseLoadingProfile, PhaseProvisioning:
		return true
	default:
		return false
	}
}

var legalTransitions = map[Phase][]Phase{
	PhaseUninitialized:  {PhaseInitializing},
	PhaseInitializing:   {PhaseAnonymous, PhaseLoadingProfile, PhaseErrored},
	PhaseLoadingProfile: {PhaseReady, PhaseProvisioning, PhaseErrored},
	PhaseProvisioning:   {PhaseReady, PhaseErrored},
	PhaseReady:          {PhaseLoadingProfile, PhaseAnonymous},
	PhaseAnonymous:      {PhaseLoadingProfile, PhaseAnonymous},
	PhaseErrored:        {PhaseLoadingProfile, PhaseAnonymous},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Phase) bool {
	for _, candidate := range legalTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to Phase) error {
	if CanTransition(from, to) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}

package session

import (
	"errors"
	"testing"
)

func TestTransitionTable(t *testing.T) {
	testCases := []struct {
		name  string
		from  Phase
		to    Phase
		legal bool
	}{
		{name: "start", from: PhaseUninitialized, to: PhaseInitializing, legal: true},
		{name: "skip init", from: PhaseUninitialized, to: PhaseReady, legal: false},
		{name: "no session", from: PhaseInitializing, to: PhaseAnonymous, legal: true},
		{name: "restored session", from: PhaseInitializing, to: PhaseLoadingProfile, legal: true},
		{name: "session failure", from: PhaseInitializing, to: PhaseErrored, legal: true},
		{name: "profile found", from: PhaseLoadingProfile, to: PhaseReady, legal: true},
		{name: "profile missing", from: PhaseLoadingProfile, to: PhaseProvisioning, legal: true},
		{name: "provisioned", from: PhaseProvisioning, to: PhaseReady, legal: true},
		{name: "provisioning failure", from: PhaseProvisioning, to: PhaseErrored, legal: true},
		{name: "anonymous cannot provision", from: PhaseAnonymous, to: PhaseProvisioning, legal: false},
		{name: "ready cannot provision", from: PhaseReady, to: PhaseProvisioning, legal: false},
		{name: "sign out", from: PhaseReady, to: PhaseAnonymous, legal: true},
		{name: "reload", from: PhaseReady, to: PhaseLoadingProfile, legal: true},
		{name: "retry after error", from: PhaseErrored, to: PhaseLoadingProfile, legal: true},
		{name: "repeat sign out", from: PhaseAnonymous, to: PhaseAnonymous, legal: true},
		{name: "back to uninitialized", from: PhaseAnonymous, to: PhaseUninitialized, legal: false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := CanTransition(testCase.from, testCase.to); got != testCase.legal {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", testCase.from, testCase.to, got, testCase.legal)
			}
			err := checkTransition(testCase.from, testCase.to)
			if testCase.legal && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !testCase.legal && !errors.Is(err, ErrIllegalTransition) {
				t.Fatalf("expected illegal transition error, got %v", err)
			}
		})
	}
}

func TestPhaseLoadingAndNames(t *testing.T) {
	if !PhaseProvisioning.loading() || PhaseReady.loading() || PhaseErrored.loading() {
		t.Fatalf("unexpected loading flags")
	}
	if PhaseLoadingProfile.String() != "loading_profile" {
		t.Fatalf("unexpected name %q", PhaseLoadingProfile.String())
	}
	if Phase(42).String() != "phase(42)" {
		t.Fatalf("unexpected fallback name %q", Phase(42).String())
	}
}

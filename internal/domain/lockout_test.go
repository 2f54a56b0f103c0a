package domain

import (
	"errors"
	"testing"
	"time"
)

func TestEvaluateLoginThreeStrikes(t *testing.T) {
	t.Parallel()

	params := DefaultSystemParams()
	now := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	wrong := func() bool { return false }

	state := LockState{}
	wantMessages := []string{
		"Email ou mot de passe incorrect. 2 tentative(s) restante(s).",
		"Email ou mot de passe incorrect. 1 tentative(s) restante(s).",
		"Trop de tentatives échouées. Votre compte est bloqué pour 24h.",
	}
	for i, want := range wantMessages {
		eval := EvaluateLogin(state, wrong, now, params)
		if !eval.StateChanged {
			t.Fatalf("attempt %d: expected state change", i+1)
		}
		if got := eval.Err().Error(); got != want {
			t.Fatalf("attempt %d: expected %q, got %q", i+1, want, got)
		}
		state = eval.State
	}
	if !state.Locked || state.LockedAt == nil || !state.LockedAt.Equal(now) {
		t.Fatalf("expected lock at %s, got %+v", now, state)
	}
	if state.FailedAttempts != 3 {
		t.Fatalf("expected 3 failed attempts, got %d", state.FailedAttempts)
	}

	called := false
	eval := EvaluateLogin(state, func() bool { called = true; return true }, now.Add(time.Hour), params)
	if called {
		t.Fatalf("password must not be checked inside the lock window")
	}
	if eval.Decision != DecisionLocked || eval.StateChanged {
		t.Fatalf("expected locked decision without state change, got %+v", eval)
	}
	if got := eval.Err().Error(); got != "Compte bloqué. Réessayez dans 23h ou contactez un administrateur." {
		t.Fatalf("unexpected locked message %q", got)
	}
	if !errors.Is(eval.Err(), ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked kind")
	}
}

func TestEvaluateLoginHoursRemainingRoundsUp(t *testing.T) {
	t.Parallel()

	lockedAt := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	state := LockState{FailedAttempts: 3, Locked: true, LockedAt: &lockedAt}
	eval := EvaluateLogin(state, func() bool { return true }, lockedAt.Add(23*time.Hour+time.Minute), DefaultSystemParams())
	if eval.HoursRemaining != 1 {
		t.Fatalf("expected 1 hour remaining, got %d", eval.HoursRemaining)
	}
}

func TestEvaluateLoginAutoUnlock(t *testing.T) {
	t.Parallel()

	lockedAt := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	state := LockState{FailedAttempts: 3, Locked: true, LockedAt: &lockedAt}
	params := DefaultSystemParams()

	eval := EvaluateLogin(state, func() bool { return true }, lockedAt.Add(params.LockDuration()), params)
	if eval.Decision != DecisionAuthenticated {
		t.Fatalf("expected authentication after lock expiry, got %v", eval.Decision)
	}
	if !eval.AutoUnlocked || !eval.StateChanged {
		t.Fatalf("expected auto unlock to be persisted, got %+v", eval)
	}
	if eval.State.Locked || eval.State.FailedAttempts != 0 || eval.State.LockedAt != nil {
		t.Fatalf("expected cleared state, got %+v", eval.State)
	}
	if eval.Err() != nil {
		t.Fatalf("expected nil error, got %v", eval.Err())
	}
}

func TestEvaluateLoginFailureAfterAutoUnlockStartsFresh(t *testing.T) {
	t.Parallel()

	lockedAt := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	state := LockState{FailedAttempts: 3, Locked: true, LockedAt: &lockedAt}
	eval := EvaluateLogin(state, func() bool { return false }, lockedAt.Add(25*time.Hour), DefaultSystemParams())
	if eval.Decision != DecisionInvalidCredentials || eval.State.FailedAttempts != 1 {
		t.Fatalf("expected first fresh failure, got %+v", eval)
	}
}

func TestEvaluateLoginSuccessResetsCounter(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	eval := EvaluateLogin(LockState{FailedAttempts: 2}, func() bool { return true }, now, DefaultSystemParams())
	if eval.Decision != DecisionAuthenticated || eval.State.FailedAttempts != 0 || !eval.StateChanged {
		t.Fatalf("expected reset on success, got %+v", eval)
	}

	clean := EvaluateLogin(LockState{}, func() bool { return true }, now, DefaultSystemParams())
	if clean.StateChanged {
		t.Fatalf("clean success should not write state")
	}
}

func TestEvaluateLoginLockedWithoutTimestampIsExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	eval := EvaluateLogin(LockState{Locked: true}, func() bool { return true }, now, DefaultSystemParams())
	if eval.Decision != DecisionAuthenticated || !eval.AutoUnlocked {
		t.Fatalf("expected unlock when lock timestamp is missing, got %+v", eval)
	}
}

func TestEvaluateLoginHonorsCustomThreshold(t *testing.T) {
	t.Parallel()

	params := SystemParams{MaxLoginAttempts: 1, SessionDurationHours: 2, LockDurationHours: 1}
	now := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	eval := EvaluateLogin(LockState{}, func() bool { return false }, now, params)
	if eval.Decision != DecisionTooManyAttempts {
		t.Fatalf("expected immediate lock, got %v", eval.Decision)
	}
	if got := eval.Err().Error(); got != "Trop de tentatives échouées. Votre compte est bloqué pour 1h." {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestUnknownAccountErrorHasNoCount(t *testing.T) {
	t.Parallel()

	err := UnknownAccountError()
	if err.Error() != "Email ou mot de passe incorrect" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials kind")
	}
}

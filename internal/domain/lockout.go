package domain

import (
	"fmt"
	"math"
	"time"
)

type LoginDecision int

const (
	DecisionAuthenticated LoginDecision = iota
	DecisionLocked
	DecisionInvalidCredentials
	DecisionTooManyAttempts
)

// LockoutEvaluation is the outcome of one login attempt against an account's lock state.
// State is what must be persisted when StateChanged is set, on failing paths too.
type LockoutEvaluation struct {
	Decision          LoginDecision
	State             LockState
	StateChanged      bool
	AutoUnlocked      bool
	HoursRemaining    int
	AttemptsRemaining int
	LockHours         int
}

// EvaluateLogin applies the lockout policy. passwordMatches is only called when
// the account is not inside a running lock window.
func EvaluateLogin(current LockState, passwordMatches func() bool, now time.Time, params SystemParams) LockoutEvaluation {
	state := current
	eval := LockoutEvaluation{LockHours: params.LockDurationHours}

	if state.Locked {
		var lockedAt time.Time
		if state.LockedAt != nil {
			lockedAt = *state.LockedAt
		}
		unlockAt := lockedAt.Add(params.LockDuration())
		if now.Before(unlockAt) {
			eval.Decision = DecisionLocked
			eval.State = state
			eval.HoursRemaining = ceilHours(unlockAt.Sub(now))
			return eval
		}
		state = LockState{}
		eval.AutoUnlocked = true
		eval.StateChanged = true
	}

	if !passwordMatches() {
		state.FailedAttempts++
		eval.StateChanged = true
		if state.FailedAttempts >= params.MaxLoginAttempts {
			lockedAt := now
			state.Locked = true
			state.LockedAt = &lockedAt
			eval.Decision = DecisionTooManyAttempts
		} else {
			eval.Decision = DecisionInvalidCredentials
			eval.AttemptsRemaining = params.MaxLoginAttempts - state.FailedAttempts
		}
		eval.State = state
		return eval
	}

	if state.FailedAttempts > 0 {
		state.FailedAttempts = 0
		eval.StateChanged = true
	}
	eval.Decision = DecisionAuthenticated
	eval.State = state
	return eval
}

// Err returns the user-facing failure for non-authenticated decisions, nil otherwise.
func (e LockoutEvaluation) Err() error {
	switch e.Decision {
	case DecisionLocked:
		return NewError(ErrAccountLocked, fmt.Sprintf("Compte bloqué. Réessayez dans %dh ou contactez un administrateur.", e.HoursRemaining))
	case DecisionTooManyAttempts:
		return NewError(ErrTooManyAttempts, fmt.Sprintf("Trop de tentatives échouées. Votre compte est bloqué pour %dh.", e.LockHours))
	case DecisionInvalidCredentials:
		return NewError(ErrInvalidCredentials, fmt.Sprintf("Email ou mot de passe incorrect. %d tentative(s) restante(s).", e.AttemptsRemaining))
	default:
		return nil
	}
}

// UnknownAccountError is returned for emails with no account. It carries no attempt count.
func UnknownAccountError() error {
	return NewError(ErrInvalidCredentials, "Email ou mot de passe incorrect")
}

func ceilHours(d time.Duration) int {
	return int(math.Ceil(d.Hours()))
}

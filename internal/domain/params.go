package domain

import (
	"strconv"
	"strings"
	"time"
)

// Keys of the parametre_systeme table.
const (
	ParamMaxLoginAttempts = "max_tentatives_connexion"
	ParamSessionHours     = "duree_session_heures"
	ParamLockHours        = "duree_blocage_heures"
)

// SystemParams drives lockout and session decisions. It is read on every decision.
type SystemParams struct {
	MaxLoginAttempts     int
	SessionDurationHours int
	LockDurationHours    int
}

func DefaultSystemParams() SystemParams {
	return SystemParams{
		MaxLoginAttempts:     3,
		SessionDurationHours: 24,
		LockDurationHours:    24,
	}
}

// ParamsFromValues resolves raw key/value rows, keeping defaults for missing or invalid entries.
func ParamsFromValues(values map[string]string) SystemParams {
	params := DefaultSystemParams()
	params.MaxLoginAttempts = positiveInt(values[ParamMaxLoginAttempts], params.MaxLoginAttempts)
	params.SessionDurationHours = positiveInt(values[ParamSessionHours], params.SessionDurationHours)
	params.LockDurationHours = positiveInt(values[ParamLockHours], params.LockDurationHours)
	return params
}

func (p SystemParams) SessionDuration() time.Duration {
	return time.Duration(p.SessionDurationHours) * time.Hour
}

func (p SystemParams) LockDuration() time.Duration {
	return time.Duration(p.LockDurationHours) * time.Hour
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

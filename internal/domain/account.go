package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleManager Role = "MANAGER"
	RoleUser    Role = "USER"
)

// ParseRole normalizes raw role input. Empty input resolves to RoleUser.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case "", RoleUser:
		return RoleUser, nil
	case RoleManager:
		return RoleManager, nil
	default:
		return "", invalidInput("Rôle invalide (MANAGER ou USER)")
	}
}

// Account is the credential store row for one user.
type Account struct {
	ID             int64
	Email          string
	PasswordHash   string
	Nom            string
	Prenom         string
	Role           Role
	FailedAttempts int
	Locked         bool
	LockedAt       *time.Time
	FirebaseUID    *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LockState is the slice of an account mutated by lockout decisions and unblock.
type LockState struct {
	FailedAttempts int
	Locked         bool
	LockedAt       *time.Time
}

func (a Account) LockState() LockState {
	return LockState{
		FailedAttempts: a.FailedAttempts,
		Locked:         a.Locked,
		LockedAt:       a.LockedAt,
	}
}

func (a Account) DisplayName() string {
	return strings.TrimSpace(a.Prenom + " " + a.Nom)
}

// ProfileUpdate carries optional self-service profile changes.
type ProfileUpdate struct {
	Nom    *string
	Prenom *string
	Email  *string
}

func (u ProfileUpdate) Empty() bool {
	return u.Nom == nil && u.Prenom == nil && u.Email == nil
}

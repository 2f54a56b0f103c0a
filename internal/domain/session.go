package domain

import "time"

// Session is the server-side record backing one issued bearer token.
type Session struct {
	ID             int64
	UserID         int64
	TokenHash      string
	IPAddress      string
	UserAgent      string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastActivityAt time.Time
	Active         bool
}

// UsableAt reports whether the session may authorize a request at now.
func (s Session) UsableAt(now time.Time) bool {
	return s.Active && now.Before(s.ExpiresAt)
}

// AuthContext is what authenticated handlers see about the caller.
type AuthContext struct {
	UserID    int64
	Email     string
	Nom       string
	Prenom    string
	Role      Role
	SessionID int64
}

func (a AuthContext) HasRole(role Role) bool {
	return a.Role == role
}

package ports

import "context"

// MirrorDocument is one merge-set write against the mirror store.
type MirrorDocument struct {
	Collection string
	ID         string
	Fields     map[string]any
}

// MirrorStore writes denormalized projections into the secondary document store.
// All writes merge: fields present overwrite, absent fields are left untouched.
type MirrorStore interface {
	// CommitBatch applies every document atomically, or none of them.
	CommitBatch(ctx context.Context, docs []MirrorDocument) error
	Upsert(ctx context.Context, doc MirrorDocument) error
	Delete(ctx context.Context, collection, id string) error
}

type MirrorUserParams struct {
	Email       string
	Password    string
	DisplayName string
}

// MirrorIdentityProvider manages the external auth identity of an account.
type MirrorIdentityProvider interface {
	CreateUser(ctx context.Context, params MirrorUserParams) (string, error)
	DeleteUser(ctx context.Context, uid string) error
}

// ReachabilityProbe reports whether the mirror endpoint answers right now.
type ReachabilityProbe interface {
	Reachable(ctx context.Context) bool
}

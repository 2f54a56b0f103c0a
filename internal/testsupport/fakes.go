package testsupport

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/viralforge/roadworks/internal/domain"
	"github.com/viralforge/roadworks/internal/ports"
)

var ErrInjected = errors.New("injected failure")

// MirrorStore records committed documents per collection.
type MirrorStore struct {
	mu        sync.Mutex
	docs      map[string]map[string]map[string]any
	commits   int
	FailWrite bool
}

func NewMirrorStore() *MirrorStore {
	return &MirrorStore{docs: map[string]map[string]map[string]any{}}
}

func (m *MirrorStore) CommitBatch(_ context.Context, docs []ports.MirrorDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrite {
		return ErrInjected
	}
	for _, doc := range docs {
		m.merge(doc)
	}
	m.commits++
	return nil
}

func (m *MirrorStore) Upsert(_ context.Context, doc ports.MirrorDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrite {
		return ErrInjected
	}
	m.merge(doc)
	return nil
}

func (m *MirrorStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrite {
		return ErrInjected
	}
	delete(m.docs[collection], id)
	return nil
}

func (m *MirrorStore) merge(doc ports.MirrorDocument) {
	coll, ok := m.docs[doc.Collection]
	if !ok {
		coll = map[string]map[string]any{}
		m.docs[doc.Collection] = coll
	}
	fields, ok := coll[doc.ID]
	if !ok {
		fields = map[string]any{}
		coll[doc.ID] = fields
	}
	for k, v := range doc.Fields {
		fields[k] = v
	}
}

func (m *MirrorStore) Document(collection, id string) (map[string]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fields, ok := m.docs[collection][id]
	return fields, ok
}

// Keys returns the document ids of a collection.
func (m *MirrorStore) Keys(collection string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.docs[collection]))
	for id := range m.docs[collection] {
		out = append(out, id)
	}
	return out
}

func (m *MirrorStore) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

// Probe is a toggleable reachability probe that counts calls.
type Probe struct {
	mu     sync.Mutex
	online bool
	calls  int
}

func NewProbe(online bool) *Probe {
	return &Probe{online: online}
}

func (p *Probe) Reachable(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.online
}

func (p *Probe) SetOnline(online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = online
}

func (p *Probe) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type IdentityProvider struct {
	mu      sync.Mutex
	created []ports.MirrorUserParams
	deleted []string
	Fail    bool
	// AfterCreate runs once a user was created, outside the provider lock.
	AfterCreate func(params ports.MirrorUserParams)
}

func (p *IdentityProvider) CreateUser(_ context.Context, params ports.MirrorUserParams) (string, error) {
	p.mu.Lock()
	if p.Fail {
		p.mu.Unlock()
		return "", ErrInjected
	}
	p.created = append(p.created, params)
	uid := "uid-" + strconv.Itoa(len(p.created))
	hook := p.AfterCreate
	p.mu.Unlock()
	if hook != nil {
		hook(params)
	}
	return uid, nil
}

func (p *IdentityProvider) DeleteUser(_ context.Context, uid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, uid)
	return nil
}

func (p *IdentityProvider) Deleted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.deleted...)
}

func (p *IdentityProvider) Created() []ports.MirrorUserParams {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ports.MirrorUserParams(nil), p.created...)
}

// Hasher prefixes passwords instead of hashing them.
type Hasher struct{}

func (Hasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (Hasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return errors.New("password mismatch")
	}
	return nil
}

// TokenSigner produces readable tokens checked against the supplied clock.
type TokenSigner struct {
	Now func() time.Time
}

func (t TokenSigner) Sign(claims ports.AuthClaims) (string, error) {
	return strings.Join([]string{
		"tok",
		claims.TokenID,
		strconv.FormatInt(claims.UserID, 10),
		claims.Email,
		string(claims.Role),
		strconv.FormatInt(claims.IssuedAt.Unix(), 10),
		strconv.FormatInt(claims.ExpiresAt.Unix(), 10),
	}, "|"), nil
}

func (t TokenSigner) Parse(token string) (ports.AuthClaims, error) {
	parts := strings.Split(token, "|")
	if len(parts) != 7 || parts[0] != "tok" {
		return ports.AuthClaims{}, domain.ErrInvalidToken
	}
	userID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return ports.AuthClaims{}, domain.ErrInvalidToken
	}
	iat, err1 := strconv.ParseInt(parts[5], 10, 64)
	exp, err2 := strconv.ParseInt(parts[6], 10, 64)
	if err1 != nil || err2 != nil {
		return ports.AuthClaims{}, domain.ErrInvalidToken
	}
	claims := ports.AuthClaims{
		UserID:    userID,
		Email:     parts[3],
		Role:      domain.Role(parts[4]),
		TokenID:   parts[1],
		IssuedAt:  time.Unix(iat, 0).UTC(),
		ExpiresAt: time.Unix(exp, 0).UTC(),
	}
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	if !now().Before(claims.ExpiresAt) {
		return ports.AuthClaims{}, fmt.Errorf("%w: expired at %s", domain.ErrExpiredToken, claims.ExpiresAt)
	}
	return claims, nil
}

// RateLimiter counts hits per key and ignores the window.
type RateLimiter struct {
	mu   sync.Mutex
	hits map[string]int
	Fail bool
}

func (r *RateLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return false, ErrInjected
	}
	if r.hits == nil {
		r.hits = map[string]int{}
	}
	r.hits[key]++
	return r.hits[key] <= limit, nil
}

type Revocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	Fail    bool
}

func (r *Revocations) MarkRevoked(_ context.Context, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return ErrInjected
	}
	if r.revoked == nil {
		r.revoked = map[string]time.Time{}
	}
	r.revoked[tokenHash] = expiresAt
	return nil
}

func (r *Revocations) IsRevoked(_ context.Context, tokenHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return false, ErrInjected
	}
	_, ok := r.revoked[tokenHash]
	return ok, nil
}

func (r *Revocations) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.revoked)
}

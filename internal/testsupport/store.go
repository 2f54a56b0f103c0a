package testsupport

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/viralforge/roadworks/internal/domain"
	"github.com/viralforge/roadworks/internal/ports"
)

// Store is a relational store stand-in. Logins are serialized like the row lock would.
type Store struct {
	mu      sync.Mutex
	loginMu sync.Mutex

	nextAccountID     int64
	nextSessionID     int64
	nextSignalementID int64

	accounts     map[int64]domain.Account
	sessions     map[int64]domain.Session
	signalements map[int64]domain.Signalement
	entreprises  []domain.Entreprise
	params       domain.SystemParams
	events       []ports.OutboxEvent
}

func NewStore() *Store {
	return &Store{
		accounts:     map[int64]domain.Account{},
		sessions:     map[int64]domain.Session{},
		signalements: map[int64]domain.Signalement{},
		params:       domain.DefaultSystemParams(),
	}
}

func (s *Store) Accounts() *Accounts         { return &Accounts{s: s} }
func (s *Store) Sessions() *Sessions         { return &Sessions{s: s} }
func (s *Store) Params() *Params             { return &Params{s: s} }
func (s *Store) Signalements() *Signalements { return &Signalements{s: s} }
func (s *Store) Entreprises() *Entreprises   { return &Entreprises{s: s} }

func (s *Store) SetParams(p domain.SystemParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
}

func (s *Store) AddEntreprise(e domain.Entreprise) domain.Entreprise {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = int64(len(s.entreprises) + 1)
	s.entreprises = append(s.entreprises, e)
	return e
}

// Account returns the stored row, for assertions.
func (s *Store) Account(id int64) domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id]
}

func (s *Store) SessionsOf(userID int64) []domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ExpireSession moves a session's expiry, for tests of the expiry path.
func (s *Store) ExpireSession(id int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[id]
	sess.ExpiresAt = at
	s.sessions[id] = sess
}

func (s *Store) SetLocked(id int64, locked bool, at *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[id]
	acc.Locked = locked
	acc.LockedAt = at
	s.accounts[id] = acc
}

func (s *Store) EventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

func (s *Store) EventPartitionKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.PartitionKey)
	}
	return out
}

func (s *Store) Signalement(id int64) (domain.Signalement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.signalements[id]
	return item, ok
}

// Accounts implements ports.AccountRepository.
type Accounts struct{ s *Store }

func (r *Accounts) Create(_ context.Context, params ports.AccountCreateParams, eventFor ports.AccountEventFunc) (domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, acc := range r.s.accounts {
		if acc.Email == params.Email {
			return domain.Account{}, domain.ErrDuplicateEmail
		}
	}
	r.s.nextAccountID++
	acc := domain.Account{
		ID:           r.s.nextAccountID,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		Nom:          params.Nom,
		Prenom:       params.Prenom,
		Role:         params.Role,
		FirebaseUID:  params.FirebaseUID,
		CreatedAt:    params.CreatedAt,
		UpdatedAt:    params.CreatedAt,
	}
	r.s.accounts[acc.ID] = acc
	if eventFor != nil {
		r.s.events = append(r.s.events, eventFor(acc))
	}
	return acc, nil
}

func (r *Accounts) GetByID(_ context.Context, id int64) (domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	acc, ok := r.s.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return acc, nil
}

func (r *Accounts) GetByEmail(_ context.Context, email string) (domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.accountByEmail(email)
}

func (s *Store) accountByEmail(email string) (domain.Account, error) {
	for _, acc := range s.accounts {
		if acc.Email == email {
			return acc, nil
		}
	}
	return domain.Account{}, domain.ErrNotFound
}

func (r *Accounts) EmailTaken(_ context.Context, email string, excludeID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, acc := range r.s.accounts {
		if acc.Email == email && acc.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *Accounts) UpdateProfile(_ context.Context, id int64, update domain.ProfileUpdate, at time.Time) (domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	acc, ok := r.s.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	if update.Nom != nil {
		acc.Nom = *update.Nom
	}
	if update.Prenom != nil {
		acc.Prenom = *update.Prenom
	}
	if update.Email != nil {
		acc.Email = *update.Email
	}
	acc.UpdatedAt = at
	r.s.accounts[id] = acc
	return acc, nil
}

func (r *Accounts) Unblock(_ context.Context, id int64, at time.Time, eventFor ports.AccountEventFunc) (domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	acc, ok := r.s.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	acc.FailedAttempts = 0
	acc.Locked = false
	acc.LockedAt = nil
	acc.UpdatedAt = at
	r.s.accounts[id] = acc
	if eventFor != nil {
		r.s.events = append(r.s.events, eventFor(acc))
	}
	return acc, nil
}

func (r *Accounts) ListBlocked(_ context.Context) ([]domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Account
	for _, acc := range r.s.accounts {
		if acc.Locked {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Accounts) ListAll(_ context.Context) ([]domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Account, 0, len(r.s.accounts))
	for _, acc := range r.s.accounts {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Accounts) Count(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.accounts)), nil
}

// WithLockedAccount buffers writes and applies them only when fn returns nil.
func (r *Accounts) WithLockedAccount(ctx context.Context, email string, fn func(tx ports.LoginTx, account domain.Account) error) error {
	r.s.loginMu.Lock()
	defer r.s.loginMu.Unlock()

	r.s.mu.Lock()
	acc, err := r.s.accountByEmail(email)
	r.s.mu.Unlock()
	if err != nil {
		return err
	}

	tx := &loginTx{s: r.s, userID: acc.ID}
	if err := fn(tx, acc); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type loginTx struct {
	s        *Store
	userID   int64
	state    *domain.LockState
	sessions []domain.Session
	events   []ports.OutboxEvent
}

func (t *loginTx) SaveLockState(_ context.Context, state domain.LockState) error {
	t.state = &state
	return nil
}

func (t *loginTx) CreateSession(_ context.Context, params ports.SessionCreateParams) (domain.Session, error) {
	t.s.mu.Lock()
	t.s.nextSessionID++
	id := t.s.nextSessionID
	t.s.mu.Unlock()
	sess := domain.Session{
		ID:             id,
		UserID:         params.UserID,
		TokenHash:      params.TokenHash,
		IPAddress:      params.IPAddress,
		UserAgent:      params.UserAgent,
		CreatedAt:      params.CreatedAt,
		ExpiresAt:      params.ExpiresAt,
		LastActivityAt: params.CreatedAt,
		Active:         true,
	}
	t.sessions = append(t.sessions, sess)
	return sess, nil
}

func (t *loginTx) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	t.events = append(t.events, event)
	return nil
}

func (t *loginTx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.state != nil {
		acc := t.s.accounts[t.userID]
		acc.FailedAttempts = t.state.FailedAttempts
		acc.Locked = t.state.Locked
		acc.LockedAt = t.state.LockedAt
		t.s.accounts[t.userID] = acc
	}
	for _, sess := range t.sessions {
		t.s.sessions[sess.ID] = sess
	}
	t.s.events = append(t.s.events, t.events...)
}

// Sessions implements ports.SessionRepository.
type Sessions struct{ s *Store }

func (r *Sessions) GetByTokenHash(_ context.Context, tokenHash string) (domain.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sess := range r.s.sessions {
		if sess.TokenHash == tokenHash {
			return sess, nil
		}
	}
	return domain.Session{}, domain.ErrNotFound
}

func (r *Sessions) TouchActivity(_ context.Context, sessionID int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[sessionID]
	if !ok {
		return nil
	}
	if at.After(sess.LastActivityAt) {
		sess.LastActivityAt = at
		r.s.sessions[sessionID] = sess
	}
	return nil
}

func (r *Sessions) Deactivate(_ context.Context, tokenHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, sess := range r.s.sessions {
		if sess.TokenHash == tokenHash {
			sess.Active = false
			r.s.sessions[id] = sess
		}
	}
	return nil
}

// Params implements ports.ParameterRepository.
type Params struct{ s *Store }

func (r *Params) SystemParams(context.Context) (domain.SystemParams, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.params, nil
}

// Signalements implements ports.SignalementRepository.
type Signalements struct{ s *Store }

func (r *Signalements) List(_ context.Context, filter domain.SignalementFilter) ([]domain.Signalement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := r.s.sortedSignalements()
	out := make([]domain.Signalement, 0, len(all))
	for _, item := range all {
		if filter.Statut != "" && item.Statut != filter.Statut {
			continue
		}
		if filter.UserID > 0 && (item.UserID == nil || *item.UserID != filter.UserID) {
			continue
		}
		out = append(out, item)
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []domain.Signalement{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *Signalements) GetByID(_ context.Context, id int64) (domain.Signalement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.signalements[id]
	if !ok {
		return domain.Signalement{}, domain.ErrNotFound
	}
	return r.s.detail(item), nil
}

func (r *Signalements) Create(_ context.Context, params domain.SignalementCreate, at time.Time, eventFor ports.SignalementEventFunc) (domain.Signalement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextSignalementID++
	item := domain.Signalement{
		ID:          r.s.nextSignalementID,
		Latitude:    params.Latitude,
		Longitude:   params.Longitude,
		Adresse:     params.Adresse,
		Description: params.Description,
		Statut:      domain.StatusNew,
		SurfaceM2:   params.SurfaceM2,
		UserID:      params.UserID,
		ReportedAt:  at,
		UpdatedAt:   at,
	}
	r.s.signalements[item.ID] = item
	if eventFor != nil {
		r.s.events = append(r.s.events, eventFor(item))
	}
	return item, nil
}

func (r *Signalements) Update(_ context.Context, id int64, update domain.SignalementUpdate, at time.Time, eventFor ports.SignalementEventFunc) (domain.Signalement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.signalements[id]
	if !ok {
		return domain.Signalement{}, domain.ErrNotFound
	}
	if update.Statut != nil {
		item.Statut = *update.Statut
		switch *update.Statut {
		case domain.StatusInProgress:
			if item.WorksStartedAt == nil {
				started := at
				item.WorksStartedAt = &started
			}
		case domain.StatusDone:
			ended := at
			item.WorksEndedAt = &ended
		}
	}
	if update.Budget != nil {
		item.Budget = update.Budget
	}
	if update.SurfaceM2 != nil {
		item.SurfaceM2 = update.SurfaceM2
	}
	if update.EntrepriseID != nil {
		if *update.EntrepriseID <= 0 || int(*update.EntrepriseID) > len(r.s.entreprises) {
			return domain.Signalement{}, domain.NewError(domain.ErrInvalidInput, "Entreprise inexistante")
		}
		item.EntrepriseID = update.EntrepriseID
	}
	if update.Adresse != nil {
		item.Adresse = *update.Adresse
	}
	if update.Description != nil {
		item.Description = *update.Description
	}
	item.UpdatedAt = at
	r.s.signalements[id] = item
	if eventFor != nil {
		r.s.events = append(r.s.events, eventFor(item))
	}
	return item, nil
}

func (r *Signalements) Delete(_ context.Context, id int64, eventFor ports.SignalementEventFunc) (domain.Signalement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.signalements[id]
	if !ok {
		return domain.Signalement{}, domain.ErrNotFound
	}
	delete(r.s.signalements, id)
	if eventFor != nil {
		r.s.events = append(r.s.events, eventFor(item))
	}
	return item, nil
}

func (r *Signalements) Stats(context.Context) (domain.Stats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var st domain.Stats
	for _, item := range r.s.signalements {
		st.Total++
		switch item.Statut {
		case domain.StatusNew:
			st.New++
		case domain.StatusInProgress:
			st.InProgress++
		case domain.StatusDone:
			st.Done++
		}
		if item.SurfaceM2 != nil {
			st.SurfaceTotal += *item.SurfaceM2
		}
		if item.Budget != nil {
			st.BudgetTotal += *item.Budget
		}
	}
	if st.Total > 0 {
		st.ProgressPct = float64(st.Done) * 100 / float64(st.Total)
	}
	return st, nil
}

func (r *Signalements) ListForSync(context.Context) ([]domain.Signalement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.sortedSignalements(), nil
}

func (r *Signalements) AssignFirebaseIDs(_ context.Context, keys map[int64]string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, key := range keys {
		item, ok := r.s.signalements[id]
		if !ok || (item.FirebaseID != nil && strings.TrimSpace(*item.FirebaseID) != "") {
			continue
		}
		k := key
		item.FirebaseID = &k
		r.s.signalements[id] = item
	}
	return nil
}

// sortedSignalements returns detailed rows, newest first. Caller holds mu.
func (s *Store) sortedSignalements() []domain.Signalement {
	out := make([]domain.Signalement, 0, len(s.signalements))
	for _, item := range s.signalements {
		out = append(out, s.detail(item))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReportedAt.Equal(out[j].ReportedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].ReportedAt.After(out[j].ReportedAt)
	})
	return out
}

// detail joins reporter and company like v_signalements_details. Caller holds mu.
func (s *Store) detail(item domain.Signalement) domain.Signalement {
	item.Reporter = nil
	item.Entreprise = nil
	if item.UserID != nil {
		if acc, ok := s.accounts[*item.UserID]; ok {
			item.Reporter = &domain.Reporter{Email: acc.Email, Nom: acc.Nom, Prenom: acc.Prenom}
		}
	}
	if item.EntrepriseID != nil {
		idx := int(*item.EntrepriseID) - 1
		if idx >= 0 && idx < len(s.entreprises) {
			e := s.entreprises[idx]
			item.Entreprise = &domain.EntrepriseRef{Nom: e.Nom, Telephone: e.Telephone}
		}
	}
	return item
}

// Entreprises implements ports.EntrepriseRepository.
type Entreprises struct{ s *Store }

func (r *Entreprises) List(context.Context) ([]domain.Entreprise, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := append([]domain.Entreprise(nil), r.s.entreprises...)
	sort.Slice(out, func(i, j int) bool { return out[i].Nom < out[j].Nom })
	return out, nil
}

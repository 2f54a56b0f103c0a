package testsupport

import (
	"context"
	"time"

	"github.com/viralforge/roadworks/internal/application"
	"github.com/viralforge/roadworks/internal/domain"
	"github.com/viralforge/roadworks/internal/ports"
)

// Harness wires an application.Service around in-memory fakes.
type Harness struct {
	Store       *Store
	Clock       *Clock
	Mirror      *MirrorStore
	Probe       *Probe
	Identities  *IdentityProvider
	Revocations *Revocations
	RateLimiter *RateLimiter
	Gate        *application.AvailabilityGate
	Reconciler  *application.Reconciler
	Service     *application.Service
}

type HarnessOptions struct {
	MirrorConfigured bool
	MirrorOnline     bool
	Config           application.Config
}

func NewHarness(opts HarnessOptions) *Harness {
	h := &Harness{
		Store:       NewStore(),
		Clock:       NewClock(time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)),
		Mirror:      NewMirrorStore(),
		Probe:       NewProbe(opts.MirrorOnline),
		Identities:  &IdentityProvider{},
		Revocations: &Revocations{},
		RateLimiter: &RateLimiter{},
	}
	h.Gate = application.NewAvailabilityGate(opts.MirrorConfigured, h.Probe)
	h.Reconciler = application.NewReconciler(h.Gate, h.Mirror, h.Store.Accounts(), h.Store.Signalements(), h.Clock.Now)
	h.Service = application.NewService(application.Dependencies{
		Config:       opts.Config,
		Accounts:     h.Store.Accounts(),
		Sessions:     h.Store.Sessions(),
		Params:       h.Store.Params(),
		Signalements: h.Store.Signalements(),
		Entreprises:  h.Store.Entreprises(),
		RateLimiter:  h.RateLimiter,
		Revocations:  h.Revocations,
		Identities:   h.Identities,
		Hasher:       Hasher{},
		TokenSigner:  TokenSigner{Now: h.Clock.Now},
		Gate:         h.Gate,
		Sync:         h.Reconciler,
		Now:          h.Clock.Now,
	})
	return h
}

// MustRegister creates an account and panics on failure.
func (h *Harness) MustRegister(email, password string, role domain.Role) application.AccountView {
	view, err := h.Service.Register(context.Background(), application.RegisterRequest{
		Email:    email,
		Password: password,
		Nom:      "Rakoto",
		Prenom:   "Jean",
		Role:     string(role),
	})
	if err != nil {
		panic(err)
	}
	return view
}

// MustLogin returns a bearer token for the credentials and panics on failure.
func (h *Harness) MustLogin(email, password string) string {
	resp, err := h.Service.Login(context.Background(), application.LoginRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		panic(err)
	}
	return resp.Token
}

var (
	_ ports.AccountRepository      = (*Accounts)(nil)
	_ ports.SessionRepository      = (*Sessions)(nil)
	_ ports.ParameterRepository    = (*Params)(nil)
	_ ports.SignalementRepository  = (*Signalements)(nil)
	_ ports.EntrepriseRepository   = (*Entreprises)(nil)
	_ ports.MirrorStore            = (*MirrorStore)(nil)
	_ ports.ReachabilityProbe      = (*Probe)(nil)
	_ ports.MirrorIdentityProvider = (*IdentityProvider)(nil)
	_ ports.PasswordHasher         = Hasher{}
	_ ports.TokenSigner            = TokenSigner{}
	_ ports.RateLimiter            = (*RateLimiter)(nil)
	_ ports.SessionRevocationStore = (*Revocations)(nil)
)

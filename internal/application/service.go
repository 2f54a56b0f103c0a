package application

import (
	"time"

	"github.com/viralforge/roadworks/internal/ports"
)

type Service struct {
	cfg          Config
	accounts     ports.AccountRepository
	sessions     ports.SessionRepository
	params       ports.ParameterRepository
	signalements ports.SignalementRepository
	entreprises  ports.EntrepriseRepository
	rateLimiter  ports.RateLimiter
	revocations  ports.SessionRevocationStore
	identities   ports.MirrorIdentityProvider
	hasher       ports.PasswordHasher
	tokenSigner  ports.TokenSigner
	gate         *AvailabilityGate
	sync         *Reconciler
	nowFn        func() time.Time
}

type Dependencies struct {
	Config       Config
	Accounts     ports.AccountRepository
	Sessions     ports.SessionRepository
	Params       ports.ParameterRepository
	Signalements ports.SignalementRepository
	Entreprises  ports.EntrepriseRepository
	RateLimiter  ports.RateLimiter
	Revocations  ports.SessionRevocationStore
	Identities   ports.MirrorIdentityProvider
	Hasher       ports.PasswordHasher
	TokenSigner  ports.TokenSigner
	Gate         *AvailabilityGate
	Sync         *Reconciler
	// Now overrides the clock; nil means time.Now in UTC.
	Now func() time.Time
}

func NewService(deps Dependencies) *Service {
	nowFn := deps.Now
	if nowFn == nil {
		nowFn = utcNow
	}
	gate := deps.Gate
	if gate == nil {
		gate = NewAvailabilityGate(false, nil)
	}
	return &Service{
		cfg:          deps.Config,
		accounts:     deps.Accounts,
		sessions:     deps.Sessions,
		params:       deps.Params,
		signalements: deps.Signalements,
		entreprises:  deps.Entreprises,
		rateLimiter:  deps.RateLimiter,
		revocations:  deps.Revocations,
		identities:   deps.Identities,
		hasher:       deps.Hasher,
		tokenSigner:  deps.TokenSigner,
		gate:         gate,
		sync:         deps.Sync,
		nowFn:        nowFn,
	}
}

func utcNow() time.Time {
	return time.Now().UTC()
}

package application

import (
	"context"

	"github.com/viralforge/roadworks/internal/domain"
	"github.com/viralforge/roadworks/internal/ports"
)

const (
	mirrorMessageUnconfigured = "Firebase non configuré (credentials manquants dans .env)"
	mirrorMessageOnline       = "Firebase connecté et opérationnel"
	mirrorMessageOffline      = "Firebase configuré mais pas de connexion Internet"
)

// AvailabilityGate decides whether mirror operations may run.
// Configuration is fixed at construction; reachability is probed on every call.
type AvailabilityGate struct {
	configured bool
	probe      ports.ReachabilityProbe
}

func NewAvailabilityGate(configured bool, probe ports.ReachabilityProbe) *AvailabilityGate {
	return &AvailabilityGate{configured: configured, probe: probe}
}

func (g *AvailabilityGate) IsConfigured() bool {
	return g.configured
}

func (g *AvailabilityGate) IsReachable(ctx context.Context) bool {
	if g.probe == nil {
		return false
	}
	return g.probe.Reachable(ctx)
}

// Status composes both checks. An unconfigured mirror is never probed.
func (g *AvailabilityGate) Status(ctx context.Context) SyncStatus {
	if !g.configured {
		return SyncStatus{Configured: false, Online: false, Message: mirrorMessageUnconfigured}
	}
	if !g.IsReachable(ctx) {
		return SyncStatus{Configured: true, Online: false, Message: mirrorMessageOffline}
	}
	return SyncStatus{Configured: true, Online: true, Message: mirrorMessageOnline}
}

// Check returns domain.ErrMirrorUnavailable or domain.ErrMirrorOffline when the mirror cannot be used.
func (g *AvailabilityGate) Check(ctx context.Context) error {
	if !g.configured {
		return domain.NewError(domain.ErrMirrorUnavailable, "Firebase n'est pas configuré. Veuillez renseigner les credentials Firebase dans le fichier .env")
	}
	if !g.IsReachable(ctx) {
		return domain.NewError(domain.ErrMirrorOffline, "Pas de connexion Internet. Impossible de synchroniser avec Firebase.")
	}
	return nil
}

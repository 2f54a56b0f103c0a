package application

import (
	"context"

	"github.com/viralforge/roadworks/internal/domain"
)

func (s *Service) SyncStatus(ctx context.Context) SyncStatus {
	return s.gate.Status(ctx)
}

func (s *Service) SyncAll(ctx context.Context) (SyncAllResult, error) {
	if s.sync == nil {
		return SyncAllResult{}, s.unwiredSyncError(ctx)
	}
	return s.sync.SyncAll(ctx)
}

func (s *Service) SyncSignalements(ctx context.Context) (SyncCount, error) {
	if s.sync == nil {
		return SyncCount{}, s.unwiredSyncError(ctx)
	}
	return s.sync.SyncSignalements(ctx)
}

func (s *Service) SyncUsers(ctx context.Context) (SyncCount, error) {
	if s.sync == nil {
		return SyncCount{}, s.unwiredSyncError(ctx)
	}
	return s.sync.SyncUsers(ctx)
}

// unwiredSyncError reports the gate state, or ErrMirrorUnavailable when the gate
// is open but no reconciler was wired.
func (s *Service) unwiredSyncError(ctx context.Context) error {
	if err := s.gate.Check(ctx); err != nil {
		return err
	}
	return domain.NewError(domain.ErrMirrorUnavailable, "Synchronisation Firebase indisponible: aucun service de synchronisation n'est configuré")
}

func (s *Service) mirrorSignalement(ctx context.Context, id int64) MirrorResult {
	if s.sync == nil {
		return mirrorSkipped(SkipNotConfigured, nil)
	}
	return s.sync.SyncSignalement(ctx, id)
}

func (s *Service) deleteSignalementMirror(ctx context.Context, item domain.Signalement) MirrorResult {
	if s.sync == nil {
		return mirrorSkipped(SkipNotConfigured, nil)
	}
	return s.sync.DeleteSignalementMirror(ctx, item.ID, item.FirebaseID)
}

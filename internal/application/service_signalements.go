package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viralforge/roadworks/internal/domain"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

func (s *Service) ListSignalements(ctx context.Context, query ListSignalementsQuery) ([]SignalementView, error) {
	filter := domain.SignalementFilter{
		UserID: query.UserID,
		Limit:  query.Limit,
		Offset: query.Offset,
	}
	if strings.TrimSpace(query.Statut) != "" {
		status, err := domain.ParseStatus(query.Statut)
		if err != nil {
			return nil, err
		}
		filter.Statut = status
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	items, err := s.signalements.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list signalements: %w", err)
	}
	out := make([]SignalementView, 0, len(items))
	for _, item := range items {
		out = append(out, toSignalementView(item))
	}
	return out, nil
}

func (s *Service) GetSignalement(ctx context.Context, id int64) (SignalementView, error) {
	item, err := s.signalements.GetByID(ctx, id)
	if err != nil {
		return SignalementView{}, signalementLookupError(err)
	}
	return toSignalementView(item), nil
}

// CreateSignalement stores a new report. auth is nil for anonymous submissions.
// The mirror write afterwards is best effort.
func (s *Service) CreateSignalement(ctx context.Context, auth *domain.AuthContext, req CreateSignalementRequest) (SignalementView, error) {
	if req.Latitude == nil || req.Longitude == nil {
		return SignalementView{}, domain.NewError(domain.ErrInvalidInput, "Latitude et longitude requises")
	}
	params := domain.SignalementCreate{
		Latitude:    *req.Latitude,
		Longitude:   *req.Longitude,
		Adresse:     strings.TrimSpace(req.Adresse),
		Description: strings.TrimSpace(req.Description),
		SurfaceM2:   req.SurfaceM2,
	}
	if auth != nil {
		userID := auth.UserID
		params.UserID = &userID
	}
	if err := params.Validate(); err != nil {
		return SignalementView{}, err
	}

	now := s.nowFn()
	created, err := s.signalements.Create(ctx, params, now, signalementEvent(eventTypeSignalementCreated, now))
	if err != nil {
		return SignalementView{}, fmt.Errorf("create signalement: %w", err)
	}
	s.mirrorSignalement(ctx, created.ID)
	return s.reload(ctx, created), nil
}

// UpdateSignalement applies a manager edit. Moving to EN_COURS stamps the works start once;
// moving to TERMINE stamps the works end.
func (s *Service) UpdateSignalement(ctx context.Context, id int64, req UpdateSignalementRequest) (SignalementView, error) {
	update := domain.SignalementUpdate{
		Budget:       req.Budget,
		SurfaceM2:    req.SurfaceM2,
		EntrepriseID: req.EntrepriseID,
		Adresse:      trimmedPtr(req.Adresse),
		Description:  trimmedPtr(req.Description),
	}
	if req.Statut != nil {
		status, err := domain.ParseStatus(*req.Statut)
		if err != nil {
			return SignalementView{}, err
		}
		update.Statut = &status
	}
	if err := update.Validate(); err != nil {
		return SignalementView{}, err
	}

	now := s.nowFn()
	updated, err := s.signalements.Update(ctx, id, update, now, signalementEvent(eventTypeSignalementUpdated, now))
	if err != nil {
		return SignalementView{}, signalementLookupError(err)
	}
	s.mirrorSignalement(ctx, updated.ID)
	return s.reload(ctx, updated), nil
}

func (s *Service) DeleteSignalement(ctx context.Context, id int64) error {
	deleted, err := s.signalements.Delete(ctx, id, signalementEvent(eventTypeSignalementDeleted, s.nowFn()))
	if err != nil {
		return signalementLookupError(err)
	}
	s.deleteSignalementMirror(ctx, deleted)
	return nil
}

func (s *Service) Stats(ctx context.Context) (StatsView, error) {
	stats, err := s.signalements.Stats(ctx)
	if err != nil {
		return StatsView{}, fmt.Errorf("load stats: %w", err)
	}
	users, err := s.accounts.Count(ctx)
	if err != nil {
		return StatsView{}, fmt.Errorf("count users: %w", err)
	}
	return StatsView{
		TotalSignalements: stats.Total,
		Nouveaux:          stats.New,
		EnCours:           stats.InProgress,
		Termines:          stats.Done,
		SurfaceTotale:     stats.SurfaceTotal,
		BudgetTotal:       stats.BudgetTotal,
		Avancement:        stats.ProgressPct,
		TotalUtilisateurs: users,
	}, nil
}

func (s *Service) Entreprises(ctx context.Context) ([]EntrepriseView, error) {
	items, err := s.entreprises.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entreprises: %w", err)
	}
	out := make([]EntrepriseView, 0, len(items))
	for _, item := range items {
		out = append(out, EntrepriseView{
			ID:        item.ID,
			Nom:       item.Nom,
			Telephone: item.Telephone,
			Email:     item.Email,
			Adresse:   item.Adresse,
		})
	}
	return out, nil
}

// reload re-reads the joined view so responses carry reporter and company details.
func (s *Service) reload(ctx context.Context, item domain.Signalement) SignalementView {
	fresh, err := s.signalements.GetByID(ctx, item.ID)
	if err != nil {
		return toSignalementView(item)
	}
	return toSignalementView(fresh)
}

func signalementLookupError(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewError(domain.ErrNotFound, "Signalement non trouvé")
	}
	return err
}

func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	return &trimmed
}

package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/viralforge/roadworks/internal/domain"
	"github.com/viralforge/roadworks/internal/ports"
)

// Mirror collections.
const (
	collectionSignalements = "signalements"
	collectionUtilisateurs = "utilisateurs"
	collectionStats        = "stats"
	statsDocumentID        = "global"
)

type SkipReason string

const (
	SkipNotConfigured     SkipReason = "mirror_not_configured"
	SkipOffline           SkipReason = "mirror_offline"
	SkipSourceUnavailable SkipReason = "source_unavailable"
	SkipWriteFailed       SkipReason = "mirror_write_failed"
)

// MirrorResult is the outcome of a best-effort single-document mirror operation:
// either Ok with the document key, or Skipped with a reason.
type MirrorResult struct {
	Key    string
	Reason SkipReason
	Detail string
}

func mirrorOK(key string) MirrorResult {
	return MirrorResult{Key: key}
}

func mirrorSkipped(reason SkipReason, err error) MirrorResult {
	res := MirrorResult{Reason: reason}
	if err != nil {
		res.Detail = err.Error()
	}
	return res
}

func (r MirrorResult) Ok() bool {
	return r.Reason == ""
}

// Reconciler mirrors the relational store into the document store.
// Bulk runs fail loudly; single-document operations never return errors.
type Reconciler struct {
	gate         *AvailabilityGate
	mirror       ports.MirrorStore
	accounts     ports.AccountRepository
	signalements ports.SignalementRepository
	nowFn        func() time.Time
}

func NewReconciler(
	gate *AvailabilityGate,
	mirror ports.MirrorStore,
	accounts ports.AccountRepository,
	signalements ports.SignalementRepository,
	now func() time.Time,
) *Reconciler {
	if now == nil {
		now = utcNow
	}
	return &Reconciler{
		gate:         gate,
		mirror:       mirror,
		accounts:     accounts,
		signalements: signalements,
		nowFn:        now,
	}
}

// SyncSignalements upserts every report in one atomic batch, then records the
// fallback keys of reports that had none so later runs reuse the same documents.
func (r *Reconciler) SyncSignalements(ctx context.Context) (SyncCount, error) {
	if err := r.gate.Check(ctx); err != nil {
		mirrorSyncTotal.WithLabelValues(collectionSignalements, "skipped").Inc()
		return SyncCount{}, err
	}
	items, err := r.signalements.ListForSync(ctx)
	if err != nil {
		mirrorSyncTotal.WithLabelValues(collectionSignalements, "failure").Inc()
		return SyncCount{}, fmt.Errorf("load signalements: %w", err)
	}

	syncedAt := isoTime(r.nowFn())
	docs := make([]ports.MirrorDocument, 0, len(items))
	newKeys := make(map[int64]string)
	for _, item := range items {
		key := domain.MirrorKey(domain.MirrorEntitySignalement, item.ID, item.FirebaseID)
		docs = append(docs, signalementDocument(key, item, syncedAt))
		if !hasExternalKey(item.FirebaseID) {
			newKeys[item.ID] = key
		}
	}

	if len(docs) > 0 {
		if err := r.mirror.CommitBatch(ctx, docs); err != nil {
			mirrorSyncTotal.WithLabelValues(collectionSignalements, "failure").Inc()
			return SyncCount{}, fmt.Errorf("commit signalements batch: %w", err)
		}
	}
	if len(newKeys) > 0 {
		if err := r.signalements.AssignFirebaseIDs(ctx, newKeys); err != nil {
			mirrorSyncTotal.WithLabelValues(collectionSignalements, "failure").Inc()
			return SyncCount{}, fmt.Errorf("record mirror keys: %w", err)
		}
	}

	mirrorSyncTotal.WithLabelValues(collectionSignalements, "success").Inc()
	mirrorDocumentsTotal.WithLabelValues(collectionSignalements).Add(float64(len(docs)))
	r.logSync(ctx, "sync_signalements", len(docs), len(newKeys))
	return SyncCount{SyncCount: len(docs)}, nil
}

// SyncUsers upserts every account in one atomic batch. User documents are keyed by
// the external auth uid when known, else by user_<id>. Nothing is written back to
// the account, yet re-runs stay idempotent: the uid is immutable once recorded and
// user_<id> derives only from the primary key, so each run computes the same key
// for the same account and merges into the same document instead of adding one.
func (r *Reconciler) SyncUsers(ctx context.Context) (SyncCount, error) {
	if err := r.gate.Check(ctx); err != nil {
		mirrorSyncTotal.WithLabelValues(collectionUtilisateurs, "skipped").Inc()
		return SyncCount{}, err
	}
	accounts, err := r.accounts.ListAll(ctx)
	if err != nil {
		mirrorSyncTotal.WithLabelValues(collectionUtilisateurs, "failure").Inc()
		return SyncCount{}, fmt.Errorf("load accounts: %w", err)
	}

	syncedAt := isoTime(r.nowFn())
	docs := make([]ports.MirrorDocument, 0, len(accounts))
	for _, account := range accounts {
		key := domain.MirrorKey(domain.MirrorEntityUser, account.ID, account.FirebaseUID)
		docs = append(docs, userDocument(key, account, syncedAt))
	}
	if len(docs) > 0 {
		if err := r.mirror.CommitBatch(ctx, docs); err != nil {
			mirrorSyncTotal.WithLabelValues(collectionUtilisateurs, "failure").Inc()
			return SyncCount{}, fmt.Errorf("commit users batch: %w", err)
		}
	}

	mirrorSyncTotal.WithLabelValues(collectionUtilisateurs, "success").Inc()
	mirrorDocumentsTotal.WithLabelValues(collectionUtilisateurs).Add(float64(len(docs)))
	r.logSync(ctx, "sync_users", len(docs), 0)
	return SyncCount{SyncCount: len(docs)}, nil
}

func (r *Reconciler) SyncStats(ctx context.Context) (StatsSync, error) {
	if err := r.gate.Check(ctx); err != nil {
		mirrorSyncTotal.WithLabelValues(collectionStats, "skipped").Inc()
		return StatsSync{}, err
	}
	stats, err := r.signalements.Stats(ctx)
	if err != nil {
		mirrorSyncTotal.WithLabelValues(collectionStats, "failure").Inc()
		return StatsSync{}, fmt.Errorf("load stats: %w", err)
	}
	snapshot := StatsSync{
		TotalSignalements: stats.Total,
		NbNouveaux:        stats.New,
		NbEnCours:         stats.InProgress,
		NbTermines:        stats.Done,
		SurfaceTotaleM2:   stats.SurfaceTotal,
		BudgetTotal:       stats.BudgetTotal,
		AvancementPct:     stats.ProgressPct,
		SyncedAt:          isoTime(r.nowFn()),
	}
	if err := r.mirror.Upsert(ctx, ports.MirrorDocument{
		Collection: collectionStats,
		ID:         statsDocumentID,
		Fields: map[string]any{
			"total_signalements": snapshot.TotalSignalements,
			"nb_nouveaux":        snapshot.NbNouveaux,
			"nb_en_cours":        snapshot.NbEnCours,
			"nb_termines":        snapshot.NbTermines,
			"surface_totale_m2":  snapshot.SurfaceTotaleM2,
			"budget_total":       snapshot.BudgetTotal,
			"avancement_pct":     snapshot.AvancementPct,
			"synced_at":          snapshot.SyncedAt,
		},
	}); err != nil {
		mirrorSyncTotal.WithLabelValues(collectionStats, "failure").Inc()
		return StatsSync{}, fmt.Errorf("write stats document: %w", err)
	}
	mirrorSyncTotal.WithLabelValues(collectionStats, "success").Inc()
	return snapshot, nil
}

// SyncAll runs reports, accounts and stats in that order and stops at the first failure.
func (r *Reconciler) SyncAll(ctx context.Context) (SyncAllResult, error) {
	result := SyncAllResult{Timestamp: r.nowFn()}
	var err error
	if result.Signalements, err = r.SyncSignalements(ctx); err != nil {
		return SyncAllResult{}, err
	}
	if result.Utilisateurs, err = r.SyncUsers(ctx); err != nil {
		return SyncAllResult{}, err
	}
	if result.Stats, err = r.SyncStats(ctx); err != nil {
		return SyncAllResult{}, err
	}
	return result, nil
}

// SyncSignalement mirrors one report after a write. It never fails the caller.
func (r *Reconciler) SyncSignalement(ctx context.Context, id int64) MirrorResult {
	if res, ok := r.gateResult(ctx); !ok {
		return r.logSkipped(ctx, "sync_single", id, res)
	}
	item, err := r.signalements.GetByID(ctx, id)
	if err != nil {
		return r.logSkipped(ctx, "sync_single", id, mirrorSkipped(SkipSourceUnavailable, err))
	}
	key := domain.MirrorKey(domain.MirrorEntitySignalement, item.ID, item.FirebaseID)
	if err := r.mirror.Upsert(ctx, signalementDocument(key, item, isoTime(r.nowFn()))); err != nil {
		return r.logSkipped(ctx, "sync_single", id, mirrorSkipped(SkipWriteFailed, err))
	}
	if !hasExternalKey(item.FirebaseID) {
		if err := r.signalements.AssignFirebaseIDs(ctx, map[int64]string{item.ID: key}); err != nil {
			slog.Default().WarnContext(ctx, "mirror key not recorded",
				"service", serviceName,
				"module", "application.sync",
				"layer", "application",
				"operation", "sync_single",
				"outcome", "warning",
				"signalement_id", id,
				"error", err,
			)
		}
	}
	mirrorDocumentsTotal.WithLabelValues(collectionSignalements).Inc()
	return mirrorOK(key)
}

// DeleteSignalementMirror removes the mirror document of a deleted report. It never fails the caller.
func (r *Reconciler) DeleteSignalementMirror(ctx context.Context, id int64, firebaseID *string) MirrorResult {
	if res, ok := r.gateResult(ctx); !ok {
		return r.logSkipped(ctx, "delete_mirror", id, res)
	}
	key := domain.MirrorKey(domain.MirrorEntitySignalement, id, firebaseID)
	if err := r.mirror.Delete(ctx, collectionSignalements, key); err != nil {
		return r.logSkipped(ctx, "delete_mirror", id, mirrorSkipped(SkipWriteFailed, err))
	}
	return mirrorOK(key)
}

func (r *Reconciler) gateResult(ctx context.Context) (MirrorResult, bool) {
	err := r.gate.Check(ctx)
	switch {
	case err == nil:
		return MirrorResult{}, true
	case errors.Is(err, domain.ErrMirrorUnavailable):
		return mirrorSkipped(SkipNotConfigured, nil), false
	default:
		return mirrorSkipped(SkipOffline, nil), false
	}
}

func (r *Reconciler) logSkipped(ctx context.Context, operation string, id int64, res MirrorResult) MirrorResult {
	level := slog.LevelWarn
	if res.Reason == SkipNotConfigured {
		level = slog.LevelDebug
	}
	slog.Default().Log(ctx, level, "mirror write skipped",
		"service", serviceName,
		"module", "application.sync",
		"layer", "application",
		"operation", operation,
		"outcome", "skipped",
		"signalement_id", id,
		"reason", res.Reason,
		"detail", res.Detail,
	)
	return res
}

func (r *Reconciler) logSync(ctx context.Context, operation string, count, newKeys int) {
	slog.Default().InfoContext(ctx, "mirror sync completed",
		"service", serviceName,
		"module", "application.sync",
		"layer", "application",
		"operation", operation,
		"outcome", "success",
		"sync_count", count,
		"new_keys", newKeys,
	)
}

func signalementDocument(key string, item domain.Signalement, syncedAt string) ports.MirrorDocument {
	var utilisateur, entreprise any
	if item.Reporter != nil && item.Reporter.Email != "" {
		utilisateur = map[string]any{
			"email":  item.Reporter.Email,
			"nom":    item.Reporter.Nom,
			"prenom": item.Reporter.Prenom,
		}
	}
	if item.Entreprise != nil && item.Entreprise.Nom != "" {
		entreprise = map[string]any{
			"nom":       item.Entreprise.Nom,
			"telephone": item.Entreprise.Telephone,
		}
	}
	return ports.MirrorDocument{
		Collection: collectionSignalements,
		ID:         key,
		Fields: map[string]any{
			"id_signalement":     item.ID,
			"latitude":           item.Latitude,
			"longitude":          item.Longitude,
			"adresse":            item.Adresse,
			"description":        item.Description,
			"statut":             string(item.Statut),
			"surface_m2":         optionalFloat(item.SurfaceM2),
			"budget":             optionalFloat(item.Budget),
			"date_signalement":   isoTimePtr(nonZero(item.ReportedAt)),
			"date_modification":  isoTimePtr(nonZero(item.UpdatedAt)),
			"date_debut_travaux": isoTimePtr(item.WorksStartedAt),
			"date_fin_travaux":   isoTimePtr(item.WorksEndedAt),
			"utilisateur":        utilisateur,
			"entreprise":         entreprise,
			"synced_at":          syncedAt,
		},
	}
}

func userDocument(key string, account domain.Account, syncedAt string) ports.MirrorDocument {
	return ports.MirrorDocument{
		Collection: collectionUtilisateurs,
		ID:         key,
		Fields: map[string]any{
			"id_utilisateur": account.ID,
			"email":          account.Email,
			"nom":            account.Nom,
			"prenom":         account.Prenom,
			"role":           string(account.Role),
			"est_bloque":     account.Locked,
			"date_creation":  isoTimePtr(nonZero(account.CreatedAt)),
			"synced_at":      syncedAt,
		},
	}
}

func hasExternalKey(key *string) bool {
	return key != nil && strings.TrimSpace(*key) != ""
}

const isoLayout = "2006-01-02T15:04:05.000Z07:00"

func isoTime(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

func isoTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return isoTime(*t)
}

func nonZero(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func optionalFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

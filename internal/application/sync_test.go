package application_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/viralforge/roadworks/internal/application"
	"github.com/viralforge/roadworks/internal/domain"
	"github.com/viralforge/roadworks/internal/testsupport"
)

func floatPtr(v float64) *float64 { return &v }

func createSignalement(t *testing.T, h *testsupport.Harness, auth *domain.AuthContext, lat, lon float64) application.SignalementView {
	t.Helper()
	view, err := h.Service.CreateSignalement(context.Background(), auth, application.CreateSignalementRequest{
		Latitude:    floatPtr(lat),
		Longitude:   floatPtr(lon),
		Adresse:     "Route Digue",
		Description: "Nid de poule",
	})
	if err != nil {
		t.Fatalf("create signalement failed: %v", err)
	}
	return view
}

func TestSyncStatusMessages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	unconfigured := testsupport.NewHarness(testsupport.HarnessOptions{MirrorOnline: true})
	status := unconfigured.Service.SyncStatus(ctx)
	if status.Configured || status.Online || status.Message != "Firebase non configuré (credentials manquants dans .env)" {
		t.Fatalf("unexpected unconfigured status %+v", status)
	}
	if unconfigured.Probe.Calls() != 0 {
		t.Fatalf("unconfigured mirror must not be probed")
	}

	offline := testsupport.NewHarness(testsupport.HarnessOptions{MirrorConfigured: true})
	status = offline.Service.SyncStatus(ctx)
	if !status.Configured || status.Online || status.Message != "Firebase configuré mais pas de connexion Internet" {
		t.Fatalf("unexpected offline status %+v", status)
	}

	offline.Probe.SetOnline(true)
	status = offline.Service.SyncStatus(ctx)
	if !status.Online || status.Message != "Firebase connecté et opérationnel" {
		t.Fatalf("status must be re-probed on each call, got %+v", status)
	}
}

func TestSyncAllRefusedWhenUnavailable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	unconfigured := testsupport.NewHarness(testsupport.HarnessOptions{})
	_, err := unconfigured.Service.SyncAll(ctx)
	if !errors.Is(err, domain.ErrMirrorUnavailable) {
		t.Fatalf("expected unavailable mirror, got %v", err)
	}
	if err.Error() != "Firebase n'est pas configuré. Veuillez renseigner les credentials Firebase dans le fichier .env" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	offline := testsupport.NewHarness(testsupport.HarnessOptions{MirrorConfigured: true})
	if _, err := offline.Service.SyncSignalements(ctx); !errors.Is(err, domain.ErrMirrorOffline) {
		t.Fatalf("expected offline mirror, got %v", err)
	}
	if _, err := offline.Service.SyncUsers(ctx); !errors.Is(err, domain.ErrMirrorOffline) {
		t.Fatalf("expected offline mirror, got %v", err)
	}
	if offline.Mirror.Commits() != 0 {
		t.Fatalf("no batch may be committed while offline")
	}
}

func TestSyncSignalementsIsIdempotent(t *testing.T) {
	t.Parallel()

	h := testsupport.NewHarness(testsupport.HarnessOptions{MirrorConfigured: true})
	ctx := context.Background()
	first := createSignalement(t, h, nil, -18.91, 47.52)
	second := createSignalement(t, h, nil, -18.92, 47.53)

	h.Probe.SetOnline(true)
	count, err := h.Service.SyncSignalements(ctx)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if count.SyncCount != 2 {
		t.Fatalf("expected 2 synced documents, got %d", count.SyncCount)
	}
	for _, id := range []int64{first.ID, second.ID} {
		item, _ := h.Store.Signalement(id)
		want := domain.MirrorKey(domain.MirrorEntitySignalement, id, nil)
		if item.FirebaseID == nil || *item.FirebaseID != want {
			t.Fatalf("expected recorded key %s, got %v", want, item.FirebaseID)
		}
	}

	before := h.Mirror.Keys("signalements")
	count, err = h.Service.SyncSignalements(ctx)
	if err != nil || count.SyncCount != 2 {
		t.Fatalf("second sync failed: %+v (%v)", count, err)
	}
	after := h.Mirror.Keys("signalements")
	sort.Strings(before)
	sort.Strings(after)
	if len(after) != 2 || after[0] != before[0] || after[1] != before[1] {
		t.Fatalf("repeated sync must reuse document keys, before %v after %v", before, after)
	}

	doc, ok := h.Mirror.Document("signalements", "signalement_1")
	if !ok {
		t.Fatalf("expected signalement_1 document")
	}
	if doc["statut"] != "NOUVEAU" || doc["id_signalement"] != first.ID || doc["utilisateur"] != nil {
		t.Fatalf("unexpected document fields %+v", doc)
	}
	if doc["synced_at"] != "2026-03-02T09:00:00.000Z" {
		t.Fatalf("unexpected synced_at %v", doc["synced_at"])
	}
}

func TestSyncSignalementsCommitsLargeBacklogInOneBatch(t *testing.T) {
	t.Parallel()

	h := testsupport.NewHarness(testsupport.HarnessOptions{MirrorConfigured: true, MirrorOnline: true})
	ctx := context.Background()
	const backlog = 612
	for i := 0; i < backlog; i++ {
		if _, err := h.Store.Signalements().Create(ctx, domain.SignalementCreate{
			Latitude:    -18.9 - float64(i)/10000,
			Longitude:   47.5,
			Adresse:     "Route Digue",
			Description: "Nid de poule",
		}, h.Clock.Now(), nil); err != nil {
			t.Fatalf("seed signalement %d: %v", i, err)
		}
	}

	count, err := h.Service.SyncSignalements(ctx)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if count.SyncCount != backlog {
		t.Fatalf("expected %d synced documents, got %d", backlog, count.SyncCount)
	}
	if got := len(h.Mirror.Keys("signalements")); got != backlog {
		t.Fatalf("expected %d mirrored documents, got %d", backlog, got)
	}
	if got := h.Mirror.Commits(); got != 1 {
		t.Fatalf("expected one atomic batch, got %d commits", got)
	}
	for id := int64(1); id <= backlog; id++ {
		item, _ := h.Store.Signalement(id)
		if item.FirebaseID == nil {
			t.Fatalf("signalement %d has no recorded key", id)
		}
	}
}

func TestSyncWithoutReconcilerReportsUnavailable(t *testing.T) {
	t.Parallel()

	store := testsupport.NewStore()
	clock := testsupport.NewClock(time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC))
	probe := testsupport.NewProbe(true)
	gate := application.NewAvailabilityGate(true, probe)
	service := application.NewService(application.Dependencies{
		Accounts:     store.Accounts(),
		Sessions:     store.Sessions(),
		Params:       store.Params(),
		Signalements: store.Signalements(),
		Entreprises:  store.Entreprises(),
		RateLimiter:  &testsupport.RateLimiter{},
		Revocations:  &testsupport.Revocations{},
		Hasher:       testsupport.Hasher{},
		TokenSigner:  testsupport.TokenSigner{Now: clock.Now},
		Gate:         gate,
		Now:          clock.Now,
	})
	ctx := context.Background()

	if !service.SyncStatus(ctx).Online {
		t.Fatalf("gate should report the mirror online")
	}
	if _, err := service.SyncAll(ctx); !errors.Is(err, domain.ErrMirrorUnavailable) {
		t.Fatalf("sync all: expected unavailable mirror, got %v", err)
	}
	if _, err := service.SyncSignalements(ctx); !errors.Is(err, domain.ErrMirrorUnavailable) {
		t.Fatalf("sync signalements: expected unavailable mirror, got %v", err)
	}
	if _, err := service.SyncUsers(ctx); !errors.Is(err, domain.ErrMirrorUnavailable) {
		t.Fatalf("sync users: expected unavailable mirror, got %v", err)
	}

	probe.SetOnline(false)
	if _, err := service.SyncAll(ctx); !errors.Is(err, domain.ErrMirrorOffline) {
		t.Fatalf("gate error must win when offline, got %v", err)
	}
}

func TestSyncUsersReusesKeysAcrossRuns(t *testing.T) {
	t.Parallel()

	h := testsupport.NewHarness(testsupport.HarnessOptions{MirrorConfigured: true, MirrorOnline: true})
	ctx := context.Background()
	h.MustRegister("jean@example.mg", "secret123", domain.RoleUser)
	h.Identities.Fail = true
	local := h.MustRegister("marie@example.mg", "secret123", domain.RoleUser)

	for run := 1; run <= 3; run++ {
		count, err := h.Service.SyncUsers(ctx)
		if err != nil || count.SyncCount != 2 {
			t.Fatalf("run %d: unexpected result %+v (%v)", run, count, err)
		}
		keys := h.Mirror.Keys("utilisateurs")
		sort.Strings(keys)
		if len(keys) != 2 || keys[0] != "uid-1" || keys[1] != "user_2" {
			t.Fatalf("run %d: expected stable keys [uid-1 user_2], got %v", run, keys)
		}
	}
	if got := h.Store.Account(local.ID).FirebaseUID; got != nil {
		t.Fatalf("fallback key must not be written back, got %q", *got)
	}
}

func TestSyncSignalementsBatchFailureRecordsNothing(t *testing.T) {
	t.Parallel()

	h := testsupport.NewHarness(testsupport.HarnessOptions{MirrorConfigured: true})
	created := createSignalement(t, h, nil, -18.91, 47.52)

	h.Probe.SetOnline(true)
	h.Mirror.FailWrite = true
	if _, err := h.Service.SyncSignalements(context.Background()); err == nil {
		t.Fatalf("expected batch failure")
	}
	item, _ := h.Store.Signalement(created.ID)
	if item.FirebaseID != nil {
		t.Fatalf("keys must not be recorded when the batch fails")
	}
}

func TestSyncAllWritesEveryCollection(t *testing.T) {
	t.Parallel()

	h := testsupport.NewHarness(testsupport.HarnessOptions{MirrorConfigured: true, MirrorOnline: true})
	ctx := context.Background()
	user := h.MustRegister("citoyen@example.mg", "secret123", domain.RoleUser)
	h.MustRegister("local@example.mg", "secret123", domain.RoleManager)
	h.Identities.Fail = true
	local := h.MustRegister("nouid@example.mg", "secret123", domain.RoleUser)
	auth := &domain.AuthContext{UserID: user.ID}
	createSignalement(t, h, auth, -18.91, 47.52)

	result, err := h.Service.SyncAll(ctx)
	if err != nil {
		t.Fatalf("sync all failed: %v", err)
	}
	if result.Signalements.SyncCount != 1 || result.Utilisateurs.SyncCount != 3 {
		t.Fatalf("unexpected counts %+v", result)
	}
	if result.Stats.TotalSignalements != 1 || result.Stats.NbNouveaux != 1 {
		t.Fatalf("unexpected stats %+v", result.Stats)
	}

	if _, ok := h.Mirror.Document("utilisateurs", "uid-1"); !ok {
		t.Fatalf("user with external uid must be keyed by it")
	}
	fallback := domain.MirrorKey(domain.MirrorEntityUser, local.ID, nil)
	if _, ok := h.Mirror.Document("utilisateurs", fallback); !ok {
		t.Fatalf("expected fallback user key %s", fallback)
	}
	stats, ok := h.Mirror.Document("stats", "global")
	if !ok || stats["total_signalements"] != int64(1) {
		t.Fatalf("unexpected stats document %+v", stats)
	}

	doc, _ := h.Mirror.Document("signalements", "signalement_1")
	reporter, ok := doc["utilisateur"].(map[string]any)
	if !ok || reporter["email"] != "citoyen@example.mg" {
		t.Fatalf("expected joined reporter, got %+v", doc["utilisateur"])
	}
}

func TestSingleMirrorWritesNeverFailTheCaller(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	unconfigured := testsupport.NewHarness(testsupport.HarnessOptions{})
	view := createSignalement(t, unconfigured, nil, -18.91, 47.52)
	if view.ID == 0 || view.Statut != "NOUVEAU" {
		t.Fatalf("unexpected created view %+v", view)
	}
	if len(unconfigured.Mirror.Keys("signalements")) != 0 {
		t.Fatalf("unconfigured mirror must stay empty")
	}
	res := unconfigured.Reconciler.SyncSignalement(ctx, view.ID)
	if res.Ok() || res.Reason != application.SkipNotConfigured {
		t.Fatalf("expected not configured skip, got %+v", res)
	}

	online := testsupport.NewHarness(testsupport.HarnessOptions{MirrorConfigured: true, MirrorOnline: true})
	online.Mirror.FailWrite = true
	view = createSignalement(t, online, nil, -18.91, 47.52)
	if view.ID == 0 {
		t.Fatalf("create must succeed despite mirror failure")
	}
	res = online.Reconciler.SyncSignalement(ctx, view.ID)
	if res.Reason != application.SkipWriteFailed || res.Detail == "" {
		t.Fatalf("expected write failure skip, got %+v", res)
	}
	res = online.Reconciler.SyncSignalement(ctx, 404)
	if res.Reason != application.SkipSourceUnavailable {
		t.Fatalf("expected source unavailable skip, got %+v", res)
	}

	online.Mirror.FailWrite = false
	online.Probe.SetOnline(false)
	res = online.Reconciler.SyncSignalement(ctx, view.ID)
	if res.Reason != application.SkipOffline {
		t.Fatalf("expected offline skip, got %+v", res)
	}
}

func TestSignalementLifecycleMirrorsWrites(t *testing.T) {
	t.Parallel()

	h := testsupport.NewHarness(testsupport.HarnessOptions{MirrorConfigured: true, MirrorOnline: true})
	ctx := context.Background()
	entreprise := h.Store.AddEntreprise(domain.Entreprise{Nom: "Colas", Telephone: "020 22 000 00"})
	created := createSignalement(t, h, nil, -18.91, 47.52)

	if _, ok := h.Mirror.Document("signalements", "signalement_1"); !ok {
		t.Fatalf("create must mirror the new report")
	}
	item, _ := h.Store.Signalement(created.ID)
	if item.FirebaseID == nil || *item.FirebaseID != "signalement_1" {
		t.Fatalf("single sync must record the fallback key, got %v", item.FirebaseID)
	}

	statut := "EN_COURS"
	updated, err := h.Service.UpdateSignalement(ctx, created.ID, application.UpdateSignalementRequest{
		Statut:       &statut,
		Budget:       floatPtr(1500000),
		EntrepriseID: &entreprise.ID,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Statut != "EN_COURS" || updated.DateDebutTravaux == nil || updated.Entreprise == nil || updated.Entreprise.Nom != "Colas" {
		t.Fatalf("unexpected updated view %+v", updated)
	}
	started := *updated.DateDebutTravaux

	h.Clock.Advance(48 * time.Hour)
	again, err := h.Service.UpdateSignalement(ctx, created.ID, application.UpdateSignalementRequest{Statut: &statut})
	if err != nil || !again.DateDebutTravaux.Equal(started) {
		t.Fatalf("works start must be stamped once, got %+v (%v)", again.DateDebutTravaux, err)
	}

	done := "TERMINE"
	finished, err := h.Service.UpdateSignalement(ctx, created.ID, application.UpdateSignalementRequest{Statut: &done})
	if err != nil || finished.DateFinTravaux == nil {
		t.Fatalf("expected works end stamp, got %+v (%v)", finished, err)
	}
	doc, _ := h.Mirror.Document("signalements", "signalement_1")
	if doc["statut"] != "TERMINE" || doc["budget"] != 1500000.0 {
		t.Fatalf("mirror must follow updates, got %+v", doc)
	}

	missing := int64(99)
	if _, err := h.Service.UpdateSignalement(ctx, created.ID, application.UpdateSignalementRequest{EntrepriseID: &missing}); err == nil || err.Error() != "Entreprise inexistante" {
		t.Fatalf("expected missing company error, got %v", err)
	}

	if err := h.Service.DeleteSignalement(ctx, created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok := h.Mirror.Document("signalements", "signalement_1"); ok {
		t.Fatalf("delete must remove the mirror document")
	}
	if err := h.Service.DeleteSignalement(ctx, created.ID); err == nil || err.Error() != "Signalement non trouvé" {
		t.Fatalf("expected not found, got %v", err)
	}

	events := h.Store.EventTypes()
	want := []string{"signalement.created", "signalement.updated", "signalement.updated", "signalement.updated", "signalement.deleted"}
	if len(events) != len(want) {
		t.Fatalf("unexpected events %v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("unexpected events %v", events)
		}
	}
	for _, key := range h.Store.EventPartitionKeys() {
		if key != "signalement-1" {
			t.Fatalf("every lifecycle event must share the signalement partition, got %q", key)
		}
	}
}

func TestListSignalementsAndStats(t *testing.T) {
	t.Parallel()

	h := testsupport.NewHarness(testsupport.HarnessOptions{})
	ctx := context.Background()
	user := h.MustRegister("a@example.mg", "secret123", domain.RoleUser)
	auth := &domain.AuthContext{UserID: user.ID}

	first := createSignalement(t, h, auth, -18.91, 47.52)
	h.Clock.Advance(time.Second)
	createSignalement(t, h, nil, -18.92, 47.53)

	all, err := h.Service.ListSignalements(ctx, application.ListSignalementsQuery{})
	if err != nil || len(all) != 2 {
		t.Fatalf("unexpected list %+v (%v)", all, err)
	}
	if all[0].ID == first.ID {
		t.Fatalf("expected newest first")
	}

	mine, err := h.Service.ListSignalements(ctx, application.ListSignalementsQuery{UserID: user.ID})
	if err != nil || len(mine) != 1 || mine[0].Utilisateur == nil || mine[0].Utilisateur.Email != "a@example.mg" {
		t.Fatalf("unexpected filtered list %+v (%v)", mine, err)
	}

	if _, err := h.Service.ListSignalements(ctx, application.ListSignalementsQuery{Statut: "nope"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid status filter, got %v", err)
	}

	if _, err := h.Service.CreateSignalement(ctx, nil, application.CreateSignalementRequest{Latitude: floatPtr(1)}); err == nil || err.Error() != "Latitude et longitude requises" {
		t.Fatalf("expected missing coordinates error, got %v", err)
	}

	stats, err := h.Service.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalSignalements != 2 || stats.Nouveaux != 2 || stats.TotalUtilisateurs != 1 || stats.Avancement != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	if _, err := h.Service.GetSignalement(ctx, 1234); err == nil || err.Error() != "Signalement non trouvé" {
		t.Fatalf("expected not found, got %v", err)
	}
}

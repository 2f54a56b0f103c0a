package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadworks_login_attempts_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	accountLockoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roadworks_account_lockouts_total",
			Help: "Accounts locked after reaching the failed attempt threshold.",
		},
	)

	mirrorSyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadworks_mirror_sync_total",
			Help: "Mirror synchronization runs by entity class and outcome.",
		},
		[]string{"entity", "outcome"},
	)

	mirrorDocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roadworks_mirror_documents_total",
			Help: "Documents written to the mirror store.",
		},
		[]string{"entity"},
	)
)

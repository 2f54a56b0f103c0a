package application

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/roadworks/internal/domain"
	"github.com/viralforge/roadworks/internal/ports"
)

const (
	// eventTypeUserRegistered is emitted when an account is created.
	eventTypeUserRegistered = "user.registered"
	// eventTypeAccountLocked is emitted by the attempt that locks an account.
	eventTypeAccountLocked   = "account.locked"
	eventTypeAccountUnlocked = "account.unlocked"

	eventTypeSignalementCreated = "signalement.created"
	eventTypeSignalementUpdated = "signalement.updated"
	eventTypeSignalementDeleted = "signalement.deleted"
)

// partitionKey scopes ordering to one entity, e.g. "signalement-12".
func partitionKey(entity string, id int64) string {
	return entity + "-" + strconv.FormatInt(id, 10)
}

func newOutboxEvent(eventType, partitionKey string, payload map[string]any, at time.Time) ports.OutboxEvent {
	raw, _ := json.Marshal(payload)
	return ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    eventType,
		PartitionKey: partitionKey,
		Payload:      raw,
		OccurredAt:   at,
	}
}

func accountEvent(eventType string, at time.Time) ports.AccountEventFunc {
	return func(account domain.Account) ports.OutboxEvent {
		return newOutboxEvent(eventType, partitionKey("account", account.ID), map[string]any{
			"user_id":     account.ID,
			"email":       account.Email,
			"role":        account.Role,
			"occurred_at": at,
		}, at)
	}
}

func signalementEvent(eventType string, at time.Time) ports.SignalementEventFunc {
	return func(item domain.Signalement) ports.OutboxEvent {
		return newOutboxEvent(eventType, partitionKey("signalement", item.ID), map[string]any{
			"signalement_id": item.ID,
			"statut":         item.Statut,
			"latitude":       item.Latitude,
			"longitude":      item.Longitude,
			"occurred_at":    at,
		}, at)
	}
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/roadworks/internal/ports"
	"gorm.io/gorm"
)

// routableFamilies are the event type prefixes (text before the first dot) the
// publisher knows how to route: user.registered, account.locked|unlocked and signalement.*.
var routableFamilies = []string{"user", "account", "signalement"}

const unroutableReason = "unroutable event type"

var errLeaseLost = errors.New("outbox lease no longer held")

// claimHeadsSQL leases the oldest pending row of each partition. A row whose
// partition still has an older pending row (claimed or not) is never returned, so
// events about one account or one signalement reach the broker in creation order.
const claimHeadsSQL = `
UPDATE outbox
SET claim_token = ?, claim_until = ?
WHERE outbox_id IN (
	SELECT o.outbox_id
	FROM outbox o
	WHERE o.published_at IS NULL
	  AND o.dead_lettered_at IS NULL
	  AND (o.claim_until IS NULL OR o.claim_until < ?)
	  AND split_part(o.event_type, '.', 1) IN ?
	  AND NOT EXISTS (
		SELECT 1 FROM outbox prior
		WHERE prior.partition_key = o.partition_key
		  AND prior.published_at IS NULL
		  AND prior.dead_lettered_at IS NULL
		  AND (prior.created_at, prior.outbox_id) < (o.created_at, o.outbox_id)
	  )
	ORDER BY o.created_at, o.outbox_id
	LIMIT ?
	FOR UPDATE SKIP LOCKED
)
RETURNING outbox_id, event_type, partition_key, payload, created_at, first_seen_at,
	published_at, retry_count, last_error, last_error_at, claim_token, claim_until, dead_lettered_at`

type outboxRepository struct {
	db *gorm.DB
}

// Enqueue stores an event outside any business transaction.
func (r *outboxRepository) Enqueue(ctx context.Context, event ports.OutboxEvent) error {
	rec := toOutboxModel(event)
	return r.db.WithContext(ctx).Create(&rec).Error
}

// ClaimUnpublished dead-letters pending rows outside the routable families, then
// leases up to limit partition heads. Expired leases are reclaimable.
func (r *outboxRepository) ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]ports.OutboxRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	if claimToken == "" {
		return nil, fmt.Errorf("claim token is required")
	}

	now := time.Now().UTC()
	var rows []outboxModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&outboxModel{}).
			Where("published_at IS NULL AND dead_lettered_at IS NULL").
			Where("split_part(event_type, '.', 1) NOT IN ?", routableFamilies).
			Updates(map[string]any{
				"dead_lettered_at": now,
				"last_error":       unroutableReason,
				"last_error_at":    now,
			}).Error; err != nil {
			return fmt.Errorf("dead-letter unroutable events: %w", err)
		}
		return tx.Raw(claimHeadsSQL, claimToken, claimUntil, now, routableFamilies, limit).Scan(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("claim outbox heads: %w", err)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	result := make([]ports.OutboxRecord, 0, len(rows))
	for _, row := range rows {
		result = append(result, toOutboxRecord(row))
	}
	return result, nil
}

func (r *outboxRepository) MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error {
	return r.settle(ctx, outboxID, claimToken, map[string]any{"published_at": at})
}

// MarkFailed releases the lease so the row is the partition head again on the next poll.
func (r *outboxRepository) MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	return r.settle(ctx, outboxID, claimToken, failureChanges(errMsg, at))
}

// MarkDeadLettered parks the row; the next event of the same partition becomes claimable.
func (r *outboxRepository) MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	changes := failureChanges(errMsg, at)
	changes["dead_lettered_at"] = at
	return r.settle(ctx, outboxID, claimToken, changes)
}

func failureChanges(errMsg string, at time.Time) map[string]any {
	return map[string]any{
		"retry_count":   gorm.Expr("retry_count + 1"),
		"last_error":    errMsg,
		"last_error_at": at,
	}
}

// settle applies changes and drops the lease, but only while claimToken still holds it.
func (r *outboxRepository) settle(ctx context.Context, outboxID uuid.UUID, claimToken string, changes map[string]any) error {
	changes["claim_token"] = nil
	changes["claim_until"] = nil
	res := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ? AND claim_token = ?", outboxID, claimToken).
		Updates(changes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("outbox %s: %w", outboxID, errLeaseLost)
	}
	return nil
}

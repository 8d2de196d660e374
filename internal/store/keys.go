package store

import (
	"context"
	"fmt"
	"time"
)

// TransferKey remembers the outcome of an idempotent transfer request.
type TransferKey struct {
	Key       string    `db:"idempotency_key"`
	ActorID   string    `db:"actor_id"`
	Reference string    `db:"reference"`
	CreatedAt time.Time `db:"created_at"`
}

// GetTransferKey looks up a previously used idempotency key.
func (q *Queries) GetTransferKey(ctx context.Context, key string) (TransferKey, error) {
	var k TransferKey
	err := q.get(ctx, &k, `SELECT idempotency_key, actor_id, reference, created_at FROM transfer_keys WHERE idempotency_key = ?`, key)
	return k, err
}

// InsertTransferKey claims an idempotency key. A key already claimed yields
// ErrConflict.
func (q *Queries) InsertTransferKey(ctx context.Context, k TransferKey) error {
	_, err := q.exec(ctx, `INSERT INTO transfer_keys (idempotency_key, actor_id, reference, created_at) VALUES (?, ?, ?, ?)`,
		k.Key, k.ActorID, k.Reference, k.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("claiming transfer key: %w", err)
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arvend/tokengate/domain/cost"
	"github.com/arvend/tokengate/ports"
)

// SnapshotStore implements ports.SnapshotStore using SQLite. The
// snapshot body is stored as JSON under its namespaced metadata key,
// mirroring how the chat backend attaches it to the message record.
type SnapshotStore struct {
	db *DB
}

// NewSnapshotStore creates a new SQLite snapshot store.
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Get retrieves the snapshot for a message.
func (s *SnapshotStore) Get(ctx context.Context, messageID string) (cost.Snapshot, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT snapshot FROM usage_snapshots WHERE message_id = ?
	`, messageID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return cost.Snapshot{}, ports.ErrSnapshotNotFound
	}
	if err != nil {
		return cost.Snapshot{}, fmt.Errorf("query snapshot: %w", err)
	}

	var snap cost.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return cost.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// Put stores a snapshot. Snapshots are immutable: a second write for
// the same message is ignored rather than overwriting history.
func (s *SnapshotStore) Put(ctx context.Context, messageID string, snap cost.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO usage_snapshots (message_id, meta_key, version, model, snapshot, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO NOTHING
	`, messageID, cost.MetadataKey, snap.Version, snap.Model, string(raw), snap.CalculatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Ensure interface compliance.
var _ ports.SnapshotStore = (*SnapshotStore)(nil)

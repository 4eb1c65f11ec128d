package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jarvislabs/jarvis/internal/costledger"
	"github.com/jarvislabs/jarvis/internal/domain"
)

// UsageStore persists cost ledger records. It implements
// costledger.Persister so evicted in-memory records survive in sqlite.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a usage store using the given database.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

// SaveUsage appends one usage record.
func (u *UsageStore) SaveUsage(rec costledger.UsageRecord) error {
	var metadata []byte
	if len(rec.Metadata) > 0 {
		metadata, _ = json.Marshal(rec.Metadata)
	}

	_, err := u.db.sql.Exec(
		`INSERT INTO usage_records (session_id, agent_id, model, op_type, tokens_in, tokens_out, cost_micros, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.AgentID, rec.Model, rec.OpType,
		rec.TokensIn, rec.TokensOut, int64(rec.Cost),
		nullableString(string(metadata)),
		rec.Timestamp.UTC().Format(time.DateTime),
	)
	return err
}

// BySession returns up to limit records for one session, oldest first.
// Limit of 0 defaults to 100.
func (u *UsageStore) BySession(sessionID string, limit int) ([]costledger.UsageRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := u.db.sql.Query(
		`SELECT session_id, agent_id, model, op_type, tokens_in, tokens_out, cost_micros, metadata, created_at
		 FROM usage_records WHERE session_id = ? ORDER BY id LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsage(rows)
}

// Recent returns the newest records across all sessions, newest first.
func (u *UsageStore) Recent(limit int) ([]costledger.UsageRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := u.db.sql.Query(
		`SELECT session_id, agent_id, model, op_type, tokens_in, tokens_out, cost_micros, metadata, created_at
		 FROM usage_records ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsage(rows)
}

func scanUsage(rows *sql.Rows) ([]costledger.UsageRecord, error) {
	var out []costledger.UsageRecord
	for rows.Next() {
		var rec costledger.UsageRecord
		var costMicros int64
		var metadata sql.NullString
		var createdAt string

		if err := rows.Scan(
			&rec.SessionID, &rec.AgentID, &rec.Model, &rec.OpType,
			&rec.TokensIn, &rec.TokensOut, &costMicros, &metadata, &createdAt,
		); err != nil {
			continue
		}
		rec.Cost = domain.Money(costMicros)
		if metadata.Valid && metadata.String != "" {
			_ = json.Unmarshal([]byte(metadata.String), &rec.Metadata)
		}
		rec.Timestamp, _ = time.Parse(time.DateTime, createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

package store

import (
	"time"

	"github.com/jarvislabs/jarvis/internal/toolreg"
)

// ToolStore persists tool registry entries so installed tools survive
// restarts. It implements toolreg.RegistryStore.
type ToolStore struct {
	db *DB
}

// NewToolStore creates a tool store using the given database.
func NewToolStore(db *DB) *ToolStore {
	return &ToolStore{db: db}
}

// SaveTool inserts or updates one registry entry.
func (t *ToolStore) SaveTool(snap toolreg.ToolSnapshot) error {
	_, err := t.db.sql.Exec(
		`INSERT INTO tool_registry (name, version, status, install_path, safety_score,
		   usage_count, success_count, failure_count, total_exec_ms, installed_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		 ON CONFLICT(name) DO UPDATE SET
		   version = excluded.version,
		   status = excluded.status,
		   install_path = excluded.install_path,
		   safety_score = excluded.safety_score,
		   usage_count = excluded.usage_count,
		   success_count = excluded.success_count,
		   failure_count = excluded.failure_count,
		   total_exec_ms = excluded.total_exec_ms,
		   updated_at = excluded.updated_at`,
		snap.Name, snap.Version, string(snap.Status), snap.InstallPath, snap.SafetyScore,
		snap.UsageCount, snap.SuccessCount, snap.FailureCount, snap.TotalExecMs,
		snap.InstalledAt.UTC().Format(time.DateTime),
	)
	return err
}

// DeleteTool removes one registry entry.
func (t *ToolStore) DeleteTool(name string) error {
	_, err := t.db.sql.Exec(`DELETE FROM tool_registry WHERE name = ?`, name)
	return err
}

// LoadTools returns every persisted registry entry.
func (t *ToolStore) LoadTools() ([]toolreg.ToolSnapshot, error) {
	rows, err := t.db.sql.Query(
		`SELECT name, version, status, install_path, safety_score,
		        usage_count, success_count, failure_count, total_exec_ms, installed_at
		 FROM tool_registry ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []toolreg.ToolSnapshot
	for rows.Next() {
		var snap toolreg.ToolSnapshot
		var status, installedAt string
		if err := rows.Scan(
			&snap.Name, &snap.Version, &status, &snap.InstallPath, &snap.SafetyScore,
			&snap.UsageCount, &snap.SuccessCount, &snap.FailureCount, &snap.TotalExecMs, &installedAt,
		); err != nil {
			continue
		}
		snap.Status = toolreg.ToolStatus(status)
		snap.InstalledAt, _ = time.Parse(time.DateTime, installedAt)
		out = append(out, snap)
	}
	return out, rows.Err()
}

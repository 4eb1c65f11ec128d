package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create usage records",
		SQL: `
			CREATE TABLE usage_records (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id   TEXT NOT NULL,
				agent_id     TEXT NOT NULL,
				model        TEXT NOT NULL,
				op_type      TEXT NOT NULL,
				tokens_in    INTEGER NOT NULL DEFAULT 0,
				tokens_out   INTEGER NOT NULL DEFAULT 0,
				cost_micros  INTEGER NOT NULL DEFAULT 0,
				metadata     TEXT,
				created_at   TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_usage_session ON usage_records (session_id, id);
			CREATE INDEX idx_usage_agent ON usage_records (agent_id);
		`,
	},
	{
		Version: 2,
		Name:    "create tool registry",
		SQL: `
			CREATE TABLE tool_registry (
				name           TEXT PRIMARY KEY,
				version        TEXT NOT NULL DEFAULT '',
				status         TEXT NOT NULL,
				install_path   TEXT NOT NULL DEFAULT '',
				safety_score   INTEGER NOT NULL DEFAULT 0,
				usage_count    INTEGER NOT NULL DEFAULT 0,
				success_count  INTEGER NOT NULL DEFAULT 0,
				failure_count  INTEGER NOT NULL DEFAULT 0,
				total_exec_ms  INTEGER NOT NULL DEFAULT 0,
				installed_at   TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`,
	},
	{
		Version: 3,
		Name:    "create documents with FTS5",
		SQL: `
			CREATE TABLE documents (
				id          TEXT PRIMARY KEY,
				source      TEXT NOT NULL DEFAULT '',
				content     TEXT NOT NULL,
				metadata    TEXT,
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_documents_source ON documents (source);

			CREATE VIRTUAL TABLE documents_fts USING fts5(
				content,
				source,
				content='documents',
				content_rowid='rowid'
			);

			CREATE TRIGGER documents_ai AFTER INSERT ON documents BEGIN
				INSERT INTO documents_fts(rowid, content, source)
				VALUES (new.rowid, new.content, new.source);
			END;

			CREATE TRIGGER documents_ad AFTER DELETE ON documents BEGIN
				INSERT INTO documents_fts(documents_fts, rowid, content, source)
				VALUES ('delete', old.rowid, old.content, old.source);
			END;

			CREATE TRIGGER documents_au AFTER UPDATE ON documents BEGIN
				INSERT INTO documents_fts(documents_fts, rowid, content, source)
				VALUES ('delete', old.rowid, old.content, old.source);
				INSERT INTO documents_fts(rowid, content, source)
				VALUES (new.rowid, new.content, new.source);
			END;
		`,
	},
}

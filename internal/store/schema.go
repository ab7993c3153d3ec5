package store

import "database/sql"

// Timestamps are stored as UTC unix nanoseconds so ordering never depends on
// driver-specific time parsing.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS chats (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    name       TEXT NOT NULL UNIQUE,
    created_at INTEGER NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    chat_id      INTEGER NOT NULL REFERENCES chats(id),
    user_message TEXT NOT NULL,
    ai_response  TEXT NOT NULL,
    sent_at      INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_messages_chat ON chat_messages(chat_id, sent_at, id)`,
	`CREATE TABLE IF NOT EXISTS documents (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    path       TEXT NOT NULL,
    content    TEXT NOT NULL,
    message_id INTEGER REFERENCES chat_messages(id),
    created_at INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path)`,
	`CREATE TABLE IF NOT EXISTS embeddings (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id INTEGER NOT NULL REFERENCES documents(id),
    embedding   BLOB NOT NULL,
    model       TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_embeddings_document ON embeddings(document_id)`,
}

// EnsureSchema creates the tables if they do not already exist.
func EnsureSchema(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

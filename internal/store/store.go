// Package store is the SQLite-backed persistent store for chats, messages,
// documents and embedding vectors. Every mutation runs in its own
// transaction and is committed before the call returns.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"memchat/internal/domain"
)

// pageSize bounds how many rows a lazy sequence reads per query. The single
// connection is released between pages, so callers may use the store while
// ranging over a sequence.
const pageSize = 64

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the store at path. Use ":memory:" for a
// throwaway database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store: empty path")
	}
	db, err := openDB(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) stamp() int64 { return s.now().UTC().UnixNano() }

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateChat inserts a chat with a unique name.
func (s *Store) CreateChat(ctx context.Context, name string) (domain.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Chat{}, errors.New("store: chat name is empty")
	}
	chat := domain.Chat{Name: name, CreatedAt: time.Unix(0, s.stamp()).UTC()}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM chats WHERE name = ?`, name).Scan(&existing)
		switch {
		case err == nil:
			return fmt.Errorf("chat %q: %w", name, domain.ErrDuplicateName)
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO chats(name, created_at) VALUES(?, ?)`, name, chat.CreatedAt.UnixNano())
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("chat %q: %w", name, domain.ErrDuplicateName)
			}
			return err
		}
		chat.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

// ListChats returns all chats ordered by id.
func (s *Store) ListChats(ctx context.Context) ([]domain.Chat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM chats ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Chat
	for rows.Next() {
		var c domain.Chat
		var created int64
		if err := rows.Scan(&c.ID, &c.Name, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// ChatByName looks a chat up by its unique name.
func (s *Store) ChatByName(ctx context.Context, name string) (domain.Chat, error) {
	var c domain.Chat
	var created int64
	err := s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM chats WHERE name = ?`, strings.TrimSpace(name)).
		Scan(&c.ID, &c.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Chat{}, fmt.Errorf("chat %q: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Chat{}, err
	}
	c.CreatedAt = time.Unix(0, created).UTC()
	return c, nil
}

// AppendMessage records one turn in chatID.
func (s *Store) AppendMessage(ctx context.Context, chatID int64, userText, agentText string) (domain.Message, error) {
	msg := domain.Message{ChatID: chatID, UserText: userText, AgentText: agentText, SentAt: time.Unix(0, s.stamp()).UTC()}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRow(ctx, tx, `SELECT 1 FROM chats WHERE id = ?`, chatID, "chat"); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO chat_messages(chat_id, user_message, ai_response, sent_at) VALUES(?, ?, ?, ?)`,
			chatID, userText, agentText, msg.SentAt.UnixNano())
		if err != nil {
			return err
		}
		msg.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// MessagesForChat returns the chat's messages ordered by sent time. The
// sequence is lazy, reading the table page by page, and each range over it
// starts again from the first message.
func (s *Store) MessagesForChat(ctx context.Context, chatID int64) iter.Seq2[domain.Message, error] {
	return func(yield func(domain.Message, error) bool) {
		var lastSent, lastID int64 = -1 << 63, 0
		for {
			page, err := s.messagePage(ctx, chatID, lastSent, lastID)
			if err != nil {
				yield(domain.Message{}, err)
				return
			}
			for _, m := range page {
				if !yield(m, nil) {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
			last := page[len(page)-1]
			lastSent, lastID = last.SentAt.UnixNano(), last.ID
		}
	}
}

func (s *Store) messagePage(ctx context.Context, chatID, afterSent, afterID int64) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, chat_id, user_message, ai_response, sent_at
FROM chat_messages
WHERE chat_id = ? AND (sent_at > ? OR (sent_at = ? AND id > ?))
ORDER BY sent_at, id
LIMIT ?`, chatID, afterSent, afterSent, afterID, pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		var sent int64
		if err := rows.Scan(&m.ID, &m.ChatID, &m.UserText, &m.AgentText, &sent); err != nil {
			return nil, err
		}
		m.SentAt = time.Unix(0, sent).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// Stats counts the rows of every table.
type Stats struct {
	Chats      int
	Messages   int
	Documents  int
	Embeddings int
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `SELECT
    (SELECT COUNT(*) FROM chats),
    (SELECT COUNT(*) FROM chat_messages),
    (SELECT COUNT(*) FROM documents),
    (SELECT COUNT(*) FROM embeddings)`).Scan(&st.Chats, &st.Messages, &st.Documents, &st.Embeddings)
	return st, err
}

func requireRow(ctx context.Context, tx *sql.Tx, query string, id int64, what string) error {
	var one int
	err := tx.QueryRowContext(ctx, query, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, domain.ErrNotFound)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

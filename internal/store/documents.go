package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"math"
	"time"

	"memchat/internal/domain"
	"memchat/internal/vector"
)

// SaveDocument stores a file chunk and returns its id.
func (s *Store) SaveDocument(ctx context.Context, path, content string) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.insertDocument(ctx, tx, domain.Document{Path: path, Content: content})
		return err
	})
	return id, err
}

// SaveMessageDocument stores turn text linked to the message that produced it.
func (s *Store) SaveMessageDocument(ctx context.Context, messageID int64, path, content string) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRow(ctx, tx, `SELECT 1 FROM chat_messages WHERE id = ?`, messageID, "message"); err != nil {
			return err
		}
		var err error
		id, err = s.insertDocument(ctx, tx, domain.Document{Path: path, Content: content, MessageID: messageID})
		return err
	})
	return id, err
}

// SaveDocumentWithEmbedding stores a document and its first embedding in one
// transaction. Either both rows exist afterwards or neither does.
func (s *Store) SaveDocumentWithEmbedding(ctx context.Context, doc domain.Document, vec []float32, model string) (docID, embeddingID int64, err error) {
	if len(vec) == 0 {
		return 0, 0, errors.New("store: empty embedding")
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if doc.MessageID != 0 {
			if err := requireRow(ctx, tx, `SELECT 1 FROM chat_messages WHERE id = ?`, doc.MessageID, "message"); err != nil {
				return err
			}
		}
		var err error
		if docID, err = s.insertDocument(ctx, tx, doc); err != nil {
			return err
		}
		embeddingID, err = s.insertEmbedding(ctx, tx, docID, vec, model)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return docID, embeddingID, nil
}

func (s *Store) insertDocument(ctx context.Context, tx *sql.Tx, doc domain.Document) (int64, error) {
	var messageID any
	if doc.MessageID != 0 {
		messageID = doc.MessageID
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO documents(path, content, message_id, created_at) VALUES(?, ?, ?, ?)`,
		doc.Path, doc.Content, messageID, s.stamp())
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) insertEmbedding(ctx context.Context, tx *sql.Tx, documentID int64, vec []float32, model string) (int64, error) {
	if err := vector.CheckFinite(vec); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO embeddings(document_id, embedding, model, created_at) VALUES(?, ?, ?, ?)`,
		documentID, vector.Encode(vec), model, s.stamp())
	if err != nil {
		return 0, fmt.Errorf("insert embedding: %w", err)
	}
	return res.LastInsertId()
}

const documentColumns = `id, path, content, COALESCE(message_id, 0), created_at`

func scanDocument(row interface{ Scan(...any) error }) (domain.Document, error) {
	var d domain.Document
	var created int64
	if err := row.Scan(&d.ID, &d.Path, &d.Content, &d.MessageID, &created); err != nil {
		return domain.Document{}, err
	}
	d.CreatedAt = time.Unix(0, created).UTC()
	return d, nil
}

// LoadDocument fetches a document by id.
func (s *Store) LoadDocument(ctx context.Context, id int64) (domain.Document, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	return d, err
}

// LoadDocumentByPath fetches the oldest document stored under path.
func (s *Store) LoadDocumentByPath(ctx context.Context, path string) (domain.Document, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE path = ? ORDER BY id LIMIT 1`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, fmt.Errorf("document %q: %w", path, domain.ErrNotFound)
	}
	return d, err
}

// PendingDocuments returns the documents that have no embedding, by id.
func (s *Store) PendingDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents d
WHERE NOT EXISTS (SELECT 1 FROM embeddings e WHERE e.document_id = d.id)
ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SaveEmbedding appends an embedding for an existing document.
func (s *Store) SaveEmbedding(ctx context.Context, documentID int64, vec []float32, model string) (int64, error) {
	if len(vec) == 0 {
		return 0, errors.New("store: empty embedding")
	}
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRow(ctx, tx, `SELECT 1 FROM documents WHERE id = ?`, documentID, "document"); err != nil {
			return err
		}
		var err error
		id, err = s.insertEmbedding(ctx, tx, documentID, vec, model)
		return err
	})
	return id, err
}

// LoadEmbedding returns the first embedding stored for documentID.
func (s *Store) LoadEmbedding(ctx context.Context, documentID int64) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT embedding FROM embeddings WHERE document_id = ? ORDER BY id LIMIT 1`, documentID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("embedding for document %d: %w", documentID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return vector.Decode(blob)
}

// Embeddings returns every embedding row in insertion order. Like
// MessagesForChat it pages through the table lazily.
func (s *Store) Embeddings(ctx context.Context) iter.Seq2[domain.EmbeddingRow, error] {
	return func(yield func(domain.EmbeddingRow, error) bool) {
		var lastID int64
		for {
			page, err := s.embeddingPage(ctx, lastID)
			if err != nil {
				yield(domain.EmbeddingRow{}, err)
				return
			}
			for _, row := range page {
				if !yield(row, nil) {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
			lastID = page[len(page)-1].ID
		}
	}
}

func (s *Store) embeddingPage(ctx context.Context, afterID int64) ([]domain.EmbeddingRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, embedding, model FROM embeddings WHERE id > ? ORDER BY id LIMIT ?`,
		afterID, pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EmbeddingRow
	for rows.Next() {
		var row domain.EmbeddingRow
		var blob []byte
		if err := rows.Scan(&row.ID, &row.DocumentID, &blob, &row.Model); err != nil {
			return nil, err
		}
		if row.Vector, err = vector.Decode(blob); err != nil {
			return nil, fmt.Errorf("embedding %d: %w", row.ID, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// DocumentHit is a document ranked by distance on the SQL side.
type DocumentHit struct {
	DocumentID int64
	Distance   float64
}

// sqlDistance maps a metric to the scalar function ranking it. l2 ranks by
// vec_l2sq and takes the root of the result.
func sqlDistance(m vector.Metric) (string, error) {
	switch m {
	case vector.MetricL2Squared, vector.MetricL2:
		return "vec_l2sq", nil
	case vector.MetricCosine:
		return "vec_cosine_distance", nil
	default:
		return "", fmt.Errorf("store: no SQL distance for metric %q", m)
	}
}

// NearestDocuments ranks stored embeddings against vec under metric with the
// registered vector functions and returns up to k documents, each at its best
// distance. Rows of another dimension are ignored.
func (s *Store) NearestDocuments(ctx context.Context, vec []float32, k int, metric vector.Metric) ([]DocumentHit, error) {
	if k <= 0 || len(vec) == 0 {
		return nil, nil
	}
	fn, err := sqlDistance(metric)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT document_id, MIN(`+fn+`(embedding, ?)) AS distance
FROM embeddings
WHERE length(embedding) = ?
GROUP BY document_id
ORDER BY distance, document_id
LIMIT ?`, vector.Encode(vec), len(vec)*vector.ElementSize, k)
	if err != nil {
		return nil, fmt.Errorf("nearest documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentHit
	for rows.Next() {
		var h DocumentHit
		if err := rows.Scan(&h.DocumentID, &h.Distance); err != nil {
			return nil, err
		}
		if metric == vector.MetricL2 {
			h.Distance = math.Sqrt(h.Distance)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

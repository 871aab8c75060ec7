// Package store implements the DocumentStore collaborator: durable
// put/get/delete of documents plus point-in-time consistent snapshots for
// the clustering loop to scan.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/0xfaulty/tgcontest/internal/db"
	"github.com/0xfaulty/tgcontest/internal/model"
)

// DocumentStore is the small interface the rest of the system depends on.
// Concrete storage engines (a KV file, an embedded database, a SQL table)
// are all valid implementations; nothing outside this package should know
// which one is in use.
type DocumentStore interface {
	// Put upserts a document, reporting whether a row already existed
	// for the same FileID (true → 204, false → 201 at the HTTP boundary).
	Put(ctx context.Context, doc *model.Document) (existed bool, err error)
	// Delete removes a document, reporting whether it existed.
	Delete(ctx context.Context, fileID string) (existed bool, err error)
	// Get returns a single document by id.
	Get(ctx context.Context, fileID string) (*model.Document, bool, error)
	// Snapshot opens a point-in-time consistent view of the store. The
	// caller must Close it when done scanning.
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Snapshot is a consistent, isolated view of the store taken at one
// instant. Scan visits every document present at that instant; writes
// that land after Snapshot returns are never observed by it.
type Snapshot interface {
	Scan(ctx context.Context, visit func(*model.Document) error) error
	Close() error
}

// PostgresStore is a DocumentStore backed by a single documents table
// keyed by file id, keeping the DocumentStore interface a KV-shaped
// abstraction over a SQL engine rather than exposing any relational
// structure to callers.
type PostgresStore struct {
	pool *db.Pool
}

// NewPostgresStore wraps an already-connected pool and ensures the
// backing table exists.
func NewPostgresStore(ctx context.Context, pool *db.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("db pool is nil")
	}
	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate document store: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			file_id     TEXT PRIMARY KEY,
			url         TEXT NOT NULL,
			host        TEXT NOT NULL,
			title       TEXT NOT NULL,
			pub_time    TIMESTAMPTZ,
			fetch_time  TIMESTAMPTZ NOT NULL,
			ttl_seconds INTEGER NOT NULL,
			language    TEXT NOT NULL,
			category    TEXT NOT NULL,
			embeddings  JSONB
		)
	`)
	return err
}

type embeddingRow map[string][]float64

func (s *PostgresStore) Put(ctx context.Context, doc *model.Document) (bool, error) {
	if err := doc.Validate(); err != nil {
		return false, err
	}

	var existsCount int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM documents WHERE file_id = $1`, doc.FileID).Scan(&existsCount); err != nil {
		return false, fmt.Errorf("check existing document: %w", err)
	}
	existed := existsCount > 0

	embRow := make(embeddingRow, len(doc.Embeddings))
	for k, v := range doc.Embeddings {
		embRow[string(k)] = []float64(v)
	}
	embJSON, err := json.Marshal(embRow)
	if err != nil {
		return false, fmt.Errorf("marshal embeddings: %w", err)
	}

	var pubTime any
	if !doc.PubTime.IsZero() {
		pubTime = doc.PubTime
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (file_id, url, host, title, pub_time, fetch_time, ttl_seconds, language, category, embeddings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (file_id) DO UPDATE SET
			url = EXCLUDED.url,
			host = EXCLUDED.host,
			title = EXCLUDED.title,
			pub_time = EXCLUDED.pub_time,
			fetch_time = EXCLUDED.fetch_time,
			ttl_seconds = EXCLUDED.ttl_seconds,
			language = EXCLUDED.language,
			category = EXCLUDED.category,
			embeddings = EXCLUDED.embeddings
	`, doc.FileID, doc.URL, doc.Host, doc.Title, pubTime, doc.FetchTime, int(doc.TTL.Seconds()), doc.Language.String(), doc.Category.String(), string(embJSON))
	if err != nil {
		return false, fmt.Errorf("upsert document: %w", err)
	}

	return existed, nil
}

func (s *PostgresStore) Delete(ctx context.Context, fileID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE file_id = $1`, fileID)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Get(ctx context.Context, fileID string) (*model.Document, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT file_id, url, host, title, pub_time, fetch_time, ttl_seconds, language, category, embeddings
		FROM documents WHERE file_id = $1
	`, fileID)

	doc, err := scanDocument(row)
	if errors.Is(err, db.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDocument(row scannable) (*model.Document, error) {
	var (
		fileID, url, host, title, language, category string
		pubTime                                       *time.Time
		fetchTime                                      time.Time
		ttlSeconds                                     int
		embJSON                                        []byte
	)
	if err := row.Scan(&fileID, &url, &host, &title, &pubTime, &fetchTime, &ttlSeconds, &language, &category, &embJSON); err != nil {
		return nil, err
	}

	lang, err := model.ParseLanguage(language)
	if err != nil {
		return nil, err
	}
	cat, err := model.ParseCategory(category)
	if err != nil {
		return nil, err
	}

	doc := &model.Document{
		FileID:    fileID,
		URL:       url,
		Host:      host,
		Title:     title,
		FetchTime: fetchTime,
		TTL:       time.Duration(ttlSeconds) * time.Second,
		Language:  lang,
		Category:  cat,
	}
	if pubTime != nil {
		doc.PubTime = *pubTime
	}

	if len(embJSON) > 0 {
		var raw embeddingRow
		if err := json.Unmarshal(embJSON, &raw); err != nil {
			return nil, fmt.Errorf("unmarshal embeddings: %w", err)
		}
		if len(raw) > 0 {
			doc.Embeddings = make(map[model.EmbeddingKey]model.Embedding, len(raw))
			for k, v := range raw {
				doc.Embeddings[model.EmbeddingKey(k)] = model.Embedding(v)
			}
		}
	}

	return doc, nil
}

// postgresSnapshot pins a single read transaction at REPEATABLE READ so
// every Scan sees the same instant, mirroring the RocksDB ManagedSnapshot
// + iterator pattern the clustering loop is grounded on.
type postgresSnapshot struct {
	tx db.Tx
}

func (s *PostgresStore) Snapshot(ctx context.Context) (Snapshot, error) {
	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot transaction: %w", err)
	}
	if _, err := tx.Exec(ctx, `SET TRANSACTION ISOLATION LEVEL REPEATABLE READ, READ ONLY`); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("set snapshot isolation: %w", err)
	}
	return &postgresSnapshot{tx: tx}, nil
}

func (s *postgresSnapshot) Scan(ctx context.Context, visit func(*model.Document) error) error {
	rows, err := s.tx.Query(ctx, `
		SELECT file_id, url, host, title, pub_time, fetch_time, ttl_seconds, language, category, embeddings
		FROM documents
	`)
	if err != nil {
		return fmt.Errorf("scan documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return err
		}
		if err := visit(doc); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *postgresSnapshot) Close() error {
	return s.tx.Rollback(context.Background())
}

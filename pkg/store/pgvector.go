package store

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type PgCollectionConfig struct {
	TableName string
	VectorDim int
}

// PgCollection stores one collection in a pgvector table. The pool is
// shared and owned by the caller; Close does not release it.
type PgCollection struct {
	config PgCollectionConfig
	table  string
	pool   *pgxpool.Pool
}

func NewPgCollection(ctx context.Context, pool *pgxpool.Pool, config PgCollectionConfig) (*PgCollection, error) {
	if config.TableName == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}

	c := &PgCollection{
		config: config,
		table:  pgx.Identifier{config.TableName}.Sanitize(),
		pool:   pool,
	}
	if err := c.initialize(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *PgCollection) initialize(ctx context.Context) error {
	_, err := c.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding vector(%d)
		)`, c.table, c.config.VectorDim)
	if _, err := c.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table %s: %w", c.config.TableName, err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s
		ON %s USING gin (metadata jsonb_path_ops)`,
		pgx.Identifier{c.config.TableName + "_metadata_idx"}.Sanitize(), c.table)
	if _, err := c.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

func (c *PgCollection) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding`,
		c.table)

	for _, r := range records {
		if len(r.Embedding) != c.config.VectorDim {
			return fmt.Errorf("record %s: vector dimension %d, want %d", r.ID, len(r.Embedding), c.config.VectorDim)
		}
		metadata, err := json.Marshal(nonNil(r.Metadata))
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", r.ID, err)
		}

		_, err = tx.Exec(ctx, stmt,
			sanitizeUTF8(r.ID),
			sanitizeUTF8(r.Content),
			string(metadata),
			pgvector.NewVector(r.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert record %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (c *PgCollection) Query(ctx context.Context, embedding []float32, where map[string]any, limit int) ([]Hit, error) {
	filter, err := json.Marshal(nonNil(where))
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter: %w", err)
	}
	if limit <= 0 {
		limit = 5
	}

	query := fmt.Sprintf(`
		SELECT id, content, metadata, embedding <=> $1::vector AS distance
		FROM %s
		WHERE metadata @> $2::jsonb
		ORDER BY distance, id
		LIMIT $3`,
		c.table)

	rows, err := c.pool.Query(ctx, query, pgvector.NewVector(embedding), string(filter), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.config.TableName, err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var hit Hit
		if err := rows.Scan(&hit.ID, &hit.Content, &hit.Metadata, &hit.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (c *PgCollection) Get(ctx context.Context, ids []string) ([]Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, content, metadata, embedding
		FROM %s
		WHERE id = ANY($1)
		ORDER BY id`,
		c.table)

	rows, err := c.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r   Record
			vec pgvector.Vector
		)
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata, &vec); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Embedding = vec.Slice()
		records = append(records, r)
	}
	return records, rows.Err()
}

func (c *PgCollection) IDs(ctx context.Context) ([]string, error) {
	rows, err := c.pool.Query(ctx, fmt.Sprintf("SELECT id FROM %s ORDER BY id", c.table))
	if err != nil {
		return nil, fmt.Errorf("failed to list ids: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (c *PgCollection) Count(ctx context.Context, where map[string]any) (int, error) {
	filter, err := json.Marshal(nonNil(where))
	if err != nil {
		return 0, fmt.Errorf("failed to encode filter: %w", err)
	}

	var n int
	query := fmt.Sprintf("SELECT count(*) FROM %s WHERE metadata @> $1::jsonb", c.table)
	if err := c.pool.QueryRow(ctx, query, string(filter)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", c.config.TableName, err)
	}
	return n, nil
}

func (c *PgCollection) Clear(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, fmt.Sprintf("TRUNCATE %s", c.table)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", c.config.TableName, err)
	}
	return nil
}

func (c *PgCollection) Close() {}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}

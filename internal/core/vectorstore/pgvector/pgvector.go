package pgvector

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	pgvec "github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/syezain/ragserve/internal/core/vectorstore"
)

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

// Store persists embedded chunks in Postgres with the pgvector extension.
type Store struct {
	db *sql.DB
}

func NewStore(ctx context.Context, databaseURL string, embedDim int) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := bootstrap(pingCtx, db, embedDim); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &Store{db: db}, nil
}

func bootstrap(ctx context.Context, db *sql.DB, embedDim int) error {
	sqlBytes, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return fmt.Errorf("read initdb.sql: %w", err)
	}
	script := strings.ReplaceAll(string(sqlBytes), "__EMBED_DIM__", strconv.Itoa(embedDim))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec bootstrap: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}
	const q = `
		INSERT INTO kb_chunks (id, text, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET text = EXCLUDED.text, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding
	`
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, rec := range records {
		meta, err := json.Marshal(rec.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx, q, rec.ID, rec.Text, meta, pgvec.NewVector(rec.Vector)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert chunk: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]vectorstore.Result, error) {
	const q = `
		SELECT text, metadata, 1 - (embedding <=> $1) AS score
		FROM kb_chunks
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, q, pgvec.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var out []vectorstore.Result
	for rows.Next() {
		var (
			text  string
			meta  []byte
			score float64
		)
		if err := rows.Scan(&text, &meta, &score); err != nil {
			return nil, err
		}
		metadata := map[string]string{}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &metadata)
		}
		sc := score
		out = append(out, vectorstore.Result{Score: &sc, Text: text, Metadata: metadata})
	}
	return out, rows.Err()
}

// HasCollection reports whether any chunks exist. The table itself is created
// at startup, so an existing-but-empty table still counts as no collection.
func (s *Store) HasCollection(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM kb_chunks)`).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check chunks: %w", err)
	}
	return exists, nil
}

var _ vectorstore.Store = (*Store)(nil)

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/univera-lab/univera-rag/internal/core/domain"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// HistoryRepository persists chat exchanges keyed by session id.
type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS chat_exchanges (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    query TEXT NOT NULL,
    answer TEXT NOT NULL,
    source_count INT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_exchanges_session
    ON chat_exchanges (session_id, created_at DESC);
`)
	if err != nil {
		return fmt.Errorf("ensure chat_exchanges schema: %w", err)
	}
	return nil
}

func (r *HistoryRepository) Append(ctx context.Context, exchange domain.Exchange) error {
	if exchange.CreatedAt.IsZero() {
		exchange.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO chat_exchanges (id, session_id, query, answer, source_count, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, exchange.ID, exchange.SessionID, exchange.Query, exchange.Answer, exchange.SourceCount, exchange.CreatedAt)
	if err != nil {
		return fmt.Errorf("append exchange: %w", err)
	}
	return nil
}

// ListRecent returns up to limit exchanges of a session, oldest first.
func (r *HistoryRepository) ListRecent(ctx context.Context, sessionID string, limit int) ([]domain.Exchange, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, session_id, query, answer, source_count, created_at
FROM (
    SELECT id, session_id, query, answer, source_count, created_at
    FROM chat_exchanges
    WHERE session_id = $1
    ORDER BY created_at DESC
    LIMIT $2
) recent
ORDER BY created_at ASC
`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []domain.Exchange
	for rows.Next() {
		var ex domain.Exchange
		if err := rows.Scan(&ex.ID, &ex.SessionID, &ex.Query, &ex.Answer, &ex.SourceCount, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		exchanges = append(exchanges, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}
	return exchanges, nil
}

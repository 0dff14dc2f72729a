package storage

// sqlite.go — journal de mercados y trades sobre SQLite.
//
// Estrategia:
//   - `markets`: una fila por mercado (UPSERT); la resolución actualiza
//     la misma fila. Los outcomes se guardan como texto separado por '|'.
//   - `trades`: append-only, una fila por ejecución. El ledger en memoria
//     del engine es la fuente de verdad dentro del proceso; esto es el
//     registro duradero para inspección e histórico entre reinicios.
//   - Prune automático al arrancar: trades con más de 90 días.

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/predmarket/internal/domain"
)

const schema = `
-- Una fila por mercado, sin duplicados
CREATE TABLE IF NOT EXISTS markets (
    market_id       TEXT PRIMARY KEY,
    question        TEXT NOT NULL,
    description     TEXT,
    outcomes        TEXT NOT NULL,
    resolution_time DATETIME NOT NULL,
    creator_id      TEXT NOT NULL,
    created_at      DATETIME NOT NULL,
    resolved        INTEGER NOT NULL DEFAULT 0,
    winning_outcome TEXT,
    total_volume    REAL NOT NULL DEFAULT 0
);

-- Ledger append-only de ejecuciones
CREATE TABLE IF NOT EXISTS trades (
    trade_id  TEXT PRIMARY KEY,
    market_id TEXT NOT NULL,
    outcome   TEXT NOT NULL,
    buyer_id  TEXT NOT NULL,
    seller_id TEXT NOT NULL,
    price     REAL NOT NULL,
    quantity  REAL NOT NULL,
    ts        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_market ON trades(market_id, ts DESC);
CREATE INDEX IF NOT EXISTS idx_markets_res   ON markets(resolution_time);
`

// retentionTrades limita el histórico de trades en disco.
const retentionTrades = 90 * 24 * time.Hour

// SQLiteJournal implementa ports.Journal usando SQLite (pure Go, sin CGo).
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal abre (o crea) la base de datos en la ruta dada,
// aplica el schema y limpia trades antiguos.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteJournal: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteJournal: apply schema: %w", err)
	}

	j := &SQLiteJournal{db: db}
	j.pruneOld(context.Background())
	return j, nil
}

// SaveMarket hace upsert del mercado completo.
func (j *SQLiteJournal) SaveMarket(ctx context.Context, m *domain.Market) error {
	winning := sql.NullString{String: m.WinningOutcome, Valid: m.WinningOutcome != ""}
	resolved := 0
	if m.Resolved {
		resolved = 1
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO markets
			(market_id, question, description, outcomes, resolution_time,
			 creator_id, created_at, resolved, winning_outcome, total_volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(market_id) DO UPDATE SET
			question        = excluded.question,
			description     = excluded.description,
			resolved        = excluded.resolved,
			winning_outcome = excluded.winning_outcome,
			total_volume    = excluded.total_volume
	`,
		m.ID, m.Question, m.Description, strings.Join(m.Outcomes, "|"),
		m.ResolutionTime.UTC(), m.CreatorID, m.CreatedAt.UTC(),
		resolved, winning, m.TotalVolume,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveMarket: upsert %s: %w", m.ID, err)
	}
	return nil
}

// MarkResolved registra la resolución del mercado.
func (j *SQLiteJournal) MarkResolved(ctx context.Context, marketID, winningOutcome string) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE markets SET resolved = 1, winning_outcome = ? WHERE market_id = ?`,
		winningOutcome, marketID,
	)
	if err != nil {
		return fmt.Errorf("storage.MarkResolved: update %s: %w", marketID, err)
	}
	return nil
}

// AppendTrades inserta los trades de una ejecución en una transacción.
func (j *SQLiteJournal) AppendTrades(ctx context.Context, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.AppendTrades: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (trade_id, market_id, outcome, buyer_id, seller_id, price, quantity, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage.AppendTrades: prepare: %w", err)
	}
	defer stmt.Close()

	for _, t := range trades {
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.MarketID, t.Outcome, t.BuyerID, t.SellerID,
			t.Price, t.Quantity, t.Timestamp.UTC(),
		); err != nil {
			return fmt.Errorf("storage.AppendTrades: insert %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.AppendTrades: commit: %w", err)
	}
	return nil
}

// RecentTrades devuelve los últimos trades del mercado, el más nuevo
// primero. Pensado para inspección del journal, no para servir el API
// (el engine sirve su ledger en memoria).
func (j *SQLiteJournal) RecentTrades(ctx context.Context, marketID string, limit int) ([]domain.Trade, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT trade_id, market_id, outcome, buyer_id, seller_id, price, quantity, ts
		FROM trades
		WHERE market_id = ?
		ORDER BY ts DESC, trade_id
		LIMIT ?
	`, marketID, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentTrades: query: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var ts string
		if err := rows.Scan(&t.ID, &t.MarketID, &t.Outcome, &t.BuyerID, &t.SellerID, &t.Price, &t.Quantity, &ts); err != nil {
			return nil, fmt.Errorf("storage.RecentTrades: scan row: %w", err)
		}
		t.Timestamp = parseTimestamp(ts)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// parseTimestamp acepta los formatos con los que el driver serializa
// time.Time. Devuelve zero value si no reconoce ninguno.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Close cierra la conexión a la base de datos.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// pruneOld elimina trades antiguos para mantener la DB ligera.
func (j *SQLiteJournal) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionTrades)
	j.db.ExecContext(ctx, `DELETE FROM trades WHERE ts < ?`, cutoff)
}

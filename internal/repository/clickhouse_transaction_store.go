package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	pkgch "RiskPulse/pkg/clickhouse"
	applogger "RiskPulse/pkg/logger"

	"github.com/shopspring/decimal"
)

// CHTransactionStore implements TransactionStore backed by ClickHouse.
type CHTransactionStore struct {
	db    *sql.DB
	table string
	limit int
	l     *applogger.Logger
}

// NewCHTransactionStore reads from table; limit caps a window query (0 means no cap).
func NewCHTransactionStore(ch *pkgch.Client, table string, limit int) *CHTransactionStore {
	return &CHTransactionStore{db: ch.DB(), table: table, limit: limit}
}

// SetLogger injects a structured logger.
func (s *CHTransactionStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHTransactionStore) GetTransactions(ctx context.Context, w domrepo.Window) ([]models.TransactionRecord, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT id, ts, toString(amount), risk_score, description
        FROM %s FINAL
        WHERE ts >= ? AND ts < ?
        ORDER BY ts ASC`, s.table)
	args := []interface{}{w.From.UTC(), w.To.UTC()}
	if s.limit > 0 {
		q += " LIMIT ?"
		args = append(args, s.limit)
	}
	out, err := s.query(ctx, q, args...)
	if err != nil {
		s.logErr("get_transactions", err)
		return nil, fmt.Errorf("get transactions: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse get_transactions ok",
			applogger.String("table", s.table),
			applogger.Time("from", w.From),
			applogger.Time("to", w.To),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHTransactionStore) GetRecentTransactions(ctx context.Context, since time.Time, n int) ([]models.TransactionRecord, error) {
	q := fmt.Sprintf(`
        SELECT id, ts, toString(amount), risk_score, description
        FROM %s FINAL
        WHERE ts >= ?
        ORDER BY ts DESC
        LIMIT ?`, s.table)
	out, err := s.query(ctx, q, since.UTC(), n)
	if err != nil {
		s.logErr("recent_transactions", err)
		return nil, fmt.Errorf("get recent transactions: %w", err)
	}
	return out, nil
}

func (s *CHTransactionStore) query(ctx context.Context, q string, args ...interface{}) ([]models.TransactionRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.TransactionRecord, 0, 256)
	for rows.Next() {
		var (
			r      models.TransactionRecord
			amount string
			risk   sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.Timestamp, &amount, &risk, &r.Description); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if r.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		if risk.Valid {
			v := risk.Float64
			r.RiskScore = &v
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHTransactionStore) logErr(op string, err error) {
	if s.l == nil {
		return
	}
	s.l.Error("clickhouse "+op+" error",
		applogger.String("table", s.table),
		applogger.Error(err),
	)
}

var _ domrepo.TransactionStore = (*CHTransactionStore)(nil)

package repository

import (
	"context"
	"time"

	"RiskPulse/internal/domain/models"
)

// TransactionStore provides read-only access to transaction records for analytics.
type TransactionStore interface {
	// GetTransactions returns records with from <= timestamp < to, oldest first.
	GetTransactions(ctx context.Context, w Window) ([]models.TransactionRecord, error)
	// GetRecentTransactions returns up to n records at or after since, most recent first.
	GetRecentTransactions(ctx context.Context, since time.Time, n int) ([]models.TransactionRecord, error)
}

package repository

import (
	"strings"
	"testing"
	"time"

	"RiskPulse/internal/domain/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildInsertSkipsIncompleteRecords(t *testing.T) {
	risk := 42.5
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	txs := []*models.TransactionRecord{
		{ID: "a", Timestamp: ts, Amount: decimal.RequireFromString("12.345"), RiskScore: &risk, Description: "rent"},
		nil,
		{ID: "", Timestamp: ts, Amount: decimal.NewFromInt(1)},
		{ID: "b", Timestamp: ts, Amount: decimal.NewFromInt(7)},
	}

	q, args := buildInsert("riskpulse.transactions", txs)
	require.NotEmpty(t, q)
	assert.True(t, strings.HasPrefix(q, "INSERT INTO riskpulse.transactions"))
	assert.Equal(t, 2, strings.Count(q, "toDecimal64"))
	require.Len(t, args, 10)
	assert.Equal(t, "a", args[0])
	assert.Equal(t, "12.35", args[2])
	assert.Equal(t, 42.5, args[3])
	assert.Equal(t, "7.00", args[7])
	assert.Nil(t, args[8])
}

func TestBuildInsertEmpty(t *testing.T) {
	q, args := buildInsert("t", []*models.TransactionRecord{nil, {ID: "x"}})
	assert.Empty(t, q)
	assert.Nil(t, args)
}

func TestSchemaStatementsUseDatabase(t *testing.T) {
	stmts := SchemaStatements("riskpulse")
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "riskpulse")
	assert.Contains(t, stmts[1], "riskpulse.transactions")
	assert.Contains(t, stmts[1], "Nullable(Float64)")
}

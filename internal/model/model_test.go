package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnsAndValuesAlign(t *testing.T) {
	records := []Record{
		&Account{ID: "a1"},
		&Donation{ID: "d1"},
		&Transaction{ID: "t1"},
		&Expense{ID: "e1"},
		&UserProfile{ID: "u1"},
		&UserRole{ID: "r1"},
		&PhoneNumber{ID: "p1"},
		&Address{ID: "ad1"},
		&Link{ID: "l1"},
	}
	tables := map[string]bool{}
	for _, rec := range records {
		t.Run(rec.Table(), func(t *testing.T) {
			cols, vals := rec.Columns(), rec.Values()
			require.Equal(t, len(cols), len(vals))
			assert.Equal(t, "id", cols[0])
			assert.Equal(t, rec.PrimaryKey(), vals[0])

			seen := map[string]bool{}
			for _, c := range cols {
				assert.False(t, seen[c], "duplicate column %s", c)
				seen[c] = true
			}
		})
		tables[rec.Table()] = true
	}
	assert.Len(t, tables, len(records))
}

func TestAccountValuesCarryAudit(t *testing.T) {
	now := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	acc := &Account{
		ID:       "a1",
		Balance:  decimal.RequireFromString("500.5"),
		Currency: DefaultCurrency,
		Audit:    Audit{CreatedAt: now, UpdatedAt: now, Version: 0},
	}

	row := map[string]any{}
	for i, c := range acc.Columns() {
		row[c] = acc.Values()[i]
	}
	assert.Equal(t, now, row["created_at"])
	assert.Equal(t, 0, row["version"])
	assert.Nil(t, row["deleted_at"])
	assert.True(t, decimal.RequireFromString("500.5").Equal(row["balance"].(decimal.Decimal)))
}

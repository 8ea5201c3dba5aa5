package reconcile

import (
	"context"
	"testing"

	"doc-migrator/internal/config"
	"doc-migrator/internal/model"
	"doc-migrator/internal/source"
	"doc-migrator/internal/target"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collections() config.CollectionsConfig {
	return config.Default().Source.Collections
}

func insert(t *testing.T, store target.Store, recs ...model.Record) {
	t.Helper()
	for _, rec := range recs {
		require.NoError(t, store.Insert(context.Background(), rec))
	}
}

func TestRun_FinancePasses(t *testing.T) {
	src := source.NewMemoryStore()
	src.Seed("accounts", source.Document{"_id": "a1", "accountName": "Main", "currentBalance": source.Document{"$numberDouble": "120.25"}})
	src.Seed("expenses", source.Document{"_id": "e1", "expenseTitle": "Tea", "expenseAmount": "40"})

	dst := target.NewMemoryStore()
	insert(t, dst,
		&model.Account{ID: "a1", Balance: decimal.RequireFromString("120.25")},
		&model.Expense{ID: "e1", Amount: decimal.NewFromInt(40)},
	)

	rep := New(src, dst).Run(context.Background(), FinanceChecks(collections(), 5))
	require.Len(t, rep.Kinds, 4)
	assert.True(t, rep.Passed())

	acc := rep.Kinds[0]
	assert.Equal(t, int64(1), acc.SourceCount)
	assert.Equal(t, int64(1), acc.TargetCount)
	require.Len(t, acc.Samples, 1)
	assert.Equal(t, "Main", acc.Samples[0].Label)
	assert.Equal(t, []FieldCheck{{Field: "balance", Source: "120.25", Target: "120.25", Match: true}}, acc.Samples[0].Fields)
}

func TestRun_OrphanSourceDocument(t *testing.T) {
	src := source.NewMemoryStore()
	src.Seed("transactions",
		source.Document{"_id": "t1", "transactionAmt": 10.0},
		source.Document{"_id": "t2", "transactionAmt": 5.0},
	)
	dst := target.NewMemoryStore()
	insert(t, dst, &model.Transaction{ID: "t1", Amount: decimal.NewFromInt(10)})

	rep := New(src, dst).Run(context.Background(), []Check{FinanceChecks(collections(), 5)[2]})
	require.Len(t, rep.Kinds, 1)
	k := rep.Kinds[0]
	assert.False(t, k.CountMatch)
	require.Len(t, k.Samples, 2)
	assert.True(t, k.Samples[0].Passed())
	assert.False(t, k.Samples[1].Exists)
	assert.False(t, rep.Passed())
}

func TestRun_FieldMismatch(t *testing.T) {
	src := source.NewMemoryStore()
	src.Seed("contributions", source.Document{"_id": "d1", "amount": int64(100)})
	dst := target.NewMemoryStore()
	insert(t, dst, &model.Donation{ID: "d1", Amount: decimal.NewFromInt(90)})

	rep := New(src, dst).Run(context.Background(), []Check{FinanceChecks(collections(), 5)[1]})
	k := rep.Kinds[0]
	assert.True(t, k.CountMatch)
	require.Len(t, k.Samples, 1)
	assert.Equal(t, FieldCheck{Field: "amount", Source: "100", Target: "90", Match: false}, k.Samples[0].Fields[0])
	assert.False(t, k.Passed())
}

func TestRun_UsersCountsDerivedRecords(t *testing.T) {
	src := source.NewMemoryStore()
	src.Seed("user_profiles", source.Document{"_id": "u1", "email": "asha@example.org"})
	email := "asha@example.org"
	dst := target.NewMemoryStore()
	insert(t, dst,
		&model.UserProfile{ID: "u1", Email: &email},
		&model.UserRole{ID: "r1", UserID: "u1"},
		&model.UserRole{ID: "r2", UserID: "u1"},
		&model.PhoneNumber{ID: "p1", UserID: "u1"},
		&model.UserRole{ID: "r3", UserID: "someone-else"},
	)

	rep := New(src, dst).Run(context.Background(), UserChecks(collections(), 0))
	require.Len(t, rep.Kinds, 1)
	assert.True(t, rep.Passed())
	s := rep.Kinds[0].Samples[0]
	assert.Equal(t, map[string]int64{
		model.TableUserRoles:    2,
		model.TablePhoneNumbers: 1,
		model.TableAddresses:    0,
		model.TableLinks:        0,
	}, s.Derived)
}

func TestRun_SampleSizeBoundsSamples(t *testing.T) {
	src := source.NewMemoryStore()
	dst := target.NewMemoryStore()
	for _, id := range []string{"a1", "a2", "a3"} {
		src.Seed("accounts", source.Document{"_id": id, "currentBalance": 1.0})
		insert(t, dst, &model.Account{ID: id, Balance: decimal.NewFromInt(1)})
	}
	rep := New(src, dst).Run(context.Background(), FinanceChecks(collections(), 2)[:1])
	assert.Len(t, rep.Kinds[0].Samples, 2)
	assert.True(t, rep.Passed())
}

func TestEqualText(t *testing.T) {
	_, _, ok := equalText(nil, nil)
	assert.True(t, ok)
	_, got, ok := equalText("a@b.c", nil)
	assert.False(t, ok)
	assert.Equal(t, "NULL", got)
	_, _, ok = equalText("a@b.c", "a@b.c")
	assert.True(t, ok)
}

func TestEqualMoney(t *testing.T) {
	_, _, ok := equalMoney(2.5, 2.5)
	assert.True(t, ok)
	_, got, ok := equalMoney(2.5, nil)
	assert.False(t, ok)
	assert.Equal(t, "NULL", got)
	_, _, ok = equalMoney(source.Document{"$numberDecimal": "3.10"}, "3.1")
	assert.True(t, ok)

	want, got, ok := equalMoney(100.555, decimal.RequireFromString("100.56"))
	assert.True(t, ok, "source %s vs column %s", want, got)
	_, _, ok = equalMoney(100.5, "100.51")
	assert.False(t, ok)
}

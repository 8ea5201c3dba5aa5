package indexer

import (
	"context"
	"testing"
	"time"

	"doc-migrator/internal/config"
	"doc-migrator/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, 5, d, 9, 0, 0, 0, time.UTC)
}

func indexerConfig() config.IndexerConfig {
	return config.Default().Indexer
}

func seed() *source.MemoryStore {
	store := source.NewMemoryStore()
	store.Seed("document_references",
		source.Document{"_id": "doc1", "documentRefId": "don1", "documentType": "DONATION", "createdOn": day(2)},
		source.Document{"_id": "doc2", "documentRefId": "exp1", "documentType": "EXPENSE", "createdOn": day(3)},
		source.Document{"_id": "doc3", "documentRefId": nil, "documentType": "DONATION", "createdOn": day(4)},
		source.Document{"_id": "doc4", "documentRefId": "don2", "documentType": "DONATION", "createdOn": day(5)},
		source.Document{"_id": "doc5", "documentRefId": "evt1", "documentType": "EVENT", "createdOn": day(1)},
	)
	store.Seed("donations",
		source.Document{"_id": "don1", "transactionRefNumber": "TXN-1"},
		source.Document{"_id": "don2"},
	)
	store.Seed("expenses", source.Document{"_id": "exp1", "transactionRefNumber": "TXN-9"})
	return store
}

func refs(docs []source.Document) []string {
	var out []string
	for _, d := range docs {
		out = append(out, d.String("documentRefId")+"/"+d.String("documentType"))
	}
	return out
}

func TestRun_FirstPass(t *testing.T) {
	ctx := context.Background()
	store := seed()

	res, err := New(store, indexerConfig(), false).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Scanned)
	assert.Equal(t, 1, res.Skipped, "null reference")
	assert.Nil(t, res.Previous)
	require.NotNil(t, res.Watermark)
	assert.True(t, res.Watermark.Equal(day(5)))

	// Sorted by createdOn; don2 has no transaction reference.
	assert.Equal(t, []string{
		"evt1/EVENT",
		"don1/DONATION", "TXN-1/TRANSACTION",
		"exp1/EXPENSE", "TXN-9/EXPENSE",
		"don2/DONATION",
	}, refs(store.All("document_mappings")))

	m := store.All("document_mappings")[2]
	assert.Equal(t, "doc1", m["documentId"])
	assert.Equal(t, day(2), m["createdOn"])

	info, found, err := store.FindOne(ctx, "migration_info", source.Eq("_id", "mig-doc-map-info"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, day(5), info["last_migration"])
}

func TestRun_SecondPassIsIncremental(t *testing.T) {
	ctx := context.Background()
	store := seed()
	_, err := New(store, indexerConfig(), false).Run(ctx)
	require.NoError(t, err)
	before := len(store.All("document_mappings"))

	store.Seed("document_references",
		source.Document{"_id": "doc6", "documentRefId": "exp2", "documentType": "EXPENSE", "createdOn": day(6)},
	)
	res, err := New(store, indexerConfig(), false).Run(ctx)
	require.NoError(t, err)

	require.NotNil(t, res.Previous)
	assert.True(t, res.Previous.Equal(day(5)))
	assert.Equal(t, 2, res.Scanned, "the reference at the watermark is re-read and deduplicated")
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, res.Mappings, 1, "exp2 has no expense record, so no derived mapping")
	assert.Len(t, store.All("document_mappings"), before+1)
	assert.True(t, res.Watermark.Equal(day(6)))
}

func TestRun_SharedReferenceWithinRun(t *testing.T) {
	store := source.NewMemoryStore()
	store.Seed("document_references",
		source.Document{"_id": "receipt", "documentRefId": "don1", "documentType": "DONATION", "createdOn": day(1)},
		source.Document{"_id": "invoice", "documentRefId": "don1", "documentType": "DONATION", "createdOn": day(2)},
		source.Document{"_id": "invoice", "documentRefId": "don1", "documentType": "DONATION", "createdOn": day(2)},
	)
	store.Seed("donations", source.Document{"_id": "don1", "transactionRefNumber": "TXN-1"})

	res, err := New(store, indexerConfig(), false).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Mappings, 4)
	assert.Equal(t, 1, res.Skipped)

	byDoc := map[string][]string{}
	for _, m := range store.All("document_mappings") {
		byDoc[m.String("documentId")] = append(byDoc[m.String("documentId")], m.String("documentRefId"))
	}
	assert.ElementsMatch(t, []string{"don1", "TXN-1"}, byDoc["receipt"])
	assert.ElementsMatch(t, []string{"don1", "TXN-1"}, byDoc["invoice"])

	res, err = New(store, indexerConfig(), false).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Mappings)
	assert.Len(t, store.All("document_mappings"), 4)
}

func TestRun_NothingToIndex(t *testing.T) {
	store := source.NewMemoryStore()
	res, err := New(store, indexerConfig(), false).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Mappings)
	assert.Nil(t, res.Watermark)
	assert.Empty(t, store.All("document_mappings"))
	assert.Empty(t, store.All("migration_info"))
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	store := seed()
	res, err := New(store, indexerConfig(), true).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Mappings, 6)
	assert.Empty(t, store.All("document_mappings"))
	assert.Empty(t, store.All("migration_info"))
}

func TestRefString(t *testing.T) {
	assert.Equal(t, "", refString(nil))
	assert.Equal(t, "abc", refString(" abc "))
	assert.Equal(t, "65f0c0ffee0000000000beef", refString(source.Document{"$oid": "65f0c0ffee0000000000beef"}))
}

package source

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNormalize(t *testing.T) {
	oid := primitive.NewObjectID()
	when := time.Date(2023, 4, 5, 6, 7, 8, 0, time.UTC)
	dec, err := primitive.ParseDecimal128("12.50")
	require.NoError(t, err)

	in := bson.M{
		"_id":     oid,
		"count":   int32(3),
		"created": primitive.NewDateTimeFromTime(when),
		"balance": dec,
		"tags":    bson.A{"a", int32(1)},
		"nested":  bson.D{{Key: "ok", Value: true}},
		"none":    nil,
	}
	doc := NormalizeDocument(in)

	assert.Equal(t, Document{OIDKey: oid.Hex()}, doc["_id"])
	assert.Equal(t, int64(3), doc["count"])
	assert.Equal(t, when, doc["created"])
	assert.Equal(t, Document{DecimalKey: "12.50"}, doc["balance"])
	assert.Equal(t, []any{"a", int64(1)}, doc["tags"])
	assert.Equal(t, Document{"ok": true}, doc["nested"])
	assert.Nil(t, doc["none"])
	assert.Equal(t, oid.Hex(), doc.String("_id"))
}

func TestDocumentAccessors(t *testing.T) {
	doc := Document{
		"name":    "Main",
		"zero":    int64(0),
		"nan":     math.NaN(),
		"flag":    true,
		"flagStr": "true",
		"empty":   "",
		"sub":     Document{"x": "y"},
		"arr":     []any{"a"},
		"nil":     nil,
		"phone":   float64(9876543210),
		"ref":     float64(12345678),
		"ratio":   0.25,
	}

	assert.True(t, doc.Has("name"))
	assert.False(t, doc.Has("nil"))
	assert.False(t, doc.Has("missing"))
	assert.True(t, doc.Bool("flag"))
	assert.False(t, doc.Bool("flagStr"))
	assert.True(t, doc.Truthy("flagStr"))
	assert.False(t, doc.Truthy("zero"))
	assert.False(t, doc.Truthy("nan"))
	assert.False(t, doc.Truthy("empty"))
	assert.True(t, doc.Truthy("sub"))
	assert.Equal(t, "0", doc.String("zero"))
	assert.Equal(t, "", doc.String("sub"))
	assert.Equal(t, "9876543210", doc.String("phone"))
	assert.Equal(t, "12345678", doc.String("ref"))
	assert.Equal(t, "0.25", doc.String("ratio"))

	sub, ok := doc.Sub("sub")
	require.True(t, ok)
	assert.Equal(t, "y", sub.String("x"))
	arr, ok := doc.Array("arr")
	require.True(t, ok)
	assert.Len(t, arr, 1)
	assert.Equal(t, "Main", doc.Label())
}

func TestMemoryStoreQueries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Seed("refs",
		Document{"_id": "r1", "createdOn": Document{DateKey: "2024-01-03T00:00:00Z"}},
		Document{"_id": Document{OIDKey: "65a1b2c3d4e5f60718293a4b"}, "createdOn": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		Document{"_id": "r3", "createdOn": time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		Document{"_id": "r4"},
	)

	n, err := store.Count(ctx, "refs")
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	cur, err := store.Find(ctx, "refs", Query{
		Filter:  []Cond{Since("createdOn", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))},
		SortAsc: "createdOn",
	})
	require.NoError(t, err)
	docs, err := Drain(ctx, cur)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "r3", docs[0].ID())
	assert.Equal(t, "r1", docs[1].ID())

	doc, found, err := store.FindOne(ctx, "refs", Eq("_id", "65a1b2c3d4e5f60718293a4b"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, Document{OIDKey: "65a1b2c3d4e5f60718293a4b"}, doc.ID())

	_, found, err = store.FindOne(ctx, "refs", Eq("_id", "nope"))
	require.NoError(t, err)
	assert.False(t, found)

	sample, err := store.Sample(ctx, "refs", 3)
	require.NoError(t, err)
	assert.Len(t, sample, 3)
}

func TestMemoryStoreUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Upsert(ctx, "info", "k", Document{"v": int64(1)}))
	require.NoError(t, store.Upsert(ctx, "info", "k", Document{"v": int64(2)}))

	all := store.All("info")
	require.Len(t, all, 1)
	assert.Equal(t, Document{"_id": "k", "v": int64(2)}, all[0])
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	lines := `{"_id":{"$oid":"65a1b2c3d4e5f60718293a4b"},"accountName":"Main","currentBalance":{"$numberDouble":"Infinity"},"activatedOn":{"$date":"2023-01-01T00:00:00Z"}}
{"_id":"a2","currentBalance":{"$numberInt":"5"}}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "accounts.json"), []byte(lines), 0644))
	array := `[{"_id":"d1","amount":10.5},{"_id":"d2","amount":{"$numberLong":"7"}}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "contributions.json"), []byte(array), 0644))

	store, err := NewFileStore(dir)
	require.NoError(t, err)

	n, err := store.Count(ctx, "accounts")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	acc, found, err := store.FindOne(ctx, "accounts", Eq("accountName", "Main"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "65a1b2c3d4e5f60718293a4b", acc.String("_id"))
	assert.True(t, math.IsInf(acc["currentBalance"].(float64), 1))
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), acc["activatedOn"])

	donations, err := store.Sample(ctx, "contributions", 10)
	require.NoError(t, err)
	require.Len(t, donations, 2)
	assert.Equal(t, int64(7), donations[1]["amount"])

	missing, err := store.Count(ctx, "document_mappings")
	require.NoError(t, err)
	assert.Zero(t, missing)

	require.NoError(t, store.InsertMany(ctx, "document_mappings", []Document{{"documentId": "x", "documentRefId": "d1"}}))
	require.NoError(t, store.Close(ctx))

	reread, err := ReadExtJSONFile(filepath.Join(dir, "document_mappings.json"))
	require.NoError(t, err)
	require.Len(t, reread, 1)
	assert.Equal(t, "d1", reread[0].String("documentRefId"))
}

func TestNewFileStoreRejectsMissingDir(t *testing.T) {
	_, err := NewFileStore(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestReadExtJSONFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"_id": `), 0644))
	_, err := ReadExtJSONFile(path)
	assert.Error(t, err)
}

func TestResolveDatabase(t *testing.T) {
	db, err := ResolveDatabase("mongodb://localhost:27017/nabarun_stage", "")
	require.NoError(t, err)
	assert.Equal(t, "nabarun_stage", db)

	db, err = ResolveDatabase("mongodb://localhost:27017/nabarun_stage", "override")
	require.NoError(t, err)
	assert.Equal(t, "override", db)

	_, err = ResolveDatabase("mongodb://localhost:27017", "")
	assert.Error(t, err)

	_, err = ResolveDatabase("not-a-uri", "")
	assert.Error(t, err)
}

func TestBuildFilter(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	hex := "65a1b2c3d4e5f60718293a4b"
	oid, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)

	filter := buildFilter([]Cond{Eq("_id", hex), Eq("type", "DONATION"), Since("createdOn", since)})

	require.Len(t, filter, 3)
	assert.Equal(t, bson.E{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{hex, oid}}}}, filter[0])
	assert.Equal(t, bson.E{Key: "type", Value: "DONATION"}, filter[1])
	assert.Equal(t, bson.E{Key: "createdOn", Value: bson.D{{Key: "$gte", Value: since}}}, filter[2])
}

func TestToBSONRestoresDriverTypes(t *testing.T) {
	hex := "65a1b2c3d4e5f60718293a4b"
	out := toBSON(Document{"_id": Document{OIDKey: hex}, "list": []any{Document{"a": int64(1)}}})

	m, ok := out.(bson.M)
	require.True(t, ok)
	oid, ok := m["_id"].(primitive.ObjectID)
	require.True(t, ok)
	assert.Equal(t, hex, oid.Hex())
	assert.Equal(t, bson.A{bson.M{"a": int64(1)}}, m["list"])
}

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"doc-migrator/internal/logging"

	"go.mongodb.org/mongo-driver/bson"
)

// FileStore reads mongoexport dumps from a directory, one <collection>.json
// file per collection. Files may hold a JSON array (--jsonArray) or one
// extended JSON document per line. Writes are kept in memory and flushed
// back as canonical extended JSON lines on Close.
type FileStore struct {
	*MemoryStore

	dir    string
	mu     sync.Mutex
	loaded map[string]bool
	dirty  map[string]bool
}

// NewFileStore creates a FileStore rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("FileStore failed to open dump directory '%s': %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("FileStore dump path '%s' is not a directory", dir)
	}
	return &FileStore{
		MemoryStore: NewMemoryStore(),
		dir:         dir,
		loaded:      make(map[string]bool),
		dirty:       make(map[string]bool),
	}, nil
}

func (f *FileStore) path(collection string) string {
	return filepath.Join(f.dir, collection+".json")
}

// load reads a collection dump on first access. A missing file is an empty collection.
func (f *FileStore) load(collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loaded[collection] {
		return nil
	}
	docs, err := ReadExtJSONFile(f.path(collection))
	if errors.Is(err, os.ErrNotExist) {
		logging.Logf(logging.Debug, "FileStore: no dump for collection '%s', treating as empty.", collection)
		err = nil
	}
	if err != nil {
		return err
	}
	f.MemoryStore.Seed(collection, docs...)
	f.loaded[collection] = true
	logging.Logf(logging.Debug, "FileStore loaded %d documents from %s", len(docs), f.path(collection))
	return nil
}

func (f *FileStore) Count(ctx context.Context, collection string) (int64, error) {
	if err := f.load(collection); err != nil {
		return 0, err
	}
	return f.MemoryStore.Count(ctx, collection)
}

func (f *FileStore) Find(ctx context.Context, collection string, q Query) (Cursor, error) {
	if err := f.load(collection); err != nil {
		return nil, err
	}
	return f.MemoryStore.Find(ctx, collection, q)
}

func (f *FileStore) FindOne(ctx context.Context, collection string, filter ...Cond) (Document, bool, error) {
	if err := f.load(collection); err != nil {
		return nil, false, err
	}
	return f.MemoryStore.FindOne(ctx, collection, filter...)
}

func (f *FileStore) Sample(ctx context.Context, collection string, n int) ([]Document, error) {
	if err := f.load(collection); err != nil {
		return nil, err
	}
	return f.MemoryStore.Sample(ctx, collection, n)
}

func (f *FileStore) InsertMany(ctx context.Context, collection string, docs []Document) error {
	if err := f.load(collection); err != nil {
		return err
	}
	f.markDirty(collection)
	return f.MemoryStore.InsertMany(ctx, collection, docs)
}

func (f *FileStore) Upsert(ctx context.Context, collection string, id any, doc Document) error {
	if err := f.load(collection); err != nil {
		return err
	}
	f.markDirty(collection)
	return f.MemoryStore.Upsert(ctx, collection, id, doc)
}

func (f *FileStore) markDirty(collection string) {
	f.mu.Lock()
	f.dirty[collection] = true
	f.mu.Unlock()
}

// Close writes every modified collection back to its dump file.
func (f *FileStore) Close(context.Context) error {
	f.mu.Lock()
	names := make([]string, 0, len(f.dirty))
	for name := range f.dirty {
		names = append(names, name)
	}
	f.mu.Unlock()
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := WriteExtJSONFile(f.path(name), f.MemoryStore.All(name)); err != nil {
			errs = append(errs, err)
			continue
		}
		f.mu.Lock()
		delete(f.dirty, name)
		f.mu.Unlock()
	}
	return errors.Join(errs...)
}

// ReadExtJSONFile decodes a mongoexport dump into normalised documents.
func ReadExtJSONFile(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dump '%s': %w", path, err)
	}

	var docs []Document
	dec := json.NewDecoder(bytes.NewReader(data))
	for n := 1; ; n++ {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to read value %d of dump '%s': %w", n, path, err)
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '[' {
			var items []json.RawMessage
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, fmt.Errorf("failed to split array in dump '%s': %w", path, err)
			}
			for i, item := range items {
				doc, err := decodeExtJSON(item)
				if err != nil {
					return nil, fmt.Errorf("dump '%s' element %d: %w", path, i, err)
				}
				docs = append(docs, doc)
			}
			continue
		}
		doc, err := decodeExtJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("dump '%s' value %d: %w", path, n, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func decodeExtJSON(raw []byte) (Document, error) {
	var m bson.M
	if err := bson.UnmarshalExtJSON(raw, false, &m); err != nil {
		return nil, fmt.Errorf("invalid extended JSON: %w", err)
	}
	return NormalizeDocument(m), nil
}

// WriteExtJSONFile writes documents as canonical extended JSON, one per line.
func WriteExtJSONFile(path string, docs []Document) error {
	var buf bytes.Buffer
	for i, doc := range docs {
		line, err := bson.MarshalExtJSON(toBSON(doc), true, false)
		if err != nil {
			return fmt.Errorf("failed to encode document %d for '%s': %w", i, path, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory for '%s': %w", path, err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write dump '%s': %w", path, err)
	}
	return nil
}

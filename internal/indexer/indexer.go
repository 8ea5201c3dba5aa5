// Package indexer builds the cross-reference mapping between uploaded
// documents and the donations, expenses and transactions they belong to.
package indexer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"doc-migrator/internal/config"
	"doc-migrator/internal/logging"
	"doc-migrator/internal/source"
	"doc-migrator/internal/transform"
)

// Document types written to the mapping collection.
const (
	TypeDonation    = "DONATION"
	TypeExpense     = "EXPENSE"
	TypeTransaction = "TRANSACTION"
)

const watermarkField = "last_migration"

// Mapping links one document to one referenced record.
type Mapping struct {
	DocumentID    any
	DocumentRefID string
	DocumentType  string
	CreatedOn     *time.Time
}

// Document converts the mapping into its stored form.
func (m Mapping) Document() source.Document {
	doc := source.Document{
		"documentId":    m.DocumentID,
		"documentRefId": m.DocumentRefID,
		"documentType":  m.DocumentType,
		"createdOn":     nil,
	}
	if m.CreatedOn != nil {
		doc["createdOn"] = *m.CreatedOn
	}
	return doc
}

// Result summarises one indexer run.
type Result struct {
	Scanned   int
	Skipped   int
	Mappings  []Mapping
	Previous  *time.Time
	Watermark *time.Time
}

// Indexer scans document references created on or after the last run and
// records a mapping for each one not yet mapped.
type Indexer struct {
	store  source.Store
	cfg    config.IndexerConfig
	dryRun bool
}

// New creates an Indexer. In dry-run mode nothing is written.
func New(store source.Store, cfg config.IndexerConfig, dryRun bool) *Indexer {
	return &Indexer{store: store, cfg: cfg, dryRun: dryRun}
}

// Run performs one indexing pass. Mappings are inserted in a single batch and
// the watermark advances to the newest createdOn processed.
func (ix *Indexer) Run(ctx context.Context) (*Result, error) {
	res := &Result{}

	info, found, err := ix.store.FindOne(ctx, ix.cfg.Info, source.Eq("_id", ix.cfg.WatermarkKey))
	if err != nil {
		return nil, fmt.Errorf("failed to read watermark '%s': %w", ix.cfg.WatermarkKey, err)
	}
	q := source.Query{SortAsc: "createdOn"}
	if found {
		res.Previous = transform.ParseDate(info.Get(watermarkField))
	}
	if res.Previous != nil {
		q.Filter = append(q.Filter, source.Since("createdOn", *res.Previous))
		logging.Logf(logging.Info, "Indexing document references created since %s", res.Previous.Format(time.RFC3339))
	} else {
		logging.Logf(logging.Info, "No watermark found, indexing all document references")
	}

	cur, err := ix.store.Find(ctx, ix.cfg.References, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query '%s': %w", ix.cfg.References, err)
	}
	defer func() {
		if cerr := cur.Close(ctx); cerr != nil {
			logging.Logf(logging.Warning, "Failed to close %s cursor: %v", ix.cfg.References, cerr)
		}
	}()

	seen := map[string]bool{}
	for cur.Next(ctx) {
		ref := cur.Document()
		res.Scanned++

		created := transform.ParseDate(ref.Get("createdOn"))
		if created != nil && (res.Watermark == nil || created.After(*res.Watermark)) {
			res.Watermark = created
		}

		refID := refString(ref.Get("documentRefId"))
		key := refString(ref.ID()) + "\x00" + refID
		if refID == "" || seen[key] {
			res.Skipped++
			continue
		}
		seen[key] = true
		_, mapped, err := ix.store.FindOne(ctx, ix.cfg.Mappings, source.Eq("documentRefId", refID))
		if err != nil {
			return nil, fmt.Errorf("failed to look up mapping for '%s': %w", refID, err)
		}
		if mapped {
			res.Skipped++
			continue
		}

		docType := ref.String("documentType")
		logging.Logf(logging.Info, "Creating index for %v with %s - %s", ref.ID(), refID, docType)
		res.Mappings = append(res.Mappings, Mapping{DocumentID: ref.ID(), DocumentRefID: refID, DocumentType: docType, CreatedOn: created})

		derived, err := ix.derive(ctx, docType, refID)
		if err != nil {
			return nil, err
		}
		if derived != nil {
			derived.DocumentID = ref.ID()
			derived.CreatedOn = created
			logging.Logf(logging.Info, "Creating index for %v with %s - %s", ref.ID(), derived.DocumentRefID, derived.DocumentType)
			res.Mappings = append(res.Mappings, *derived)
		}
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to read '%s': %w", ix.cfg.References, err)
	}

	if ix.dryRun {
		logging.Logf(logging.Info, "Dry run: %d mappings not written", len(res.Mappings))
		return res, nil
	}
	if len(res.Mappings) > 0 {
		docs := make([]source.Document, len(res.Mappings))
		for i, m := range res.Mappings {
			docs[i] = m.Document()
		}
		if err := ix.store.InsertMany(ctx, ix.cfg.Mappings, docs); err != nil {
			return nil, fmt.Errorf("failed to insert %d mappings: %w", len(docs), err)
		}
	}
	if res.Watermark != nil && (res.Previous == nil || res.Watermark.After(*res.Previous)) {
		mark := source.Document{"_id": ix.cfg.WatermarkKey, watermarkField: *res.Watermark}
		if err := ix.store.Upsert(ctx, ix.cfg.Info, ix.cfg.WatermarkKey, mark); err != nil {
			return nil, fmt.Errorf("failed to advance watermark: %w", err)
		}
	}
	logging.Logf(logging.Info, "Indexed %d references: %d mappings created, %d skipped", res.Scanned, len(res.Mappings), res.Skipped)
	return res, nil
}

// derive returns the mapping to the transaction behind a donation or expense,
// or nil when the record is missing or carries no transaction reference.
func (ix *Indexer) derive(ctx context.Context, docType, refID string) (*Mapping, error) {
	var coll, mappedType string
	switch docType {
	case TypeDonation:
		coll, mappedType = ix.cfg.Donations, TypeTransaction
	case TypeExpense:
		coll, mappedType = ix.cfg.Expenses, TypeExpense
	default:
		return nil, nil
	}
	rec, found, err := ix.store.FindOne(ctx, coll, source.Eq("_id", refID))
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s '%s': %w", strings.ToLower(docType), refID, err)
	}
	if !found {
		return nil, nil
	}
	txRef := strings.TrimSpace(rec.String("transactionRefNumber"))
	if txRef == "" {
		logging.Logf(logging.Debug, "%s %s has no transaction reference", strings.ToLower(docType), refID)
		return nil, nil
	}
	return &Mapping{DocumentRefID: txRef, DocumentType: mappedType}, nil
}

// refString reads a reference that may be a plain string or an ObjectID.
func refString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	default:
		return transform.ResolveID(val)
	}
}

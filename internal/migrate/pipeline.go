package migrate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"doc-migrator/internal/config"
	"doc-migrator/internal/logging"
	"doc-migrator/internal/model"
	"doc-migrator/internal/refcheck"
	"doc-migrator/internal/source"
	"doc-migrator/internal/util"
)

// Pipeline turns one source document into committed target records:
// filter, map, skip if present, validate references, derive, commit.
type Pipeline struct {
	kind       string
	collection string
	labelKeys  []string
	filter     *Filter
	engine     *Engine

	mapFn      func(doc source.Document) (model.Record, error)
	validateFn func(ctx context.Context, rec model.Record) (refcheck.Result, error)
	deriveFn   func(doc source.Document, rec model.Record) []model.Record
}

func (p *Pipeline) Kind() string       { return p.kind }
func (p *Pipeline) Collection() string { return p.collection }

func (p *Pipeline) label(doc source.Document) string {
	for _, k := range p.labelKeys {
		if s := strings.TrimSpace(doc.String(k)); s != "" {
			return s
		}
	}
	return doc.Label()
}

// Process runs one document through the pipeline.
func (p *Pipeline) Process(ctx context.Context, doc source.Document) Outcome {
	out := Outcome{Label: p.label(doc), ID: doc.String("_id")}
	fail := func(err error) Outcome {
		out.Status = StatusFailed
		out.Err = err
		logging.Logf(logging.Debug, "%s document (masked): %v", p.kind, util.MaskSensitiveData(doc))
		return out
	}

	keep, err := p.filter.Match(doc)
	if err != nil {
		return fail(err)
	}
	if !keep {
		out.Status = StatusFiltered
		return out
	}

	rec, err := p.mapFn(doc)
	if err != nil {
		return fail(err)
	}
	out.ID = rec.PrimaryKey()

	status, err := p.engine.Apply(ctx, rec, func(ctx context.Context) ([]model.Record, error) {
		if p.validateFn != nil {
			res, err := p.validateFn(ctx, rec)
			if err != nil {
				return nil, err
			}
			out.Nulled = res.Nulled
			if res.Dropped != nil {
				out.Dropped = res.Dropped
				return nil, errDropped
			}
		}
		var derived []model.Record
		if p.deriveFn != nil {
			derived = p.deriveFn(doc, rec)
		}
		out.Derived = len(derived)
		return derived, nil
	})
	switch {
	case errors.Is(err, ErrAlreadyMigrated):
		logging.Logf(logging.Info, "Skipping existing %s: %s", p.kind, out.ID)
		out.Status = StatusSkipped
		return out
	case errors.Is(err, errDropped):
		out.Status = StatusDropped
		return out
	case err != nil:
		out.Derived = 0
		return fail(err)
	}
	out.Status = status
	return out
}

// Kinds in migration order.
var (
	FinanceKinds = []string{config.KindAccounts, config.KindDonations, config.KindTransactions, config.KindExpenses}
	UserKinds    = []string{config.KindUsers}
)

// pipeline builds the pipeline for kind reading from collection.
func (m *Migrator) pipeline(kind, collection string) (*Pipeline, error) {
	p := &Pipeline{kind: kind, collection: collection, filter: m.filters[kind], engine: m.engine}
	switch kind {
	case config.KindAccounts:
		p.labelKeys = []string{"accountName"}
		p.mapFn = func(doc source.Document) (model.Record, error) { return m.mapper.Account(doc) }
	case config.KindDonations:
		p.labelKeys = []string{"donorName", "guestFullNameOrOrgName"}
		p.mapFn = func(doc source.Document) (model.Record, error) { return m.mapper.Donation(doc) }
		p.validateFn = func(ctx context.Context, rec model.Record) (refcheck.Result, error) {
			return m.validator.Donation(ctx, rec.(*model.Donation))
		}
	case config.KindTransactions:
		p.labelKeys = []string{"transactionDescription"}
		p.mapFn = func(doc source.Document) (model.Record, error) { return m.mapper.Transaction(doc) }
		p.validateFn = func(ctx context.Context, rec model.Record) (refcheck.Result, error) {
			return m.validator.Transaction(ctx, rec.(*model.Transaction))
		}
	case config.KindExpenses:
		p.labelKeys = []string{"expenseTitle"}
		p.mapFn = func(doc source.Document) (model.Record, error) { return m.mapper.Expense(doc) }
		p.validateFn = func(ctx context.Context, rec model.Record) (refcheck.Result, error) {
			return m.validator.Expense(ctx, rec.(*model.Expense))
		}
	case config.KindUsers:
		p.labelKeys = []string{"email"}
		p.mapFn = func(doc source.Document) (model.Record, error) { return m.mapper.UserProfile(doc) }
		p.deriveFn = func(doc source.Document, rec model.Record) []model.Record {
			return m.fanout.Build(doc, rec.PrimaryKey()).Records()
		}
	default:
		return nil, fmt.Errorf("unknown entity kind '%s'", kind)
	}
	return p, nil
}

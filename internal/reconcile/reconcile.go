// Package reconcile compares a migrated target against its source: row counts
// per kind plus a sampled field-by-field check. It never writes.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"doc-migrator/internal/config"
	"doc-migrator/internal/logging"
	"doc-migrator/internal/model"
	"doc-migrator/internal/source"
	"doc-migrator/internal/target"
	"doc-migrator/internal/transform"

	"github.com/shopspring/decimal"
)

// Field compares one source field with one target column.
type Field struct {
	Name   string
	Source string
	Column string
	// Equal compares the source value with the target value and returns their
	// printable forms.
	Equal func(src, dst any) (string, string, bool)
}

// Check describes the reconciliation of one entity kind.
type Check struct {
	Kind       string
	Collection string
	Table      string
	SampleSize int
	LabelKeys  []string
	Fields     []Field
	// Derived lists tables whose rows reference the sampled record through
	// user_id; their counts are reported per sample.
	Derived []string
}

// FieldCheck is the outcome of one Field on one sample.
type FieldCheck struct {
	Field  string
	Source string
	Target string
	Match  bool
}

// Sample is one sampled source document and its target counterpart.
type Sample struct {
	ID      string
	Label   string
	Exists  bool
	Fields  []FieldCheck
	Derived map[string]int64
}

// Passed reports whether the target row exists and every field matches.
func (s Sample) Passed() bool {
	if !s.Exists {
		return false
	}
	for _, f := range s.Fields {
		if !f.Match {
			return false
		}
	}
	return true
}

// KindReport is the reconciliation of one kind.
type KindReport struct {
	Kind        string
	Collection  string
	Table       string
	SourceCount int64
	TargetCount int64
	CountMatch  bool
	Samples     []Sample
	Err         error
}

// Passed reports whether counts match and every sample passed.
func (k *KindReport) Passed() bool {
	if k.Err != nil || !k.CountMatch {
		return false
	}
	for _, s := range k.Samples {
		if !s.Passed() {
			return false
		}
	}
	return true
}

// Report aggregates every kind checked in one run.
type Report struct {
	Kinds []*KindReport
}

// Passed reports whether every kind passed.
func (r Report) Passed() bool {
	for _, k := range r.Kinds {
		if !k.Passed() {
			return false
		}
	}
	return true
}

// Reporter runs reconciliation checks against a source and a target store.
type Reporter struct {
	source source.Store
	target target.Store
}

// New creates a Reporter.
func New(src source.Store, dst target.Store) *Reporter {
	return &Reporter{source: src, target: dst}
}

// Run executes checks in order. Store errors are recorded on the affected
// kind and do not stop the remaining checks.
func (r *Reporter) Run(ctx context.Context, checks []Check) Report {
	var rep Report
	for _, c := range checks {
		kr := r.run(ctx, c)
		if kr.Err != nil {
			logging.Logf(logging.Error, "Verification of %s failed: %v", c.Kind, kr.Err)
		}
		rep.Kinds = append(rep.Kinds, kr)
	}
	return rep
}

func (r *Reporter) run(ctx context.Context, c Check) *KindReport {
	kr := &KindReport{Kind: c.Kind, Collection: c.Collection, Table: c.Table}

	var err error
	if kr.SourceCount, err = r.source.Count(ctx, c.Collection); err != nil {
		kr.Err = fmt.Errorf("count source '%s': %w", c.Collection, err)
		return kr
	}
	if kr.TargetCount, err = r.target.Count(ctx, c.Table); err != nil {
		kr.Err = fmt.Errorf("count target '%s': %w", c.Table, err)
		return kr
	}
	kr.CountMatch = kr.SourceCount == kr.TargetCount

	size := c.SampleSize
	if size <= 0 {
		size = config.DefaultSampleSize
	}
	docs, err := r.source.Sample(ctx, c.Collection, size)
	if err != nil {
		kr.Err = fmt.Errorf("sample '%s': %w", c.Collection, err)
		return kr
	}
	for _, doc := range docs {
		s, err := r.sample(ctx, c, doc)
		if err != nil {
			kr.Err = err
			return kr
		}
		kr.Samples = append(kr.Samples, s)
	}
	return kr
}

func (r *Reporter) sample(ctx context.Context, c Check, doc source.Document) (Sample, error) {
	s := Sample{ID: transform.ResolveID(doc.ID()), Label: label(doc, c.LabelKeys)}

	columns := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		columns = append(columns, f.Column)
	}
	row, ok, err := r.target.Find(ctx, c.Table, s.ID, columns...)
	if err != nil {
		return s, fmt.Errorf("lookup %s(%s): %w", c.Table, s.ID, err)
	}
	s.Exists = ok
	if !ok {
		return s, nil
	}

	for _, f := range c.Fields {
		src, dst, match := f.Equal(doc.Get(f.Source), row[f.Column])
		s.Fields = append(s.Fields, FieldCheck{Field: f.Name, Source: src, Target: dst, Match: match})
	}
	if len(c.Derived) > 0 {
		s.Derived = make(map[string]int64, len(c.Derived))
		for _, table := range c.Derived {
			n, err := r.target.CountWhere(ctx, table, "user_id", s.ID)
			if err != nil {
				return s, fmt.Errorf("count %s for user %s: %w", table, s.ID, err)
			}
			s.Derived[table] = n
		}
	}
	return s, nil
}

func label(doc source.Document, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(doc.String(k)); v != "" {
			return v
		}
	}
	return doc.Label()
}

// moneyPlaces is the scale of the target's money columns.
const moneyPlaces = 2

// Money compares a source number with a numeric column, both rounded to
// two decimal places.
func Money(name, sourceKey, column string) Field {
	return Field{Name: name, Source: sourceKey, Column: column, Equal: equalMoney}
}

// Text compares a source string with a text column. An empty source value
// matches a NULL column.
func Text(name, sourceKey, column string) Field {
	return Field{Name: name, Source: sourceKey, Column: column, Equal: equalText}
}

func equalMoney(src, dst any) (string, string, bool) {
	want := decimal.NewFromFloat(transform.ParseNumber(src)).Round(moneyPlaces)
	var got decimal.Decimal
	switch v := dst.(type) {
	case decimal.Decimal:
		got = v
	case float64:
		got = decimal.NewFromFloat(v)
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return want.String(), v, false
		}
		got = d
	case nil:
		return want.String(), "NULL", false
	default:
		return want.String(), fmt.Sprint(v), false
	}
	got = got.Round(moneyPlaces)
	return want.String(), got.String(), want.Equal(got)
}

func equalText(src, dst any) (string, string, bool) {
	want := ""
	if src != nil {
		want = fmt.Sprint(src)
	}
	if dst == nil {
		return want, "NULL", want == ""
	}
	got := fmt.Sprint(dst)
	return want, got, want == got
}

// FinanceChecks returns the checks for accounts, donations, transactions and
// expenses.
func FinanceChecks(cols config.CollectionsConfig, sampleSize int) []Check {
	return []Check{
		{
			Kind:       config.KindAccounts,
			Collection: cols.Accounts,
			Table:      model.TableAccounts,
			SampleSize: sampleSize,
			LabelKeys:  []string{"accountName"},
			Fields:     []Field{Money("balance", "currentBalance", "balance")},
		},
		{
			Kind:       config.KindDonations,
			Collection: cols.Donations,
			Table:      model.TableDonations,
			SampleSize: sampleSize,
			LabelKeys:  []string{"donorName", "guestFullNameOrOrgName"},
			Fields:     []Field{Money("amount", "amount", "amount")},
		},
		{
			Kind:       config.KindTransactions,
			Collection: cols.Transactions,
			Table:      model.TableTransactions,
			SampleSize: sampleSize,
			LabelKeys:  []string{"transactionDescription"},
			Fields:     []Field{Money("amount", "transactionAmt", "amount")},
		},
		{
			Kind:       config.KindExpenses,
			Collection: cols.Expenses,
			Table:      model.TableExpenses,
			SampleSize: sampleSize,
			LabelKeys:  []string{"expenseTitle"},
			Fields:     []Field{Money("amount", "expenseAmount", "amount")},
		},
	}
}

// UserChecks returns the user profile check, which also counts each sampled
// user's roles, phone numbers, addresses and links.
func UserChecks(cols config.CollectionsConfig, sampleSize int) []Check {
	return []Check{{
		Kind:       config.KindUsers,
		Collection: cols.Users,
		Table:      model.TableUserProfiles,
		SampleSize: sampleSize,
		LabelKeys:  []string{"email"},
		Fields:     []Field{Text("email", "email", "email")},
		Derived:    []string{model.TableUserRoles, model.TablePhoneNumbers, model.TableAddresses, model.TableLinks},
	}}
}

// Log writes the report the way an operator reads it after a run.
func (r Report) Log() {
	logging.Logf(logging.Info, "=== Verification ===")
	for _, k := range r.Kinds {
		if k.Err != nil {
			logging.Logf(logging.Error, "%s: %v", k.Kind, k.Err)
			continue
		}
		level := logging.Info
		if !k.CountMatch {
			level = logging.Warning
		}
		logging.Logf(level, "%s: source %s=%d, target %s=%d", k.Kind, k.Collection, k.SourceCount, k.Table, k.TargetCount)
		for _, s := range k.Samples {
			if !s.Exists {
				logging.Logf(logging.Warning, "  %s (%s): missing in target", s.Label, s.ID)
				continue
			}
			for _, f := range s.Fields {
				lvl := logging.Info
				if !f.Match {
					lvl = logging.Warning
				}
				logging.Logf(lvl, "  %s (%s): %s source=%s target=%s", s.Label, s.ID, f.Field, f.Source, f.Target)
			}
			if len(s.Derived) > 0 {
				logging.Logf(logging.Info, "  %s (%s): roles=%d phones=%d addresses=%d links=%d", s.Label, s.ID,
					s.Derived[model.TableUserRoles], s.Derived[model.TablePhoneNumbers], s.Derived[model.TableAddresses], s.Derived[model.TableLinks])
			}
		}
	}
	if r.Passed() {
		logging.Logf(logging.Info, "Verification passed")
	} else {
		logging.Logf(logging.Warning, "Verification found differences")
	}
}

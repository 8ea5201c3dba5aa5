package migrate

import (
	"errors"
	"fmt"
	"time"

	"doc-migrator/internal/source"

	"github.com/Knetic/govaluate"
)

// ErrFilter wraps filter evaluation failures.
var ErrFilter = errors.New("filter evaluation failed")

// expressionEvaluator is the part of govaluate the filter relies on.
type expressionEvaluator interface {
	Eval(parameters govaluate.Parameters) (interface{}, error)
}

// newExpressionEvaluatorFunc allows overriding expression compilation in tests.
var newExpressionEvaluatorFunc = func(expr string) (expressionEvaluator, error) {
	return govaluate.NewEvaluableExpression(expr)
}

// Filter selects the source documents of one kind that are migrated, using a
// govaluate boolean expression over the document's top-level fields.
type Filter struct {
	expr string
	eval expressionEvaluator
}

// NewFilter compiles expr. An empty expression yields a nil Filter, which
// matches everything.
func NewFilter(expr string) (*Filter, error) {
	if expr == "" {
		return nil, nil
	}
	eval, err := newExpressionEvaluatorFunc(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression '%s': %w", expr, err)
	}
	return &Filter{expr: expr, eval: eval}, nil
}

// Match evaluates the filter against doc. The expression must yield a bool.
func (f *Filter) Match(doc source.Document) (bool, error) {
	if f == nil {
		return true, nil
	}
	result, err := f.eval.Eval(docParameters(doc))
	if err != nil {
		return false, fmt.Errorf("%w for '%s': %v", ErrFilter, f.expr, err)
	}
	keep, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("%w for '%s': non-boolean result %v (%T)", ErrFilter, f.expr, result, result)
	}
	return keep, nil
}

// docParameters exposes a document to govaluate. Numbers are widened to
// float64, times become RFC3339 strings, ObjectIDs their hex string, and
// missing fields evaluate to nil.
type docParameters source.Document

func (p docParameters) Get(name string) (interface{}, error) {
	v, ok := p[name]
	if !ok {
		return nil, nil
	}
	switch val := v.(type) {
	case int64:
		return float64(val), nil
	case time.Time:
		return val.UTC().Format(time.RFC3339), nil
	case source.Document:
		if oid, ok := val[source.OIDKey].(string); ok {
			return oid, nil
		}
		return nil, nil
	default:
		return val, nil
	}
}

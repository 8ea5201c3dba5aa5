package target

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"doc-migrator/internal/logging"
	"doc-migrator/internal/model"
	"doc-migrator/internal/util"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// pgxPoolNewFunc allows overriding pgxpool.New for testing.
var pgxPoolNewFunc = pgxpool.New

// rollbackTimeout bounds the rollback issued after a failed transaction.
const rollbackTimeout = 5 * time.Second

// PostgresStore is a Store backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates the pool and verifies connectivity with a ping.
func NewPostgresStore(ctx context.Context, connStr string, timeout time.Duration) (*PostgresStore, error) {
	maskedConnStr := util.MaskCredentials(connStr)
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxPoolNewFunc(connectCtx, connStr)
	if err != nil {
		logging.Logf(logging.Error, "PostgresStore failed to create connection pool: %s", maskedConnStr)
		return nil, fmt.Errorf("PostgresStore failed to create connection pool (using %s): %w", maskedConnStr, err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		if errors.Is(err, context.DeadlineExceeded) || connectCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("PostgresStore connection timed out (using %s): %w", maskedConnStr, err)
		}
		return nil, fmt.Errorf("PostgresStore failed to reach database (using %s): %w", maskedConnStr, err)
	}
	logging.Logf(logging.Info, "Connected to PostgreSQL: %s", maskedConnStr)
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Exists(ctx context.Context, table, id string) (bool, error) {
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)", pgx.Identifier{table}.Sanitize())
	if err := s.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("PostgresStore failed to probe %s(%s): %w", table, id, err)
	}
	return exists, nil
}

func (s *PostgresStore) Insert(ctx context.Context, rec model.Record) error {
	query, args := insertSQL(rec)
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		logPgError(rec, err)
		return fmt.Errorf("PostgresStore insert into '%s' failed: %w", rec.Table(), err)
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT count(*) FROM %s", pgx.Identifier{table}.Sanitize())
	if err := s.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("PostgresStore failed to count '%s': %w", table, err)
	}
	return n, nil
}

func (s *PostgresStore) CountWhere(ctx context.Context, table, column string, value any) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT count(*) FROM %s WHERE %s = $1",
		pgx.Identifier{table}.Sanitize(), pgx.Identifier{column}.Sanitize())
	if err := s.pool.QueryRow(ctx, query, value).Scan(&n); err != nil {
		return 0, fmt.Errorf("PostgresStore failed to count '%s' by %s: %w", table, column, err)
	}
	return n, nil
}

func (s *PostgresStore) Find(ctx context.Context, table, id string, columns ...string) (Row, bool, error) {
	rows, err := s.pool.Query(ctx, selectSQL(table, columns), id)
	if err != nil {
		return nil, false, fmt.Errorf("PostgresStore failed to query %s(%s): %w", table, id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, false, fmt.Errorf("PostgresStore failed to read %s(%s): %w", table, id, err)
		}
		return nil, false, nil
	}
	values, err := rows.Values()
	if err != nil {
		return nil, false, fmt.Errorf("PostgresStore failed to scan %s(%s): %w", table, id, err)
	}
	row := make(Row, len(values))
	for i, fd := range rows.FieldDescriptions() {
		row[fd.Name] = normalizeValue(values[i])
	}
	return row, true, rows.Err()
}

// WithTx runs fn in a transaction. Inserts queued through the Tx are sent as
// one pgx.Batch per InsertMany call.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("PostgresStore failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		rbCtx, rbCancel := context.WithTimeout(context.Background(), rollbackTimeout)
		defer rbCancel()
		if rbErr := tx.Rollback(rbCtx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			logging.Logf(logging.Error, "PostgresStore failed to rollback transaction: %v", rbErr)
		} else if rbErr == nil {
			logging.Logf(logging.Debug, "PostgresStore transaction rolled back.")
		}
	}()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("PostgresStore failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
	logging.Logf(logging.Debug, "PostgreSQL pool closed.")
}

// pgTx implements Tx over a pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Insert(ctx context.Context, rec model.Record) error {
	query, args := insertSQL(rec)
	if _, err := t.tx.Exec(ctx, query, args...); err != nil {
		logPgError(rec, err)
		return fmt.Errorf("insert into '%s' failed: %w", rec.Table(), err)
	}
	return nil
}

func (t *pgTx) InsertMany(ctx context.Context, recs []model.Record) error {
	if len(recs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rec := range recs {
		query, args := insertSQL(rec)
		batch.Queue(query, args...)
	}

	br := t.tx.SendBatch(ctx, batch)
	var firstErr error
	for _, rec := range recs {
		if _, err := br.Exec(); err != nil && firstErr == nil {
			logPgError(rec, err)
			firstErr = fmt.Errorf("insert into '%s' (id %s) failed: %w", rec.Table(), rec.PrimaryKey(), err)
		}
	}
	if closeErr := br.Close(); closeErr != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed closing batch results: %w", closeErr)
	}
	return firstErr
}

// insertSQL builds a parameterised INSERT for rec.
func insertSQL(rec model.Record) (string, []any) {
	cols := rec.Columns()
	quoted := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{rec.Table()}.Sanitize(), strings.Join(quoted, ", "), strings.Join(params, ", "))
	return query, rec.Values()
}

// selectSQL builds a primary key lookup. No columns selects every column.
func selectSQL(table string, columns []string) string {
	sel := "*"
	if len(columns) > 0 {
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = pgx.Identifier{c}.Sanitize()
		}
		sel = strings.Join(quoted, ", ")
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", sel, pgx.Identifier{table}.Sanitize())
}

// normalizeValue converts driver values into the types used by model records.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		if val.NaN || val.InfinityModifier != pgtype.Finite {
			f, err := val.Float64Value()
			if err != nil {
				return nil
			}
			return f.Float64
		}
		return decimal.NewFromBigInt(val.Int, val.Exp)
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case time.Time:
		return val.UTC()
	default:
		return val
	}
}

// logPgError logs server-side error detail for a rejected insert.
func logPgError(rec model.Record, err error) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		logging.Logf(logging.Error, "Insert into '%s' (id %s) rejected. PG Error Code: %s, Message: %s, Detail: %s",
			rec.Table(), rec.PrimaryKey(), pgErr.Code, pgErr.Message, pgErr.Detail)
		return
	}
	logging.Logf(logging.Debug, "Insert into '%s' (id %s) failed: %v", rec.Table(), rec.PrimaryKey(), err)
}

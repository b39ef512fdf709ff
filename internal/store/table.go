package store

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/hanpama/graphpress/internal/errs"
)

// Querier is satisfied by both *sql.DB and *sql.Tx. Every table method takes
// one explicitly, so a mutation threads its transaction through each step.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Column binds a GraphQL field name to a SQL column of T.
type Column[T any] struct {
	Field    string
	Name     string
	Ref      func(*T) any // pointer to the struct field, used as scan target
	Writable bool
}

// Table is the storage accessor for one entity.
type Table[T any] struct {
	Name    string
	columns []Column[T]
	byField map[string]Column[T]
}

func NewTable[T any](name string, cols ...Column[T]) *Table[T] {
	t := &Table[T]{Name: name, columns: cols, byField: make(map[string]Column[T], len(cols))}
	for _, c := range cols {
		t.byField[c.Field] = c
	}
	return t
}

// Query filters FindAll. Where keys are field names. A nil Limit returns
// every matching row; a zero Limit returns none.
type Query struct {
	Where  map[string]any
	Limit  *int
	Offset int
}

// Limit is a Query limit of n rows.
func Limit(n int) *int { return &n }

// Value reads a column-backed field from row.
func (t *Table[T]) Value(row *T, field string) (any, bool) {
	c, ok := t.byField[field]
	if !ok || row == nil {
		return nil, false
	}
	return reflect.ValueOf(c.Ref(row)).Elem().Interface(), true
}

// HasField reports whether field is a column of t.
func (t *Table[T]) HasField(field string) bool {
	_, ok := t.byField[field]
	return ok
}

// project maps field names onto columns. An empty projection reads the id.
func (t *Table[T]) project(fields []string) ([]Column[T], error) {
	if len(fields) == 0 {
		return []Column[T]{t.byField["id"]}, nil
	}
	cols := make([]Column[T], 0, len(fields))
	for _, f := range fields {
		c, ok := t.byField[f]
		if !ok {
			return nil, errs.Validationf("%s has no column for field %q", t.Name, f)
		}
		cols = append(cols, c)
	}
	return cols, nil
}

func (t *Table[T]) all() []Column[T] { return t.columns }

func selectList[T any](cols []Column[T]) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = pq.QuoteIdentifier(c.Name)
	}
	return strings.Join(names, ", ")
}

func (t *Table[T]) quoted() string { return pq.QuoteIdentifier(t.Name) }

func (t *Table[T]) queryRows(ctx context.Context, q Querier, cols []Column[T], query string, args ...any) ([]*T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		row := new(T)
		dest := make([]any, len(cols))
		for i, c := range cols {
			dest[i] = c.Ref(row)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.Name, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// FindByID returns the row with id projected to fields, or nil when absent.
func (t *Table[T]) FindByID(ctx context.Context, q Querier, id int64, fields []string) (*T, error) {
	cols, err := t.project(fields)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", selectList(cols), t.quoted(), pq.QuoteIdentifier("id"))
	rows, err := t.queryRows(ctx, q, cols, query, id)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// FindByIDs reads every row whose id is in ids with a single IN query. Rows
// come back in storage order; callers re-key them.
func (t *Table[T]) FindByIDs(ctx context.Context, q Querier, ids []int64, fields []string) ([]*T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cols, err := t.project(fields)
	if err != nil {
		return nil, err
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
		selectList(cols), t.quoted(), pq.QuoteIdentifier("id"), strings.Join(placeholders, ", "))
	return t.queryRows(ctx, q, cols, query, args...)
}

// FindAll lists rows matching qry ordered by id.
func (t *Table[T]) FindAll(ctx context.Context, q Querier, qry Query, fields []string) ([]*T, error) {
	if qry.Limit != nil && *qry.Limit < 0 {
		return nil, errs.Validationf("limit must not be negative, got %d", *qry.Limit)
	}
	if qry.Offset < 0 {
		return nil, errs.Validationf("offset must not be negative, got %d", qry.Offset)
	}
	cols, err := t.project(fields)
	if err != nil {
		return nil, err
	}
	var (
		b    strings.Builder
		args []any
	)
	fmt.Fprintf(&b, "SELECT %s FROM %s", selectList(cols), t.quoted())

	keys := make([]string, 0, len(qry.Where))
	for k := range qry.Where {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		c, ok := t.byField[k]
		if !ok {
			return nil, errs.Validationf("%s has no column for field %q", t.Name, k)
		}
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		args = append(args, qry.Where[k])
		fmt.Fprintf(&b, "%s = $%d", pq.QuoteIdentifier(c.Name), len(args))
	}
	fmt.Fprintf(&b, " ORDER BY %s", pq.QuoteIdentifier("id"))
	if qry.Limit != nil {
		args = append(args, *qry.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if qry.Offset > 0 {
		args = append(args, qry.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return t.queryRows(ctx, q, cols, b.String(), args...)
}

// writable splits values into sorted column names and matching args.
func (t *Table[T]) writable(values map[string]any) ([]string, []any, error) {
	fields := make([]string, 0, len(values))
	for f := range values {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	names := make([]string, len(fields))
	args := make([]any, len(fields))
	for i, f := range fields {
		c, ok := t.byField[f]
		if !ok || !c.Writable {
			return nil, nil, errs.Validationf("%s.%s is not writable", t.Name, f)
		}
		names[i] = pq.QuoteIdentifier(c.Name)
		args[i] = values[f]
	}
	return names, args, nil
}

// Create inserts values and returns the stored row.
func (t *Table[T]) Create(ctx context.Context, q Querier, values map[string]any) (*T, error) {
	names, args, err := t.writable(values)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, errs.Validationf("%s: nothing to insert", t.Name)
	}
	placeholders := make([]string, len(names))
	for i := range names {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		t.quoted(), strings.Join(names, ", "), strings.Join(placeholders, ", "), selectList(t.all()))
	rows, err := t.queryRows(ctx, q, t.all(), query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert into %s returned no row", t.Name)
	}
	return rows[0], nil
}

// Update writes values to the row with id. It returns nil when no row matched.
func (t *Table[T]) Update(ctx context.Context, q Querier, id int64, values map[string]any) (*T, error) {
	names, args, err := t.writable(values)
	if err != nil {
		return nil, err
	}
	sets := make([]string, 0, len(names)+1)
	for i, n := range names {
		sets = append(sets, fmt.Sprintf("%s = $%d", n, i+1))
	}
	sets = append(sets, pq.QuoteIdentifier("updated_at")+" = NOW()")
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d RETURNING %s",
		t.quoted(), strings.Join(sets, ", "), pq.QuoteIdentifier("id"), len(args), selectList(t.all()))
	rows, err := t.queryRows(ctx, q, t.all(), query, args...)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Destroy deletes the row with id and reports whether one existed.
func (t *Table[T]) Destroy(ctx context.Context, q Querier, id int64) (bool, error) {
	res, err := q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = $1", t.quoted(), pq.QuoteIdentifier("id")), id)
	if err != nil {
		return false, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

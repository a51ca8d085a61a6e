package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Collection is the typed view over one of the store's tables. T must be a
// struct whose JSON tags agree with the collection's schema.
type Collection[T any] struct {
	s   *Store
	sch Schema
}

func NewCollection[T any](s *Store, sch Schema) *Collection[T] {
	return &Collection[T]{s: s, sch: sch}
}

// Query options. Filters and ordering only work on indexed fields; anything
// else is encrypted and has to be filtered in memory after materialization.

type cond struct {
	expr string
	args []any
}

type queryOpts struct {
	conds   []cond
	orderBy string
	desc    bool
	limit   int
}

type Option func(*queryOpts)

func WhereEq(field string, value any) Option {
	return func(q *queryOpts) {
		q.conds = append(q.conds, cond{expr: field + " = ?", args: []any{value}})
	}
}

// WhereBelow keeps rows with field strictly below value (NULLs excluded).
func WhereBelow(field string, value any) Option {
	return func(q *queryOpts) {
		q.conds = append(q.conds, cond{expr: field + " < ?", args: []any{value}})
	}
}

// WhereAtLeast keeps rows with field >= value.
func WhereAtLeast(field string, value any) Option {
	return func(q *queryOpts) {
		q.conds = append(q.conds, cond{expr: field + " >= ?", args: []any{value}})
	}
}

// WhereIn keeps rows whose field matches any of values. An empty value set
// matches nothing.
func WhereIn(field string, values ...any) Option {
	return func(q *queryOpts) {
		if len(values) == 0 {
			q.conds = append(q.conds, cond{expr: field + " IN (NULL)"})
			return
		}
		q.conds = append(q.conds, cond{expr: field + " IN (" + placeholders(len(values)) + ")", args: values})
	}
}

// WhereNull keeps rows where the indexed field is absent.
func WhereNull(field string) Option {
	return func(q *queryOpts) {
		q.conds = append(q.conds, cond{expr: field + " IS NULL"})
	}
}

// WhereNotNull keeps rows where the indexed field is present.
func WhereNotNull(field string) Option {
	return func(q *queryOpts) {
		q.conds = append(q.conds, cond{expr: field + " IS NOT NULL"})
	}
}

func OrderBy(field string, desc bool) Option {
	return func(q *queryOpts) {
		q.orderBy = field
		q.desc = desc
	}
}

func Limit(n int) Option {
	return func(q *queryOpts) {
		q.limit = n
	}
}

func (c *Collection[T]) validateFields(q *queryOpts) error {
	check := func(expr string) error {
		field := strings.Fields(expr)[0]
		if !c.sch.indexed(field) {
			return fmt.Errorf("store: %s.%s is not an indexed field", c.sch.Name, field)
		}
		return nil
	}
	for _, cnd := range q.conds {
		if err := check(cnd.expr); err != nil {
			return err
		}
	}
	if q.orderBy != "" {
		if err := check(q.orderBy); err != nil {
			return err
		}
	}
	return nil
}

// Get fetches one record by primary key.
func (c *Collection[T]) Get(ctx context.Context, key int64) (T, error) {
	var zero T
	cols := strings.Join(c.sch.columns(), ", ")
	row := c.s.db.QueryRowContext(ctx,
		"SELECT "+cols+", payload FROM "+c.sch.Name+" WHERE "+c.sch.Key+" = ?", key)

	rec, err := c.scanRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("store: get %s[%d]: %w", c.sch.Name, key, err)
	}
	return rec, nil
}

// List queries the collection by its indexed fields.
func (c *Collection[T]) List(ctx context.Context, opts ...Option) ([]T, error) {
	q := queryOpts{limit: -1}
	for _, opt := range opts {
		opt(&q)
	}
	if err := c.validateFields(&q); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(c.sch.columns(), ", "))
	sb.WriteString(", payload FROM ")
	sb.WriteString(c.sch.Name)

	var args []any
	if len(q.conds) > 0 {
		exprs := make([]string, len(q.conds))
		for i, cnd := range q.conds {
			exprs[i] = cnd.expr
			args = append(args, cnd.args...)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(exprs, " AND "))
	}
	if q.orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(q.orderBy)
		if q.desc {
			sb.WriteString(" DESC")
		}
	}
	if q.limit >= 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.limit)
	}

	rows, err := c.s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", c.sch.Name, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		rec, err := c.scanRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("store: list %s: %w", c.sch.Name, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list %s: %w", c.sch.Name, err)
	}
	return out, nil
}

func (c *Collection[T]) scanRow(scan func(...any) error) (T, error) {
	var zero T
	var key int64
	idxVals := make([]any, len(c.sch.Indexes))
	var payload []byte

	dest := make([]any, 0, len(idxVals)+2)
	dest = append(dest, &key)
	for i := range idxVals {
		dest = append(dest, &idxVals[i])
	}
	dest = append(dest, &payload)

	if err := scan(dest...); err != nil {
		return zero, err
	}
	return mergeRecord[T](c.sch, c.s.ciph, key, idxVals, payload)
}

// Insert adds a new record and returns its key. For an AutoKey collection a
// zero key is assigned by the store.
func (c *Collection[T]) Insert(ctx context.Context, v T) (int64, error) {
	key, idxVals, payload, err := splitRecord(c.sch, c.s.ciph, v)
	if err != nil {
		return 0, err
	}
	if c.sch.AutoKey && key == 0 {
		cols := make([]string, 0, len(c.sch.Indexes)+1)
		for _, idx := range c.sch.Indexes {
			cols = append(cols, idx.Name)
		}
		cols = append(cols, "payload")
		res, err := c.s.db.ExecContext(ctx,
			"INSERT INTO "+c.sch.Name+" ("+strings.Join(cols, ", ")+") VALUES ("+placeholders(len(cols))+")",
			append(append([]any{}, idxVals...), payload)...)
		if err != nil {
			return 0, fmt.Errorf("store: insert %s: %w", c.sch.Name, err)
		}
		assigned, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("store: insert %s: %w", c.sch.Name, err)
		}
		return assigned, nil
	}

	args := append([]any{key}, idxVals...)
	args = append(args, payload)
	_, err = c.s.db.ExecContext(ctx, c.insertSQL("INSERT"), args...)
	if err != nil {
		return 0, fmt.Errorf("store: insert %s[%d]: %w", c.sch.Name, key, err)
	}
	return key, nil
}

// Put upserts a record by its key.
func (c *Collection[T]) Put(ctx context.Context, v T) error {
	key, idxVals, payload, err := splitRecord(c.sch, c.s.ciph, v)
	if err != nil {
		return err
	}
	args := append([]any{key}, idxVals...)
	args = append(args, payload)
	if _, err := c.s.db.ExecContext(ctx, c.insertSQL("INSERT OR REPLACE"), args...); err != nil {
		return fmt.Errorf("store: put %s[%d]: %w", c.sch.Name, key, err)
	}
	return nil
}

// BulkInsert adds records in a single transaction.
func (c *Collection[T]) BulkInsert(ctx context.Context, vs []T) error {
	return c.bulkExec(ctx, vs, c.insertSQL("INSERT"))
}

// BulkPut upserts records in a single transaction.
func (c *Collection[T]) BulkPut(ctx context.Context, vs []T) error {
	return c.bulkExec(ctx, vs, c.insertSQL("INSERT OR REPLACE"))
}

func (c *Collection[T]) bulkExec(ctx context.Context, vs []T, query string) error {
	if len(vs) == 0 {
		return nil
	}
	tx, err := c.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin %s write: %w", c.sch.Name, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("store: prepare %s write: %w", c.sch.Name, err)
	}
	defer stmt.Close()

	for _, v := range vs {
		key, idxVals, payload, err := splitRecord(c.sch, c.s.ciph, v)
		if err != nil {
			return err
		}
		args := append([]any{key}, idxVals...)
		args = append(args, payload)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("store: write %s[%d]: %w", c.sch.Name, key, err)
		}
	}
	return tx.Commit()
}

// Patch applies a partial update to one record. Changed fields that are
// indexed update their columns; the rest merge into the decrypted payload.
// Fields not named in changes are left exactly as stored.
func (c *Collection[T]) Patch(ctx context.Context, key int64, changes map[string]any) error {
	if len(changes) == 0 {
		return nil
	}

	tx, err := c.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin %s patch: %w", c.sch.Name, err)
	}
	defer tx.Rollback()

	var payload []byte
	idxVals := make([]any, len(c.sch.Indexes))
	dest := make([]any, 0, len(idxVals)+1)
	for i := range idxVals {
		dest = append(dest, &idxVals[i])
	}
	dest = append(dest, &payload)

	idxCols := make([]string, len(c.sch.Indexes))
	for i, idx := range c.sch.Indexes {
		idxCols[i] = idx.Name
	}
	selectCols := strings.Join(append(append([]string{}, idxCols...), "payload"), ", ")
	err = tx.QueryRowContext(ctx,
		"SELECT "+selectCols+" FROM "+c.sch.Name+" WHERE "+c.sch.Key+" = ?", key).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: patch %s[%d]: %w", c.sch.Name, key, err)
	}

	fields := recordFields{}
	if len(payload) > 0 {
		if raw, ok := c.s.ciph.Decrypt(payload); ok {
			if err := json.Unmarshal(raw, &fields); err != nil {
				fields = recordFields{}
			}
		}
	}

	for name, value := range changes {
		if name == c.sch.Key {
			return fmt.Errorf("store: patch %s: primary key is immutable", c.sch.Name)
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("store: patch %s.%s: %w", c.sch.Name, name, err)
		}
		if idx, ok := c.sch.index(name); ok {
			for i := range c.sch.Indexes {
				if c.sch.Indexes[i].Name == name {
					idxVals[i], err = columnValue(idx, raw)
					if err != nil {
						return fmt.Errorf("store: patch %s.%s: %w", c.sch.Name, name, err)
					}
				}
			}
			continue
		}
		fields[name] = raw
	}

	newPayload := []byte(nil)
	if len(fields) > 0 {
		newPayload, err = c.s.ciph.Encrypt(fields)
		if err != nil {
			return fmt.Errorf("store: seal %s payload: %w", c.sch.Name, err)
		}
	}

	sets := make([]string, 0, len(idxCols)+1)
	args := make([]any, 0, len(idxVals)+2)
	for i, col := range idxCols {
		sets = append(sets, col+" = ?")
		args = append(args, idxVals[i])
	}
	sets = append(sets, "payload = ?")
	args = append(args, newPayload, key)

	if _, err := tx.ExecContext(ctx,
		"UPDATE "+c.sch.Name+" SET "+strings.Join(sets, ", ")+" WHERE "+c.sch.Key+" = ?", args...); err != nil {
		return fmt.Errorf("store: patch %s[%d]: %w", c.sch.Name, key, err)
	}
	return tx.Commit()
}

// Delete removes one record by key. Deleting a missing key is a no-op.
func (c *Collection[T]) Delete(ctx context.Context, key int64) error {
	if _, err := c.s.db.ExecContext(ctx,
		"DELETE FROM "+c.sch.Name+" WHERE "+c.sch.Key+" = ?", key); err != nil {
		return fmt.Errorf("store: delete %s[%d]: %w", c.sch.Name, key, err)
	}
	return nil
}

// DeleteBelow removes rows whose indexed field is strictly below value and
// returns the number removed.
func (c *Collection[T]) DeleteBelow(ctx context.Context, field string, value any) (int64, error) {
	if !c.sch.indexed(field) {
		return 0, fmt.Errorf("store: %s.%s is not an indexed field", c.sch.Name, field)
	}
	res, err := c.s.db.ExecContext(ctx,
		"DELETE FROM "+c.sch.Name+" WHERE "+field+" < ?", value)
	if err != nil {
		return 0, fmt.Errorf("store: purge %s: %w", c.sch.Name, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Reconcile makes the collection match vs exactly: rows whose key is absent
// from vs are deleted, every record in vs is upserted, all in one
// transaction.
func (c *Collection[T]) Reconcile(ctx context.Context, vs []T) error {
	tx, err := c.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin %s reconcile: %w", c.sch.Name, err)
	}
	defer tx.Rollback()

	type split struct {
		key     int64
		idxVals []any
		payload []byte
	}
	splits := make([]split, 0, len(vs))
	keep := make([]string, 0, len(vs))
	for _, v := range vs {
		key, idxVals, payload, err := splitRecord(c.sch, c.s.ciph, v)
		if err != nil {
			return err
		}
		splits = append(splits, split{key, idxVals, payload})
		keep = append(keep, fmt.Sprintf("%d", key))
	}

	deleteSQL := "DELETE FROM " + c.sch.Name
	if len(keep) > 0 {
		deleteSQL += " WHERE " + c.sch.Key + " NOT IN (" + strings.Join(keep, ", ") + ")"
	}
	if _, err := tx.ExecContext(ctx, deleteSQL); err != nil {
		return fmt.Errorf("store: reconcile %s: %w", c.sch.Name, err)
	}

	stmt, err := tx.PrepareContext(ctx, c.insertSQL("INSERT OR REPLACE"))
	if err != nil {
		return fmt.Errorf("store: reconcile %s: %w", c.sch.Name, err)
	}
	defer stmt.Close()
	for _, sp := range splits {
		args := append([]any{sp.key}, sp.idxVals...)
		args = append(args, sp.payload)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("store: reconcile %s[%d]: %w", c.sch.Name, sp.key, err)
		}
	}
	return tx.Commit()
}

// ReplaceAll clears the collection and bulk-inserts vs in one transaction.
func (c *Collection[T]) ReplaceAll(ctx context.Context, vs []T) error {
	tx, err := c.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin %s replace: %w", c.sch.Name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+c.sch.Name); err != nil {
		return fmt.Errorf("store: replace %s: %w", c.sch.Name, err)
	}
	stmt, err := tx.PrepareContext(ctx, c.insertSQL("INSERT"))
	if err != nil {
		return fmt.Errorf("store: replace %s: %w", c.sch.Name, err)
	}
	defer stmt.Close()
	for _, v := range vs {
		key, idxVals, payload, err := splitRecord(c.sch, c.s.ciph, v)
		if err != nil {
			return err
		}
		args := append([]any{key}, idxVals...)
		args = append(args, payload)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("store: replace %s[%d]: %w", c.sch.Name, key, err)
		}
	}
	return tx.Commit()
}

// Clear empties the collection.
func (c *Collection[T]) Clear(ctx context.Context) error {
	if _, err := c.s.db.ExecContext(ctx, "DELETE FROM "+c.sch.Name); err != nil {
		return fmt.Errorf("store: clear %s: %w", c.sch.Name, err)
	}
	return nil
}

// Count returns the number of records in the collection.
func (c *Collection[T]) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+c.sch.Name).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count %s: %w", c.sch.Name, err)
	}
	return n, nil
}

// MaxText returns the maximum value of a text index column; ok is false when
// the collection is empty or the column is all NULL.
func (c *Collection[T]) MaxText(ctx context.Context, field string) (string, bool, error) {
	if !c.sch.indexed(field) {
		return "", false, fmt.Errorf("store: %s.%s is not an indexed field", c.sch.Name, field)
	}
	var v sql.NullString
	if err := c.s.db.QueryRowContext(ctx,
		"SELECT MAX("+field+") FROM "+c.sch.Name).Scan(&v); err != nil {
		return "", false, fmt.Errorf("store: max %s.%s: %w", c.sch.Name, field, err)
	}
	return v.String, v.Valid, nil
}

func (c *Collection[T]) insertSQL(verb string) string {
	cols := append(c.sch.columns(), "payload")
	return verb + " INTO " + c.sch.Name +
		" (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders(len(cols)) + ")"
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

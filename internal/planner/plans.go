// Package planner builds parameterized SQL statements for executing
// mutation plans and lookups against a MySQL-compatible store. All
// functions are pure: they never touch the database.
package planner

import (
	"errors"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"

	"crudapi/internal/sqlutil"
)

// ErrEmptySet indicates a statement that would have no columns or values.
var ErrEmptySet = errors.New("empty column set")

// SQLQuery represents a planned SQL statement with bound args.
type SQLQuery struct {
	SQL  string
	Args []any
}

// PlanInsert builds an INSERT for one row. Column order follows the
// values map's sorted keys so plans are deterministic.
func PlanInsert(table string, values map[string]any) (SQLQuery, error) {
	if len(values) == 0 {
		return SQLQuery{}, fmt.Errorf("%w: insert into %s", ErrEmptySet, table)
	}
	columns := sortedKeys(values)
	args := make([]any, 0, len(columns))
	quoted := make([]string, 0, len(columns))
	for _, col := range columns {
		quoted = append(quoted, sqlutil.QuoteIdentifier(col))
		args = append(args, values[col])
	}

	query, boundArgs, err := sq.Insert(sqlutil.QuoteIdentifier(table)).
		Columns(quoted...).
		Values(args...).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: boundArgs}, nil
}

// PlanUpdate builds an UPDATE setting the given columns on rows where
// keyColumn equals keyValue.
func PlanUpdate(table string, set map[string]any, keyColumn string, keyValue any) (SQLQuery, error) {
	if len(set) == 0 {
		return SQLQuery{}, fmt.Errorf("%w: update %s", ErrEmptySet, table)
	}
	builder := sq.Update(sqlutil.QuoteIdentifier(table)).
		PlaceholderFormat(sq.Question)
	for _, col := range sortedKeys(set) {
		builder = builder.Set(sqlutil.QuoteIdentifier(col), set[col])
	}
	query, args, err := builder.
		Where(sq.Eq{sqlutil.QuoteIdentifier(keyColumn): keyValue}).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanDelete builds a DELETE for rows where keyColumn equals keyValue.
func PlanDelete(table string, keyColumn string, keyValue any) (SQLQuery, error) {
	query, args, err := sq.Delete(sqlutil.QuoteIdentifier(table)).
		Where(sq.Eq{sqlutil.QuoteIdentifier(keyColumn): keyValue}).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanDeleteWhereIn builds the DELETE executing a deleteMany id set.
func PlanDeleteWhereIn(table string, column string, values []any) (SQLQuery, error) {
	if len(values) == 0 {
		return SQLQuery{}, fmt.Errorf("%w: delete from %s", ErrEmptySet, table)
	}
	query, args, err := sq.Delete(sqlutil.QuoteIdentifier(table)).
		Where(sq.Eq{sqlutil.QuoteIdentifier(column): values}).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanSelectByKey builds a single-row lookup by key column.
func PlanSelectByKey(table string, columns []string, keyColumn string, keyValue any) (SQLQuery, error) {
	if len(columns) == 0 {
		return SQLQuery{}, fmt.Errorf("%w: select from %s", ErrEmptySet, table)
	}
	query, args, err := sq.Select(sqlutil.QuoteAll(columns)...).
		From(sqlutil.QuoteIdentifier(table)).
		Where(sq.Eq{sqlutil.QuoteIdentifier(keyColumn): keyValue}).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanSelectPage builds a keyed-order listing with limit/offset.
func PlanSelectPage(table string, columns []string, orderColumn string, limit, offset uint64) (SQLQuery, error) {
	if len(columns) == 0 {
		return SQLQuery{}, fmt.Errorf("%w: select from %s", ErrEmptySet, table)
	}
	builder := sq.Select(sqlutil.QuoteAll(columns)...).
		From(sqlutil.QuoteIdentifier(table)).
		OrderBy(sqlutil.QuoteIdentifier(orderColumn) + " ASC").
		PlaceholderFormat(sq.Question)
	if limit > 0 {
		builder = builder.Limit(limit)
	}
	if offset > 0 {
		builder = builder.Offset(offset)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanAssignForeignKey builds the UPDATE wiring a connect entry: set the
// foreign-key column on rows addressed by whereColumn = whereValue.
func PlanAssignForeignKey(table, fkColumn string, fkValue any, whereColumn string, whereValue any) (SQLQuery, error) {
	return PlanUpdate(table, map[string]any{fkColumn: fkValue}, whereColumn, whereValue)
}

// PlanClearForeignKey builds the UPDATE executing a disconnect entry:
// null out the foreign-key column on the addressed rows.
func PlanClearForeignKey(table, fkColumn string, whereColumn string, whereValue any) (SQLQuery, error) {
	return PlanUpdate(table, map[string]any{fkColumn: nil}, whereColumn, whereValue)
}

// PlanIdentityLookup builds the SELECT resolving a unique-field connect
// reference to its identity value.
func PlanIdentityLookup(table, identityColumn, uniqueColumn string, uniqueValue any) (SQLQuery, error) {
	return PlanSelectByKey(table, []string{identityColumn}, uniqueColumn, uniqueValue)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

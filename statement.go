package rowtable

import (
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
)

// SortKeyCondition narrows a query to a range of sort keys. A nil
// *SortKeyCondition in caller code means "no restriction"; the zero value
// is Equals("") and matches only the empty sort key.
type SortKeyCondition struct {
	op  sortKeyOp
	arg string
	lo  string
	hi  string
}

type sortKeyOp int

const (
	sortKeyEquals sortKeyOp = iota
	sortKeyLessThan
	sortKeyLessThanOrEqual
	sortKeyGreaterThan
	sortKeyGreaterThanOrEqual
	sortKeyBetween
	sortKeyBeginsWith
)

func Equals(v string) SortKeyCondition             { return SortKeyCondition{op: sortKeyEquals, arg: v} }
func LessThan(v string) SortKeyCondition            { return SortKeyCondition{op: sortKeyLessThan, arg: v} }
func LessThanOrEqual(v string) SortKeyCondition     { return SortKeyCondition{op: sortKeyLessThanOrEqual, arg: v} }
func GreaterThan(v string) SortKeyCondition         { return SortKeyCondition{op: sortKeyGreaterThan, arg: v} }
func GreaterThanOrEqual(v string) SortKeyCondition  { return SortKeyCondition{op: sortKeyGreaterThanOrEqual, arg: v} }
func Between(lo, hi string) SortKeyCondition        { return SortKeyCondition{op: sortKeyBetween, lo: lo, hi: hi} }
func BeginsWith(prefix string) SortKeyCondition      { return SortKeyCondition{op: sortKeyBeginsWith, arg: prefix} }

// Matches reports whether sk satisfies the condition, per the reference
// store's strict-both-ends Between semantics (see DESIGN.md open question
// #3).
func (c SortKeyCondition) Matches(sk string) bool {
	switch c.op {
	case sortKeyEquals:
		return sk == c.arg
	case sortKeyLessThan:
		return sk < c.arg
	case sortKeyLessThanOrEqual:
		return sk <= c.arg
	case sortKeyGreaterThan:
		return sk > c.arg
	case sortKeyGreaterThanOrEqual:
		return sk >= c.arg
	case sortKeyBetween:
		return sk > c.lo && sk < c.hi
	case sortKeyBeginsWith:
		return strings.HasPrefix(sk, c.arg)
	default:
		return false
	}
}

// keyCondition builds the aws-sdk-go-v2 expression key condition for a real
// Query call, mirroring sort_key_strategies.go's per-operator constructors.
func (c SortKeyCondition) keyCondition(sortKeyAttr string) expression.KeyConditionBuilder {
	name := expression.Key(sortKeyAttr)
	switch c.op {
	case sortKeyEquals:
		return expression.KeyEqual(name, expression.Value(c.arg))
	case sortKeyLessThan:
		return expression.KeyLessThan(name, expression.Value(c.arg))
	case sortKeyLessThanOrEqual:
		return expression.KeyLessThanEqual(name, expression.Value(c.arg))
	case sortKeyGreaterThan:
		return expression.KeyGreaterThan(name, expression.Value(c.arg))
	case sortKeyGreaterThanOrEqual:
		return expression.KeyGreaterThanEqual(name, expression.Value(c.arg))
	case sortKeyBetween:
		return expression.KeyBetween(name, expression.Value(c.lo), expression.Value(c.hi))
	case sortKeyBeginsWith:
		return expression.KeyBeginsWith(name, c.arg)
	default:
		return expression.KeyConditionBuilder{}
	}
}

func renderKeyClause(schema KeySchema, key Key) (string, error) {
	pk, err := render(S(key.PartitionKey))
	if err != nil {
		return "", err
	}
	sk, err := render(S(key.SortKey))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s=%s AND %s=%s", schema.PartitionKeyAttr, pk, schema.SortKeyAttr, sk), nil
}

// renderInsertStatement renders: INSERT INTO "<table>" value <flatMap>
func renderInsertStatement(tableName string, item map[string]AttrValue) (string, error) {
	literal, err := render(M(item))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`INSERT INTO "%s" value %s`, tableName, literal), nil
}

// renderUpdateStatement renders:
// UPDATE "<table>" <clauses> WHERE <pk>='<pkv>' AND <sk>='<skv>' AND rowVersion=<v>
func renderUpdateStatement(tableName string, schema KeySchema, key Key, rowVersion uint64, diffs []AttrDiff) (string, error) {
	clauses := make([]string, 0, len(diffs))
	for _, d := range diffs {
		switch d.Kind {
		case DiffUpdate:
			clauses = append(clauses, fmt.Sprintf(`SET "%s"=%s`, d.Path, d.Rendered))
		case DiffRemove:
			clauses = append(clauses, fmt.Sprintf(`REMOVE "%s"`, d.Path))
		case DiffListAppend:
			clauses = append(clauses, fmt.Sprintf(`SET "%s"=list_append(%s,%s)`, d.Path, d.Path, d.Rendered))
		}
	}
	whereClause, err := renderKeyClause(schema, key)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`UPDATE "%s" %s WHERE %s AND rowVersion=%d`, tableName, strings.Join(clauses, " "), whereClause, rowVersion), nil
}

// renderDeleteByKeyStatement renders: DELETE FROM "<table>" WHERE <pk>='<pkv>' AND <sk>='<skv>'
func renderDeleteByKeyStatement(tableName string, schema KeySchema, key Key) (string, error) {
	whereClause, err := renderKeyClause(schema, key)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`DELETE FROM "%s" WHERE %s`, tableName, whereClause), nil
}

// renderDeleteByItemStatement renders the key-scoped delete plus the version
// guard.
func renderDeleteByItemStatement(tableName string, schema KeySchema, key Key, rowVersion uint64) (string, error) {
	whereClause, err := renderKeyClause(schema, key)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`DELETE FROM "%s" WHERE %s AND rowVersion=%d`, tableName, whereClause, rowVersion), nil
}

// buildInsertCondition builds the single-item PutItem condition expression:
// attribute_not_exists(#pk) AND attribute_not_exists(#sk).
func buildInsertCondition(schema KeySchema) (expression.Expression, error) {
	cond := expression.AttributeNotExists(expression.Name(schema.PartitionKeyAttr)).
		And(expression.AttributeNotExists(expression.Name(schema.SortKeyAttr)))
	return expression.NewBuilder().WithCondition(cond).Build()
}

// buildVersionCondition builds the shared update/delete condition:
// #rowversion = :versionnumber AND #createdate = :creationdate.
func buildVersionCondition(rowVersion uint64, createDate time.Time) (expression.Expression, error) {
	cond := expression.Name(RowVersionAttr).Equal(expression.Value(rowVersion)).
		And(expression.Name(CreateDateAttr).Equal(expression.Value(formatInstant(createDate))))
	return expression.NewBuilder().WithCondition(cond).Build()
}

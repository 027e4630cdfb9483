package repository

import (
	"fmt"
	"strings"
)

// Spec is a composable filter rendered as a GORM condition with "?" bind
// variables. Column names are emitted verbatim.
type Spec interface {
	ToSQL() (sql string, args []any)
}

type comparisonSpec struct {
	column string
	op     string
	value  any
}

func Eq(column string, value any) Spec    { return &comparisonSpec{column, "=", value} }
func NotEq(column string, value any) Spec { return &comparisonSpec{column, "!=", value} }
func Gt(column string, value any) Spec    { return &comparisonSpec{column, ">", value} }
func Gte(column string, value any) Spec   { return &comparisonSpec{column, ">=", value} }
func Lt(column string, value any) Spec    { return &comparisonSpec{column, "<", value} }
func Lte(column string, value any) Spec   { return &comparisonSpec{column, "<=", value} }

func (s *comparisonSpec) ToSQL() (string, []any) {
	return fmt.Sprintf("%s %s ?", s.column, s.op), []any{s.value}
}

type inSpec struct {
	column string
	values []any
	negate bool
}

func In(column string, values ...any) Spec {
	return &inSpec{column: column, values: values}
}

func NotIn(column string, values ...any) Spec {
	return &inSpec{column: column, values: values, negate: true}
}

func (s *inSpec) ToSQL() (string, []any) {
	if len(s.values) == 0 {
		if s.negate {
			return "TRUE", nil
		}
		return "FALSE", nil
	}
	op := "IN"
	if s.negate {
		op = "NOT IN"
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(s.values)), ", ")
	return fmt.Sprintf("%s %s (%s)", s.column, op, placeholders), s.values
}

type likeSpec struct {
	column  string
	pattern string
	ilike   bool
}

// Like matches pattern with SQLite's LIKE, which already ignores case for
// ASCII letters and only for them.
func Like(column, pattern string) Spec {
	return &likeSpec{column: column, pattern: pattern}
}

// ILike lower-cases the column with SQLite's LOWER and the pattern with
// strings.ToLower. LOWER folds ASCII only, so stored non-ASCII letters match
// only when they are already lower-case.
func ILike(column, pattern string) Spec {
	return &likeSpec{column: column, pattern: strings.ToLower(pattern), ilike: true}
}

func (s *likeSpec) ToSQL() (string, []any) {
	if s.ilike {
		return fmt.Sprintf("LOWER(%s) LIKE ?", s.column), []any{s.pattern}
	}
	return fmt.Sprintf("%s LIKE ?", s.column), []any{s.pattern}
}

type betweenSpec struct {
	column string
	from   any
	to     any
}

func Between(column string, from, to any) Spec {
	return &betweenSpec{column: column, from: from, to: to}
}

func (s *betweenSpec) ToSQL() (string, []any) {
	return s.column + " BETWEEN ? AND ?", []any{s.from, s.to}
}

type nullSpec struct {
	column string
	not    bool
}

func IsNull(column string) Spec    { return &nullSpec{column: column} }
func IsNotNull(column string) Spec { return &nullSpec{column: column, not: true} }

func (s *nullSpec) ToSQL() (string, []any) {
	if s.not {
		return s.column + " IS NOT NULL", nil
	}
	return s.column + " IS NULL", nil
}

type andSpec struct{ specs []Spec }
type orSpec struct{ specs []Spec }
type notSpec struct{ spec Spec }

func And(specs ...Spec) Spec { return &andSpec{specs: specs} }
func Or(specs ...Spec) Spec  { return &orSpec{specs: specs} }
func Not(spec Spec) Spec     { return &notSpec{spec: spec} }

func (s *andSpec) ToSQL() (string, []any) { return joinSpecs(s.specs, " AND ", "TRUE") }
func (s *orSpec) ToSQL() (string, []any)  { return joinSpecs(s.specs, " OR ", "FALSE") }

func (s *notSpec) ToSQL() (string, []any) {
	sql, args := s.spec.ToSQL()
	return "NOT (" + sql + ")", args
}

func joinSpecs(specs []Spec, sep, empty string) (string, []any) {
	if len(specs) == 0 {
		return empty, nil
	}
	if len(specs) == 1 {
		return specs[0].ToSQL()
	}
	parts := make([]string, 0, len(specs))
	var allArgs []any
	for _, spec := range specs {
		sql, args := spec.ToSQL()
		parts = append(parts, "("+sql+")")
		allArgs = append(allArgs, args...)
	}
	return strings.Join(parts, sep), allArgs
}

type rawSpec struct {
	sql  string
	args []any
}

// Raw passes a condition through unchanged; it must use "?" bind variables.
func Raw(sql string, args ...any) Spec {
	return &rawSpec{sql: sql, args: args}
}

func (s *rawSpec) ToSQL() (string, []any) { return s.sql, s.args }

func combineSpecs(specs []Spec) Spec {
	switch len(specs) {
	case 0:
		return nil
	case 1:
		return specs[0]
	default:
		return And(specs...)
	}
}

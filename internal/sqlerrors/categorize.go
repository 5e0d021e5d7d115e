// Package sqlerrors implements the closed error taxonomy the recovery
// engine uses to pick a fix strategy for a failed execution (spec.md §4.4).
package sqlerrors

import "strings"

// Category is one of the closed set of SQL failure classes.
type Category string

const (
	SyntaxError      Category = "SYNTAX_ERROR"
	MissingColumn    Category = "MISSING_COLUMN"
	MissingTable     Category = "MISSING_TABLE"
	DataTypeMismatch Category = "DATA_TYPE_MISMATCH"
	AmbiguousColumn  Category = "AMBIGUOUS_COLUMN"
	AggregationError Category = "AGGREGATION_ERROR"
	PermissionError  Category = "PERMISSION_ERROR"
	UnknownError     Category = "UNKNOWN_ERROR"
)

// Recoverable reports whether the recovery engine should attempt a fix for
// this category. Only PermissionError is terminal.
func (c Category) Recoverable() bool {
	return c != PermissionError
}

const (
	confidenceDirect    = 0.9
	confidenceHeuristic = 0.6
	confidenceUnknown   = 0.3
)

type rule struct {
	category  Category
	triggers  []string
	heuristic string // single keyword fallback checked at lower confidence
}

// table is evaluated top-to-bottom; the first matching trigger wins, which
// gives ties a deterministic resolution by table order (spec.md §4.4).
var table = []rule{
	{
		category: SyntaxError,
		triggers: []string{"syntax error", "unexpected token", "parse error", "expected", "but got"},
	},
	{
		category:  MissingColumn,
		triggers:  []string{"does not exist", "no such column", "unknown column", "not found"},
		heuristic: "column",
	},
	{
		category:  MissingTable,
		triggers:  []string{"does not exist", "no such table"},
		heuristic: "table",
	},
	{
		category:  DataTypeMismatch,
		triggers:  []string{"type mismatch", "cannot cast", "invalid input syntax for type", "operator does not exist"},
		heuristic: "type",
	},
	{
		category: AmbiguousColumn,
		triggers: []string{"is ambiguous"},
	},
	{
		category:  AggregationError,
		triggers:  []string{"must appear in the group by", "aggregate functions are not allowed", "aggregate function calls cannot be nested"},
		heuristic: "group",
	},
	{
		category: PermissionError,
		triggers: []string{"permission denied", "access denied", "insufficient privileges", "not authorized"},
	},
}

// Categorize classifies a raw executor failure message into one of the
// closed categories with a confidence score. It is a pure function: the
// same input always yields the same output.
func Categorize(engineMessage string) (Category, float64) {
	msg := strings.ToLower(engineMessage)

	// Direct trigger matches take priority over heuristic fallbacks,
	// table order breaking ties within each pass.
	for _, r := range table {
		if !shapeGuard(r.category, msg) {
			continue
		}
		for _, trigger := range r.triggers {
			if strings.Contains(msg, trigger) {
				return r.category, confidenceDirect
			}
		}
	}

	for _, r := range table {
		if r.heuristic == "" || !shapeGuard(r.category, msg) {
			continue
		}
		if strings.Contains(msg, r.heuristic) {
			return r.category, confidenceHeuristic
		}
	}

	return UnknownError, confidenceUnknown
}

// shapeGuard disambiguates categories that share the generic "does not
// exist" trigger.
func shapeGuard(category Category, msg string) bool {
	switch category {
	case MissingColumn:
		return containsColumnShape(msg)
	case MissingTable:
		return containsTableShape(msg)
	default:
		return true
	}
}

// containsColumnShape disambiguates the shared "does not exist" trigger
// between MISSING_COLUMN and MISSING_TABLE by requiring the word "column"
// (or "field") to appear alongside it.
func containsColumnShape(msg string) bool {
	return strings.Contains(msg, "column") || strings.Contains(msg, "field") ||
		strings.Contains(msg, "no such column") || strings.Contains(msg, "unknown column")
}

func containsTableShape(msg string) bool {
	return strings.Contains(msg, "table") || strings.Contains(msg, "relation") ||
		strings.Contains(msg, "no such table")
}

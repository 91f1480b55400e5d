package sqlgen

import (
	"fmt"
	"strings"
)

// Expr is a renderable SQL fragment.
type Expr interface {
	SQL() string
}

// Ident is a quoted identifier in a dialect.
type Ident struct {
	Dialect Dialect
	Name    string
}

// SQL renders the quoted identifier.
func (i Ident) SQL() string { return i.Dialect.QuoteIdent(i.Name) }

// Lit is a single-quoted string literal.
type Lit string

// SQL renders the literal, doubling embedded quotes.
func (l Lit) SQL() string {
	return "'" + strings.ReplaceAll(string(l), "'", "''") + "'"
}

// Raw is SQL rendered verbatim.
type Raw string

func (r Raw) SQL() string { return string(r) }

// Placeholder is a bind parameter. Dialect.Rebind turns it into $n.
type Placeholder struct{}

func (Placeholder) SQL() string { return "?" }

// Eq represents an equality comparison (=).
type Eq struct {
	Left  Expr
	Right Expr
}

func (e Eq) SQL() string { return e.Left.SQL() + " = " + e.Right.SQL() }

// AndExpr joins expressions with AND.
type AndExpr struct {
	Exprs []Expr
}

// SQL renders the conjunction; an empty conjunction is TRUE.
func (a AndExpr) SQL() string {
	switch len(a.Exprs) {
	case 0:
		return "1 = 1"
	case 1:
		return a.Exprs[0].SQL()
	}
	parts := make([]string, len(a.Exprs))
	for i, e := range a.Exprs {
		parts[i] = e.SQL()
	}
	return strings.Join(parts, " AND ")
}

// And builds an AndExpr.
func And(exprs ...Expr) AndExpr { return AndExpr{Exprs: exprs} }

// Sqlf formats SQL with automatic dedenting and blank line removal.
// The SQL shape is visible in the format string.
func Sqlf(format string, args ...any) string {
	s := fmt.Sprintf(format, args...)
	lines := strings.Split(s, "\n")

	minIndent := -1
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		if indent := len(line) - len(trimmed); minIndent < 0 || indent < minIndent {
			minIndent = indent
		}
	}

	var result []string
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(line) >= minIndent {
			result = append(result, line[minIndent:])
		} else {
			result = append(result, strings.TrimLeft(line, " \t"))
		}
	}
	return strings.Join(result, "\n")
}

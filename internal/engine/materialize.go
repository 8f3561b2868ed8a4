package engine

import (
	"sort"
	"strings"
)

// operator is a FILTER comparison operator.
type operator string

const (
	opGT       operator = ">"
	opLT       operator = "<"
	opEQ       operator = "="
	opEQStrict operator = "=="
	opNE       operator = "!="
	opNEStrict operator = "!=="
	opGE       operator = ">="
	opLE       operator = "<="
	opContains operator = "contains"
)

var operators = map[string]operator{
	">":        opGT,
	"<":        opLT,
	"=":        opEQ,
	"==":       opEQStrict,
	"!=":       opNE,
	"!==":      opNEStrict,
	">=":       opGE,
	"<=":       opLE,
	"contains": opContains,
}

func lookupOperator(tok string) (operator, bool) {
	op, ok := operators[strings.ToLower(tok)]
	return op, ok
}

// filterRows returns a new view holding references to the rows that satisfy
// the predicate. References, never copies: a later edit through the
// filtered view must reach the master collection.
func filterRows(src View, column string, op operator, literal string) View {
	rows := make([]*Row, 0, len(src.Rows))
	for _, r := range src.Rows {
		if matchCell(r.Get(column), op, literal) {
			rows = append(rows, r)
		}
	}
	return View{Columns: src.Columns, Rows: rows, Projected: src.Projected}
}

// matchCell evaluates one cell against the filter literal.
//
// The missing marker is special on both sides: a missing literal turns
// equality into a presence test (= matches missing cells, != matches
// present ones), and a missing cell is excluded from every other
// comparison. When both sides coerce to numbers the comparison is numeric;
// otherwise contains is a case-insensitive substring test, =/!= compare
// text case-insensitively, and the relational operators compare
// case-sensitive lexical order.
func matchCell(cell Value, op operator, literal string) bool {
	if literal == MissingMarker {
		switch op {
		case opEQ, opEQStrict:
			return cell.IsMissing()
		case opNE, opNEStrict:
			return !cell.IsMissing()
		default:
			return false
		}
	}
	if cell.IsMissing() {
		return false
	}
	if op == opContains {
		return strings.Contains(strings.ToLower(cell.String()), strings.ToLower(literal))
	}
	cn, cok := cell.Numeric()
	ln, lok := Coerce(literal).Numeric()
	if cok && lok {
		return compareNumbers(cn, op, ln)
	}
	return compareText(cell.String(), op, literal)
}

func compareNumbers(a float64, op operator, b float64) bool {
	switch op {
	case opGT:
		return a > b
	case opLT:
		return a < b
	case opGE:
		return a >= b
	case opLE:
		return a <= b
	case opEQ, opEQStrict:
		return a == b
	case opNE, opNEStrict:
		return a != b
	}
	return false
}

func compareText(a string, op operator, b string) bool {
	switch op {
	case opEQ, opEQStrict:
		return strings.EqualFold(a, b)
	case opNE, opNEStrict:
		return !strings.EqualFold(a, b)
	case opGT:
		return a > b
	case opLT:
		return a < b
	case opGE:
		return a >= b
	case opLE:
		return a <= b
	}
	return false
}

// sortRows returns a new view with the row references reordered. The sort
// is stable, missing values go last regardless of direction, and present
// values compare numerically when both coerce, lexically otherwise.
func sortRows(src View, column string, desc bool) View {
	rows := make([]*Row, len(src.Rows))
	copy(rows, src.Rows)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Get(column), rows[j].Get(column)
		switch {
		case a.IsMissing():
			return false
		case b.IsMissing():
			return true
		}
		if desc {
			a, b = b, a
		}
		return valueLess(a, b)
	})
	return View{Columns: src.Columns, Rows: rows, Projected: src.Projected}
}

func valueLess(a, b Value) bool {
	an, aok := a.Numeric()
	bn, bok := b.Numeric()
	if aok && bok {
		return an < bn
	}
	return a.String() < b.String()
}

// projectRows returns a view of detached copies restricted to the named
// columns. This is the one deliberate break in reference sharing: edits
// against a projected view stay in the projection.
func projectRows(src View, columns []string) View {
	rows := make([]*Row, len(src.Rows))
	for i, r := range src.Rows {
		rows[i] = r.project(columns)
	}
	return View{Columns: columns, Rows: rows, Projected: true}
}

// trimColumn strips leading and trailing whitespace from the column's text
// cells in place on the shared rows, so the cleanup is visible in the
// master collection too. Numbers and missing cells pass through.
func trimColumn(src View, column string) {
	for _, r := range src.Rows {
		if v := r.Get(column); v.Kind() == KindText {
			r.Set(column, Coerce(strings.TrimSpace(v.String())))
		}
	}
}

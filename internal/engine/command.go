package engine

import (
	"fmt"
	"log/slog"
	"strings"
)

// Command verbs. Verbs are matched case-insensitively.
const (
	VerbFilter = "FILTER"
	VerbSort   = "SORT"
	VerbSelect = "SELECT"
	VerbStats  = "STATS"
	VerbTrim   = "TRIM"
	VerbExport = "EXPORT"
)

// outcome carries the single result of one command: a new view, an
// aggregate, or an export payload.
type outcome struct {
	view   *View
	stats  *Stats
	export *Export
}

// interpreter executes the textual command language against a source view.
// In lenient mode an unknown verb returns the source unchanged and logs a
// distinct warning; strict mode turns it into a parse error.
type interpreter struct {
	strict bool
	log    *slog.Logger
}

func newInterpreter(strict bool, log *slog.Logger) *interpreter {
	return &interpreter{strict: strict, log: log}
}

// execute parses and runs one command. name is the dataset name, used only
// by EXPORT. The source view is never mutated except by TRIM, which strips
// cells in place on the shared rows.
func (it *interpreter) execute(text, name string, src View) (outcome, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return outcome{}, fmt.Errorf("%w: empty command", ErrBadCommand)
	}
	verb := strings.ToUpper(tokens[0])
	args := tokens[1:]

	switch verb {
	case VerbFilter:
		if len(args) < 3 {
			return outcome{}, fmt.Errorf("%w: FILTER needs column, operator and value", ErrBadCommand)
		}
		op, ok := lookupOperator(args[1])
		if !ok {
			return outcome{}, fmt.Errorf("%w: unsupported operator %q", ErrBadCommand, args[1])
		}
		v := filterRows(src, args[0], op, args[2])
		return outcome{view: &v}, nil

	case VerbSort:
		if len(args) < 1 {
			return outcome{}, fmt.Errorf("%w: SORT needs a column", ErrBadCommand)
		}
		desc := false
		if len(args) > 1 {
			switch strings.ToUpper(args[1]) {
			case "ASC":
			case "DESC":
				desc = true
			default:
				return outcome{}, fmt.Errorf("%w: sort direction must be ASC or DESC", ErrBadCommand)
			}
		}
		v := sortRows(src, args[0], desc)
		return outcome{view: &v}, nil

	case VerbSelect:
		cols := splitColumns(args)
		if len(cols) == 0 {
			return outcome{}, fmt.Errorf("%w: SELECT needs at least one column", ErrBadCommand)
		}
		v := projectRows(src, cols)
		return outcome{view: &v}, nil

	case VerbStats:
		if len(args) < 1 {
			return outcome{}, fmt.Errorf("%w: STATS needs a column", ErrBadCommand)
		}
		return outcome{stats: aggregate(src, args[0])}, nil

	case VerbTrim:
		if len(args) < 1 {
			return outcome{}, fmt.Errorf("%w: TRIM needs a column", ErrBadCommand)
		}
		trimColumn(src, args[0])
		return outcome{view: &src}, nil

	case VerbExport:
		if len(args) < 1 {
			return outcome{}, fmt.Errorf("%w: EXPORT needs a format", ErrBadCommand)
		}
		exp, err := exportView(src, name, strings.ToLower(args[0]))
		if err != nil {
			return outcome{}, err
		}
		return outcome{export: exp}, nil

	default:
		if it.strict {
			return outcome{}, fmt.Errorf("%w: %q", ErrUnknownCommand, tokens[0])
		}
		// Documented fallback: the view passes through unchanged, but the
		// miss is logged and counted so it cannot hide as a successful
		// no-change result.
		it.log.Warn("unknown command verb, view unchanged", "verb", tokens[0])
		unknownCommands.Inc()
		return outcome{view: &src}, nil
	}
}

// tokenize splits command text on whitespace. Double quotes group a span
// into one token and are stripped, so column names and filter literals may
// contain spaces.
func tokenize(s string) []string {
	var tokens []string
	var b strings.Builder
	inQuote := false
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
		case !inQuote && (r == ' ' || r == '\t' || r == '\n' || r == '\r'):
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// splitColumns joins the argument tokens with commas and splits on commas,
// so "a,b,c", "a, b, c", and "a b c" all parse to the same list.
func splitColumns(args []string) []string {
	joined := strings.Join(args, ",")
	var cols []string
	for _, c := range strings.Split(joined, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

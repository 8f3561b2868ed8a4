package engine

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Export formats.
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatSQL      = "sql"
	FormatMarkdown = "md"
)

// Export is a serialized rendering of the current view, ready for the host
// to hand to the user as a download.
type Export struct {
	Format   string `json:"format"`
	MIME     string `json:"mime"`
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// exportView serializes the view's visible columns in order. Identifiers
// are engine bookkeeping and never appear in exports; snapshots carry them
// instead. The dataset name feeds both the SQL table name and the download
// filename.
func exportView(v View, name, format string) (*Export, error) {
	exp := &Export{Format: format, Filename: exportFilename(name, format)}
	switch format {
	case FormatJSON:
		exp.MIME, exp.Content = "application/json", exportJSON(v)
	case FormatCSV:
		exp.MIME, exp.Content = "text/csv", exportCSV(v)
	case FormatSQL:
		exp.MIME, exp.Content = "application/sql", exportSQL(v, name)
	case FormatMarkdown:
		exp.MIME, exp.Content = "text/markdown", exportMarkdown(v)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return exp, nil
}

// exportFilename names the download after the dataset, timestamped so
// repeated exports do not collide in the user's download directory.
func exportFilename(name, format string) string {
	return fmt.Sprintf("%s_%s.%s", safeName(name), time.Now().Format("20060102_150405"), format)
}

// exportJSON writes a pretty-printed array of objects. Keys are emitted in
// view column order, which encoding/json's map marshaling would not
// preserve, so the object layout is assembled here and only scalars go
// through the encoder.
func exportJSON(v View) string {
	var b bytes.Buffer
	b.WriteString("[")
	for i, r := range v.Rows {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n  {")
		for j, c := range v.Columns {
			if j > 0 {
				b.WriteString(",")
			}
			key, _ := json.Marshal(c)
			val, _ := json.Marshal(r.Get(c))
			b.WriteString("\n    ")
			b.Write(key)
			b.WriteString(": ")
			b.Write(val)
		}
		b.WriteString("\n  }")
	}
	if len(v.Rows) > 0 {
		b.WriteString("\n")
	}
	b.WriteString("]")
	return b.String()
}

func exportCSV(v View) string {
	var b bytes.Buffer
	w := csv.NewWriter(&b)
	w.Write(v.Columns)
	record := make([]string, len(v.Columns))
	for _, r := range v.Rows {
		for i, c := range v.Columns {
			record[i] = r.Get(c).String()
		}
		w.Write(record)
	}
	w.Flush()
	return b.String()
}

// exportSQL writes one INSERT statement per row. Text is single-quoted with
// embedded quotes doubled, numbers go bare, and missing cells become NULL.
func exportSQL(v View, name string) string {
	table := sqlIdentifier(name)
	var b strings.Builder
	cols := make([]string, len(v.Columns))
	for i, c := range v.Columns {
		cols[i] = sqlIdentifier(c)
	}
	colList := strings.Join(cols, ", ")
	for _, r := range v.Rows {
		b.WriteString("INSERT INTO ")
		b.WriteString(table)
		b.WriteString(" (")
		b.WriteString(colList)
		b.WriteString(") VALUES (")
		for i, c := range v.Columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(sqlLiteral(r.Get(c)))
		}
		b.WriteString(");\n")
	}
	return b.String()
}

func sqlLiteral(v Value) string {
	switch v.Kind() {
	case KindMissing:
		return "NULL"
	case KindNumber:
		return v.String()
	default:
		return "'" + strings.ReplaceAll(v.String(), "'", "''") + "'"
	}
}

// sqlIdentifier derives a plain SQL identifier from a dataset or column
// name: the safe base with an underscore prepended to a leading digit.
func sqlIdentifier(name string) string {
	out := safeName(name)
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

// safeName reduces a dataset or column name to [A-Za-z0-9_]: the file
// extension goes and every other rune becomes an underscore. SQL
// identifiers and download filenames both build on it.
func safeName(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "dataset"
	}
	return b.String()
}

// exportMarkdown writes a pipe table with header and divider rows. Pipe
// characters inside cells are escaped so they cannot break the table.
func exportMarkdown(v View) string {
	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for _, c := range cells {
			b.WriteString(" ")
			b.WriteString(strings.ReplaceAll(c, "|", `\|`))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}
	writeRow(v.Columns)
	divider := make([]string, len(v.Columns))
	for i := range divider {
		divider[i] = "---"
	}
	writeRow(divider)
	cells := make([]string, len(v.Columns))
	for _, r := range v.Rows {
		for i, c := range v.Columns {
			cells[i] = r.Get(c).String()
		}
		writeRow(cells)
	}
	return b.String()
}

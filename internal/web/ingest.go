package web

// ingest.go decodes uploaded bytes into engine rows.
//
// CSV is the primary format: the first non-empty record is the header, every
// later record becomes a row, and each cell goes through the engine's
// coercion so numbers arrive typed and missing markers arrive missing. Cell
// text keeps its surrounding whitespace; the TRIM command exists to clean it
// afterwards, revealing padded markers as missing in the process.
//
// JSON arrays of objects are accepted too. Column order follows first
// appearance across the objects, which a plain map decode would lose, so the
// objects are walked token by token.

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/griddle/griddle/internal/engine"
)

// decodeRows turns an uploaded payload into column order plus rows.
func decodeRows(name string, data []byte) ([]string, []*engine.Row, error) {
	if isJSONUpload(name, data) {
		return parseJSONRows(data)
	}
	return parseCSVRows(data)
}

// isJSONUpload decides the payload format from the filename extension,
// falling back to a content sniff for extensionless uploads.
func isJSONUpload(name string, data []byte) bool {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".json") {
		return true
	}
	if strings.HasSuffix(lower, ".csv") {
		return false
	}
	trimmed := bytes.TrimLeft(stripBOM(data), " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

// parseCSVRows decodes a CSV payload. Ragged records are tolerated: short
// rows leave the trailing columns missing, long rows drop the unnamed
// extras.
func parseCSVRows(data []byte) ([]string, []*engine.Row, error) {
	data = sanitizeUTF8(stripBOM(data))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}

	// First non-empty record is the header
	start := 0
	for start < len(records) && isEmptyRecord(records[start]) {
		start++
	}
	if start == len(records) {
		return nil, nil, errors.New("no header row found")
	}

	columns := headerColumns(records[start])
	rows := make([]*engine.Row, 0, len(records)-start-1)
	for _, rec := range records[start+1:] {
		if isEmptyRecord(rec) {
			continue
		}
		cells := make(map[string]engine.Value, len(columns))
		for i, col := range columns {
			if i < len(rec) {
				cells[col] = engine.Coerce(rec[i])
			}
		}
		rows = append(rows, engine.NewRow(cells))
	}
	return columns, rows, nil
}

// headerColumns cleans a header record into usable column names: trimmed,
// never empty, and deduplicated with a numeric suffix.
func headerColumns(record []string) []string {
	columns := make([]string, 0, len(record))
	seen := make(map[string]int, len(record))
	for i, h := range record {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		}
		seen[name]++
		columns = append(columns, name)
	}
	return columns
}

func isEmptyRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// parseJSONRows decodes a JSON array of flat objects, preserving the order
// in which keys first appear as the column order.
func parseJSONRows(data []byte) ([]string, []*engine.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(stripBOM(data)))

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("parse json: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, nil, errors.New("expected a JSON array of objects")
	}

	var columns []string
	seen := make(map[string]bool)
	var rows []*engine.Row

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("parse json: %w", err)
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '{' {
			return nil, nil, errors.New("array elements must be objects")
		}

		cells := make(map[string]engine.Value)
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, nil, fmt.Errorf("parse json: %w", err)
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, nil, errors.New("malformed object key")
			}

			var raw interface{}
			if err := dec.Decode(&raw); err != nil {
				return nil, nil, fmt.Errorf("parse json value for %q: %w", key, err)
			}
			if !seen[key] {
				seen[key] = true
				columns = append(columns, key)
			}
			cells[key] = engine.FromAny(raw)
		}
		if _, err := dec.Token(); err != nil { // closing brace
			return nil, nil, fmt.Errorf("parse json: %w", err)
		}
		rows = append(rows, engine.NewRow(cells))
	}
	if _, err := dec.Token(); err != nil { // closing bracket
		return nil, nil, fmt.Errorf("parse json: %w", err)
	}
	return columns, rows, nil
}

// stripBOM removes a leading UTF-8 byte order mark, a common artifact of
// Windows-exported files.
func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with the replacement
// character so the rest of the pipeline can assume valid text.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

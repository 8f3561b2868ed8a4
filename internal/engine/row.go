package engine

// Row is a single record: an identifier assigned once at ingest plus
// mutable cells keyed by column name. Rows are shared by reference between
// the master collection and the current view, so assigning a cell through
// either is visible in both. Column ordering lives in the owning
// collection, not the row.
type Row struct {
	ID    string           `json:"id,omitempty"`
	Cells map[string]Value `json:"cells"`
}

// NewRow returns an unidentified row over the given cells. The identity
// assigner stamps it during load.
func NewRow(cells map[string]Value) *Row {
	if cells == nil {
		cells = make(map[string]Value)
	}
	return &Row{Cells: cells}
}

// Get returns the cell value for a column, Missing when the column is
// absent.
func (r *Row) Get(column string) Value {
	if v, ok := r.Cells[column]; ok {
		return v
	}
	return Missing
}

// Set assigns a cell value in place. This is the only mutation a row
// supports; replacing the row object would break reference sharing.
func (r *Row) Set(column string, v Value) {
	if r.Cells == nil {
		r.Cells = make(map[string]Value)
	}
	r.Cells[column] = v
}

// project returns a detached copy restricted to the named columns. The
// identifier is preserved for traceability, but edits to the copy do not
// reach the original.
func (r *Row) project(columns []string) *Row {
	cells := make(map[string]Value, len(columns))
	for _, c := range columns {
		cells[c] = r.Get(c)
	}
	return &Row{ID: r.ID, Cells: cells}
}

// clone returns a detached copy carrying every cell. Payloads leaving the
// worker goroutine are built from clones so their consumers can read and
// encode them while the worker keeps mutating the shared originals.
func (r *Row) clone() *Row {
	cells := make(map[string]Value, len(r.Cells))
	for c, v := range r.Cells {
		cells[c] = v
	}
	return &Row{ID: r.ID, Cells: cells}
}

func cloneRows(rows []*Row) []*Row {
	out := make([]*Row, len(rows))
	for i, r := range rows {
		out[i] = r.clone()
	}
	return out
}

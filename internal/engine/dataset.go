package engine

// View is an ordered window over the dataset produced by the last command.
// Inside the engine, rows are shared references into the master collection,
// except after a projection, which detaches them (Projected reports that
// divergence). Views carried by responses are always detached clones.
type View struct {
	Columns   []string `json:"columns"`
	Rows      []*Row   `json:"rows"`
	Projected bool     `json:"projected,omitempty"`
}

// dataset owns the master row collection and the current view. The master
// slice holds insertion order, the arena maps identifiers to the shared row
// objects, and the view holds references into the same objects. All access
// happens on the engine goroutine, so none of it is locked.
type dataset struct {
	name    string
	columns []string
	byID    map[string]*Row
	master  []*Row
	view    View
}

// newDataset builds a dataset from identified rows and resets the view to
// mirror the master collection.
func newDataset(name string, columns []string, rows []*Row) *dataset {
	d := &dataset{
		name:    name,
		columns: columns,
		byID:    make(map[string]*Row, len(rows)),
		master:  rows,
	}
	for _, r := range rows {
		d.byID[r.ID] = r
	}
	d.resetView()
	return d
}

// mirror returns a fresh view over every master row in insertion order.
func (d *dataset) mirror() View {
	rows := make([]*Row, len(d.master))
	copy(rows, d.master)
	return View{Columns: d.columns, Rows: rows}
}

func (d *dataset) resetView() {
	d.view = d.mirror()
}

// rowAt resolves a view index to its row, nil when out of range.
func (d *dataset) rowAt(idx int) *Row {
	if idx < 0 || idx >= len(d.view.Rows) {
		return nil
	}
	return d.view.Rows[idx]
}

// removeByID drops a row from the arena, the master collection, and the
// current view. Identifier match, not position: the view and master orders
// may have diverged. Reports whether the row was live.
func (d *dataset) removeByID(id string) bool {
	if _, ok := d.byID[id]; !ok {
		return false
	}
	delete(d.byID, id)
	d.master = removeRow(d.master, id)
	d.view.Rows = removeRow(d.view.Rows, id)
	return true
}

// insertAt restores a row into the master collection at a clamped index and
// appends it to the current view. Position is best effort; identity is
// exact.
func (d *dataset) insertAt(r *Row, idx int) {
	if _, ok := d.byID[r.ID]; ok {
		return
	}
	if idx < 0 {
		idx = 0
	}
	if idx > len(d.master) {
		idx = len(d.master)
	}
	d.master = append(d.master, nil)
	copy(d.master[idx+1:], d.master[idx:])
	d.master[idx] = r
	d.byID[r.ID] = r
	d.view.Rows = append(d.view.Rows, r)
}

// masterIndex returns the row's current position in the master collection,
// -1 when absent.
func (d *dataset) masterIndex(id string) int {
	for i, r := range d.master {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func removeRow(rows []*Row, id string) []*Row {
	out := rows[:0]
	for _, r := range rows {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

package engine

// normalizeInput canonicalizes a value arriving from an edit request the
// same way ingest does: textual numbers become numbers and the missing
// forms become Missing, so edited cells behave like loaded ones.
func normalizeInput(v Value) Value {
	if v.Kind() == KindText {
		return Coerce(v.String())
	}
	return v
}

// editCell resolves a view index to the shared row, captures the old value,
// and assigns the new one in place. In-place assignment on the shared
// object is the whole propagation mechanism; the master collection sees the
// edit with no further step. Out-of-range indexes and columns outside the
// view are no-ops. The returned action is nil when the master collection
// was not touched, which includes edits against a projected view: those
// land on the detached copy only.
func (d *dataset) editCell(idx int, column string, v Value) *cellEditAction {
	r := d.rowAt(idx)
	if r == nil || !viewHasColumn(d.view, column) {
		return nil
	}
	v = normalizeInput(v)
	old := r.Get(column)
	r.Set(column, v)
	if d.view.Projected {
		return nil
	}
	return &cellEditAction{RowID: r.ID, Column: column, Old: old, New: v}
}

// deleteAt removes the rows at the given view indexes from both the view
// and the master collection, matching by identifier since the two orders
// may have diverged. All indexes resolve against the view as it stood when
// the request arrived, so they are collected before the first removal
// shifts anything. Each removed row is captured together with its master
// position at the moment of removal so undo can put it back. Out-of-range
// indexes, duplicate indexes, and identifiers that are already gone are
// skipped without recording anything.
func (d *dataset) deleteAt(indexes []int) []rowDeleteItem {
	seen := make(map[string]bool, len(indexes))
	targets := make([]*Row, 0, len(indexes))
	for _, idx := range indexes {
		r := d.rowAt(idx)
		if r == nil || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		targets = append(targets, r)
	}
	var items []rowDeleteItem
	for _, r := range targets {
		pos := d.masterIndex(r.ID)
		if pos < 0 {
			continue
		}
		// Capture the arena object, not the view row: a projected view
		// holds detached copies, and undo must restore the real row.
		captured := d.byID[r.ID]
		d.removeByID(r.ID)
		items = append(items, rowDeleteItem{RowID: captured.ID, Row: captured, MasterIndex: pos})
	}
	return items
}

func viewHasColumn(v View, column string) bool {
	for _, c := range v.Columns {
		if c == column {
			return true
		}
	}
	return false
}

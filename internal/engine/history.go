package engine

// action is one reversible mutation record. Actions carry the minimum
// needed to run in both directions; they never snapshot unrelated state.
type action interface {
	undo(d *dataset)
	redo(d *dataset)
}

// cellEditAction records a single cell assignment.
type cellEditAction struct {
	RowID  string
	Column string
	Old    Value
	New    Value
}

func (a *cellEditAction) undo(d *dataset) {
	if r, ok := d.byID[a.RowID]; ok {
		r.Set(a.Column, a.Old)
	}
}

func (a *cellEditAction) redo(d *dataset) {
	if r, ok := d.byID[a.RowID]; ok {
		r.Set(a.Column, a.New)
	}
}

// rowDeleteItem captures one removed row: the exact object, not a copy, so
// undo restores the very row that was deleted.
type rowDeleteItem struct {
	RowID       string
	Row         *Row
	MasterIndex int
}

// rowDeleteAction records a single row deletion.
type rowDeleteAction struct {
	rowDeleteItem
}

func (a *rowDeleteAction) undo(d *dataset) {
	d.insertAt(a.Row, a.MasterIndex)
}

func (a *rowDeleteAction) redo(d *dataset) {
	d.removeByID(a.RowID)
}

// rowsDeleteAction records a batch deletion as one undoable step.
type rowsDeleteAction struct {
	Items []rowDeleteItem
}

func (a *rowsDeleteAction) undo(d *dataset) {
	// Reverse order keeps the captured master positions meaningful as the
	// collection grows back.
	for i := len(a.Items) - 1; i >= 0; i-- {
		d.insertAt(a.Items[i].Row, a.Items[i].MasterIndex)
	}
}

func (a *rowsDeleteAction) redo(d *dataset) {
	for _, it := range a.Items {
		d.removeByID(it.RowID)
	}
}

// history is a bounded linear action log with a cursor. The cursor counts
// applied entries: undo steps it back, redo replays forward, and recording
// while undone truncates the redo tail. No branching.
type history struct {
	limit   int
	entries []action
	cursor  int
}

func newHistory(limit int) *history {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &history{limit: limit}
}

// record appends an action as the new head of the log. Anything past the
// cursor is dropped first; at capacity the oldest entry is evicted so the
// log never exceeds its bound.
func (h *history) record(a action) {
	h.entries = append(h.entries[:h.cursor], a)
	h.cursor++
	if len(h.entries) > h.limit {
		h.entries = h.entries[1:]
		h.cursor--
	}
	historyDepth.Set(float64(len(h.entries)))
}

// undo applies the inverse of the action before the cursor. Reports whether
// anything was undone.
func (h *history) undo(d *dataset) bool {
	if h.cursor == 0 {
		return false
	}
	h.cursor--
	h.entries[h.cursor].undo(d)
	return true
}

// redo reapplies the action at the cursor. Reports whether anything was
// redone.
func (h *history) redo(d *dataset) bool {
	if h.cursor >= len(h.entries) {
		return false
	}
	h.entries[h.cursor].redo(d)
	h.cursor++
	return true
}

func (h *history) canUndo() bool { return h.cursor > 0 }
func (h *history) canRedo() bool { return h.cursor < len(h.entries) }

// clear empties the log. Runs on every ingestion; history never survives a
// dataset swap.
func (h *history) clear() {
	h.entries = nil
	h.cursor = 0
	historyDepth.Set(0)
}

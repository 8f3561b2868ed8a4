package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Defaults for Options fields left zero.
const (
	DefaultQueueSize    = 64
	DefaultEventBuffer  = 8
	DefaultHistoryLimit = 50
)

// Options configures an Engine.
type Options struct {
	// QueueSize bounds the request channel. Senders block when it fills.
	QueueSize int
	// EventBuffer bounds the persist-signal channel. Signals beyond it are
	// dropped, never blocked on.
	EventBuffer int
	// HistoryLimit caps the undo log.
	HistoryLimit int
	// StrictCommands turns unknown command verbs into parse errors instead
	// of the lenient logged pass-through.
	StrictCommands bool
	// Logger receives engine logs. Defaults to slog.Default.
	Logger *slog.Logger
}

// Engine owns the dataset and history on a single goroutine. Requests are
// queued on a buffered channel and processed strictly in arrival order to
// completion; there is no internal parallelism and no cancellation of an
// in-flight operation. Because the worker goroutine is the only one that
// touches the collections, reference sharing between master and view needs
// no locks.
type Engine struct {
	requests  chan envelope
	events    chan Event
	closeCh   chan struct{}
	closeOnce sync.Once
	doneCh    chan struct{}
	log       *slog.Logger

	// Worker-owned state. Only run and its callees touch these.
	ids    *identityAssigner
	ds     *dataset
	hist   *history
	interp *interpreter
}

type envelope struct {
	req   Request
	reply chan []Response
}

// New builds an Engine. Call Start before submitting requests.
func New(opts Options) *Engine {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	log := opts.Logger.With("component", "engine")
	return &Engine{
		requests: make(chan envelope, opts.QueueSize),
		events:   make(chan Event, opts.EventBuffer),
		closeCh:  make(chan struct{}),
		doneCh:   make(chan struct{}),
		log:      log,
		ids:      newIdentityAssigner(),
		hist:     newHistory(opts.HistoryLimit),
		interp:   newInterpreter(opts.StrictCommands, log),
	}
}

// Start launches the worker goroutine.
func (e *Engine) Start() {
	go e.run()
}

// Stop shuts the worker down and waits for it to drain. Pending requests
// already queued are answered; new ones are rejected with ErrClosed. Safe
// to call more than once.
func (e *Engine) Stop() {
	e.closeOnce.Do(func() { close(e.closeCh) })
	<-e.doneCh
}

// Events returns the persist-signal channel. The snapshot autosaver is the
// intended consumer; the channel is never closed while the engine runs.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Do submits a request and waits for its responses. The context bounds the
// wait only; an operation the worker has started always runs to
// completion. Most requests yield one response; undo and redo follow the
// updated view with a history-state message.
func (e *Engine) Do(ctx context.Context, req Request) ([]Response, error) {
	// Checked up front so a stopped engine answers deterministically even
	// though the queue channel stays open.
	select {
	case <-e.closeCh:
		return nil, ErrClosed
	default:
	}
	env := envelope{req: req, reply: make(chan []Response, 1)}
	select {
	case e.requests <- env:
	case <-e.closeCh:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case rs := <-env.reply:
		return rs, nil
	case <-e.closeCh:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) run() {
	defer close(e.doneCh)
	for {
		select {
		case env := <-e.requests:
			env.reply <- e.handle(env.req)
		case <-e.closeCh:
			// Drain what was queued before the close so no caller hangs.
			for {
				select {
				case env := <-e.requests:
					env.reply <- e.handle(env.req)
				default:
					return
				}
			}
		}
	}
}

// handle runs one request with a recover boundary: a panic becomes an
// ERROR response and the worker keeps serving.
func (e *Engine) handle(req Request) (rs []Response) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("request panicked", "type", req.Type, "panic", r)
			rs = errorResponse(CodeInternal, fmt.Sprintf("internal error: %v", r))
		}
		requestSeconds.WithLabelValues(string(req.Type)).Observe(time.Since(start).Seconds())
	}()
	return e.process(req)
}

func (e *Engine) process(req Request) []Response {
	switch req.Type {
	case ReqLoadFile:
		return e.load(req, true)

	case ReqLoadExisting:
		return e.load(req, false)

	case ReqRunCommand:
		if e.ds == nil {
			return errorResponse(CodeNoDataset, ErrNoDataset.Error())
		}
		out, err := e.interp.execute(req.Command, e.ds.name, e.ds.view)
		if err != nil {
			return errorResponse(errorCode(err), err.Error())
		}
		commandsTotal.WithLabelValues(commandVerb(req.Command)).Inc()
		switch {
		case out.stats != nil:
			return []Response{{Type: RespCommandResult, Stats: out.stats}}
		case out.export != nil:
			return []Response{{Type: RespExportReady, Export: out.export}}
		default:
			e.ds.view = *out.view
			return e.updated()
		}

	case ReqCellEdit:
		if e.ds == nil {
			return errorResponse(CodeNoDataset, ErrNoDataset.Error())
		}
		if act := e.ds.editCell(req.Index, req.Column, req.CellValue()); act != nil {
			e.hist.record(act)
			mutationsTotal.WithLabelValues("edit").Inc()
			e.signalPersist("edit")
		}
		return e.updated()

	case ReqDeleteRow:
		if e.ds == nil {
			return errorResponse(CodeNoDataset, ErrNoDataset.Error())
		}
		if items := e.ds.deleteAt([]int{req.Index}); len(items) > 0 {
			e.hist.record(&rowDeleteAction{rowDeleteItem: items[0]})
			mutationsTotal.WithLabelValues("delete").Inc()
			e.signalPersist("delete")
		}
		return e.updated()

	case ReqDeleteRows:
		if e.ds == nil {
			return errorResponse(CodeNoDataset, ErrNoDataset.Error())
		}
		if items := e.ds.deleteAt(req.Indexes); len(items) > 0 {
			e.hist.record(&rowsDeleteAction{Items: items})
			mutationsTotal.WithLabelValues("delete").Add(float64(len(items)))
			e.signalPersist("delete")
		}
		return e.updated()

	case ReqUndo:
		if e.ds == nil {
			return errorResponse(CodeNoDataset, ErrNoDataset.Error())
		}
		if e.hist.undo(e.ds) {
			mutationsTotal.WithLabelValues("undo").Inc()
			e.signalPersist("undo")
		}
		return append(e.updated(), e.historyState())

	case ReqRedo:
		if e.ds == nil {
			return errorResponse(CodeNoDataset, ErrNoDataset.Error())
		}
		if e.hist.redo(e.ds) {
			mutationsTotal.WithLabelValues("redo").Inc()
			e.signalPersist("redo")
		}
		return append(e.updated(), e.historyState())

	case ReqReset:
		if e.ds == nil {
			return errorResponse(CodeNoDataset, ErrNoDataset.Error())
		}
		e.ds.resetView()
		return e.updated()

	case ReqView:
		if e.ds == nil {
			return errorResponse(CodeNoDataset, ErrNoDataset.Error())
		}
		return e.updated()

	case ReqHistory:
		return []Response{e.historyState()}

	case ReqExportSnapshot:
		if e.ds == nil {
			return errorResponse(CodeNoDataset, ErrNoDataset.Error())
		}
		// Detached like every outgoing payload: the store marshals the
		// snapshot on the autosaver goroutine while this one keeps
		// editing rows and compacting the master slice.
		snap := &Snapshot{
			Name:    e.ds.name,
			Columns: append([]string(nil), e.ds.columns...),
			Rows:    cloneRows(e.ds.master),
		}
		return []Response{{Type: RespSnapshot, Snapshot: snap}}

	default:
		return errorResponse(CodeBadRequest, fmt.Sprintf("unknown request type %q", req.Type))
	}
}

// load replaces the whole dataset. fresh distinguishes a new ingest, which
// signals the persistence collaborator, from a snapshot restore, which
// adopts pre-identified rows quietly.
func (e *Engine) load(req Request, fresh bool) []Response {
	rows := e.ids.assign(req.Rows)
	columns := req.Columns
	if len(columns) == 0 {
		columns = deriveColumns(rows)
	}
	e.ds = newDataset(req.Name, columns, rows)
	e.hist.clear()
	rowsLoaded.Add(float64(len(rows)))
	e.log.Info("dataset loaded", "name", req.Name, "rows", len(rows), "columns", len(columns), "fresh", fresh)
	if fresh {
		e.signalPersist("load")
	}
	return []Response{{Type: RespDataLoaded, View: e.viewCopy()}}
}

func (e *Engine) updated() []Response {
	return []Response{{Type: RespDataUpdated, View: e.viewCopy()}}
}

// viewCopy materializes the current view as a fully detached payload:
// cloned rows over fresh slices. Handlers, websocket sessions, and the
// autosaver encode responses on their own goroutines, so nothing handed
// out may alias the cells the worker keeps mutating.
func (e *Engine) viewCopy() *View {
	return &View{
		Columns:   append([]string(nil), e.ds.view.Columns...),
		Rows:      cloneRows(e.ds.view.Rows),
		Projected: e.ds.view.Projected,
	}
}

func (e *Engine) historyState() Response {
	return Response{Type: RespHistoryState, History: &HistoryState{
		CanUndo: e.hist.canUndo(),
		CanRedo: e.hist.canRedo(),
	}}
}

// signalPersist emits a persist event without ever blocking the worker. A
// full buffer drops the signal; the next mutation re-signals, so at most
// the latest save is delayed.
func (e *Engine) signalPersist(reason string) {
	select {
	case e.events <- Event{Reason: reason}:
	default:
		persistDropped.Inc()
		e.log.Warn("persist signal dropped, event buffer full", "reason", reason)
	}
}

func errorResponse(code, msg string) []Response {
	return []Response{{Type: RespError, Error: msg, Code: code}}
}

func commandVerb(text string) string {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return ""
	}
	return strings.ToUpper(tokens[0])
}

// deriveColumns is the fallback when a load carries no column order:
// first-row cells in map iteration order would be unstable, so the keys
// are sorted instead.
func deriveColumns(rows []*Row) []string {
	if len(rows) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var cols []string
	for _, r := range rows {
		for c := range r.Cells {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

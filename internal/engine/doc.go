// Package engine provides the in-memory tabular data engine.
//
// The engine ingests decoded rows, interprets a small command language over
// them, and records every mutation as a reversible action. It has no UI,
// transport, or storage dependencies; callers talk to it through a
// message-style request/response API and consume its persist signals.
//
// # Architecture
//
// The package is organized around a few cooperating pieces:
//
//   - Dataset: the master row collection plus the current view. Views hold
//     references to the same row objects as the master, so a cell edit made
//     through a filtered or sorted view is immediately visible everywhere.
//   - Interpreter: tokenizes and dispatches FILTER, SORT, SELECT, STATS,
//     TRIM, and EXPORT commands against the current view.
//   - History: a bounded linear log of reversible actions keyed by row
//     identity, driving undo/redo without full-state snapshots.
//   - Engine: a single goroutine that owns all of the above. Requests are
//     queued on a channel and processed strictly in arrival order, so the
//     data structures need no locks.
//
// # Message Protocol
//
// Callers build a [Request] and submit it with [Engine.Do]:
//
//	resp, err := eng.Do(ctx, engine.Request{
//	    Type:    engine.ReqRunCommand,
//	    Command: `FILTER amount > 100`,
//	})
//
// Each request yields one or two [Response] values (undo and redo add a
// HISTORY_STATE message after the updated view). Failures never kill the
// worker; they come back as ERROR responses with the state unchanged.
// Response payloads are detached copies: a caller may hold, read, and
// encode them on its own goroutine while the worker serves other requests.
//
// # Persistence
//
// After any mutation the engine emits a persist signal on [Engine.Events].
// The signal carries no data; the consumer requests a full [Snapshot] with
// [ReqExportSnapshot] when it is ready to write. A full event buffer drops
// the signal (the next mutation re-signals), so a slow consumer can never
// stall the worker.
package engine

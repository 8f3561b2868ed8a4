// autosave.go runs the background save loop.
//
// The engine signals "persistence needed" after every mutation; writing on
// each signal would turn a fast edit session into a disk benchmark, so the
// autosaver debounces: a signal arms a timer, further signals re-arm it,
// and only a quiet interval triggers the snapshot request and write. Save
// failures are logged and the loop keeps running.
package snapshot

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/griddle/griddle/internal/engine"
)

var (
	savesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "griddle_snapshot_saves_total",
		Help: "Snapshots written by the autosaver.",
	})
	saveErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "griddle_snapshot_save_errors_total",
		Help: "Autosave attempts that failed.",
	})
)

// DefaultInterval is the debounce window when the config leaves it zero.
const DefaultInterval = 2 * time.Second

// Autosaver subscribes to engine persist signals and writes snapshots
// through the store.
type Autosaver struct {
	eng      *engine.Engine
	store    *Store
	interval time.Duration
	log      *slog.Logger
}

func NewAutosaver(eng *engine.Engine, store *Store, interval time.Duration, log *slog.Logger) *Autosaver {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Autosaver{eng: eng, store: store, interval: interval, log: log.With("component", "autosave")}
}

// Run consumes persist signals until the context is cancelled, then makes
// a final save if one is pending. Call it on its own goroutine; stop it
// before stopping the engine so the final save can still be served.
func (a *Autosaver) Run(ctx context.Context) {
	a.log.Info("autosaver started", "interval", a.interval)
	timer := time.NewTimer(a.interval)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false
	for {
		select {
		case <-ctx.Done():
			if pending {
				a.save(context.Background())
			}
			a.log.Info("autosaver stopped")
			return
		case ev := <-a.eng.Events():
			a.log.Debug("persist signal", "reason", ev.Reason)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(a.interval)
			pending = true
		case <-timer.C:
			if pending {
				pending = false
				a.save(ctx)
			}
		}
	}
}

// save requests a snapshot from the engine and writes it. Errors never
// stop the loop; the next mutation re-signals.
func (a *Autosaver) save(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	rs, err := a.eng.Do(ctx, engine.Request{Type: engine.ReqExportSnapshot})
	if err != nil {
		saveErrors.Inc()
		a.log.Error("snapshot request failed", "error", err)
		return
	}
	if len(rs) == 0 || rs[0].Type != engine.RespSnapshot {
		saveErrors.Inc()
		a.log.Error("unexpected snapshot response", "responses", len(rs))
		return
	}
	if err := a.store.Save(rs[0].Snapshot); err != nil {
		saveErrors.Inc()
		a.log.Error("snapshot write failed", "error", err)
		return
	}
	savesTotal.Inc()
	a.log.Info("snapshot saved",
		"name", rs[0].Snapshot.Name,
		"rows", len(rs[0].Snapshot.Rows),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

package engine

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// identityAssigner stamps ingested rows with unique, stable identifiers.
// ULIDs from a monotonic entropy source give random-plus-counter semantics:
// no collisions across repeated loads in one session, and identifiers that
// stay meaningful under filtering, sorting, and deletion because they never
// encode position.
type identityAssigner struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func newIdentityAssigner() *identityAssigner {
	return &identityAssigner{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// assign stamps every row that does not already carry an identifier.
// Rows restored from a snapshot keep the identifier they arrived with.
func (a *identityAssigner) assign(rows []*Row) []*Row {
	for _, r := range rows {
		if r.ID == "" {
			r.ID = a.next()
		}
	}
	return rows
}

func (a *identityAssigner) next() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), a.entropy).String()
}

package app

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// generateID produces a lexicographically sortable identifier. IDs minted in
// the same millisecond still sort in creation order.
func generateID(at time.Time) (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(at), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

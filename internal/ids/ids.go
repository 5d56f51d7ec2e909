package ids

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a lexicographically sortable unique identifier. IDs created
// later always sort after IDs created earlier within the same process.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), entropy).String()
}

// NowMillis returns the current wall-clock time in milliseconds. All
// last-write-wins timestamps in the system use this resolution.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// PromptKeyID builds the persona-scoped identity of a normalized cue.
func PromptKeyID(personaID, keyHash string) string {
	return fmt.Sprintf("%s:%s", personaID, keyHash)
}

// LockKey builds the key used for persona+cue serialization.
func LockKey(personaID, normalized string) string {
	return fmt.Sprintf("%s|%s", personaID, normalized)
}

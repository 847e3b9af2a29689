package ledger

import (
	"math/rand"
	"time"

	"github.com/oklog/ulid"
)

var versionChannel chan ulid.ULID

// initVersionChannel runs a goroutine that keeps the channel fed
// with monotonic ULIDs for as long as the process lives
func initVersionChannel() {
	if versionChannel != nil {
		return
	}

	versionChannel = make(chan ulid.ULID, 100)
	go func() {
		t := time.Now()
		entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
		for {
			versionChannel <- ulid.MustNew(ulid.Timestamp(t), entropy)
		}
	}()
}

// NewVersion returns a fresh record version token
func NewVersion() string {
	return (<-versionChannel).String()
}

func init() {
	initVersionChannel()
}

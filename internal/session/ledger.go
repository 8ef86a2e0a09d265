package session

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// StateLedger remembers the state values sent with authorization requests until they are redeemed or expire.
type StateLedger struct {
	cache *ttlcache.Cache[string, time.Time]
}

// NewStateLedger creates a ledger whose entries live for ttl and starts its cleanup loop.
func NewStateLedger(ttl time.Duration) *StateLedger {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, time.Time](ttl),
		ttlcache.WithDisableTouchOnHit[string, time.Time](),
	)
	go cache.Start()

	return &StateLedger{cache: cache}
}

// Issue records state as sent.
func (l *StateLedger) Issue(state string) {
	l.cache.Set(state, time.Now(), ttlcache.DefaultTTL)
}

// Redeem consumes state, reporting whether it was issued and has not expired or been redeemed before.
func (l *StateLedger) Redeem(state string) bool {
	if state == "" {
		return false
	}
	_, present := l.cache.GetAndDelete(state)
	return present
}

// Outstanding returns the number of unredeemed, unexpired states.
func (l *StateLedger) Outstanding() int {
	return l.cache.Len()
}

// Close stops the cleanup loop.
func (l *StateLedger) Close() {
	l.cache.Stop()
}

package sync

import (
	"fmt"
	base "sync"
)

const (
	pointsPerStripe = 200
)

// StripedLock consistently maps keys, such as account addresses, onto a
// fixed set of mutexes. Operations on the same key are serialized while
// unrelated keys rarely contend.
type StripedLock struct {
	locks []base.Mutex
	ring  *ring[int]
}

func NewStripedLock(stripes uint) *StripedLock {
	if stripes == 0 {
		stripes = 1
	}

	shards := make(map[string]int)
	for i := 0; i < int(stripes); i++ {
		shards[fmt.Sprintf("stripe%d", i)] = i
	}

	return &StripedLock{
		locks: make([]base.Mutex, stripes),
		ring:  newRing(shards, pointsPerStripe),
	}
}

// Get returns the mutex guarding key
func (l *StripedLock) Get(key []byte) *base.Mutex {
	return &l.locks[l.ring.shard(key)]
}

// Lock acquires the mutex guarding key and returns its release.
func (l *StripedLock) Lock(key []byte) (unlock func()) {
	mu := l.Get(key)
	mu.Lock()
	return mu.Unlock
}

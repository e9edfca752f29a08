package orchestrator

import (
	"hash/fnv"
	"sync"
)

// StripedLock hands out one of a fixed set of mutexes per key, so passes for
// the same service are serialized while unrelated services rarely contend.
type StripedLock struct {
	stripes []sync.Mutex
}

func NewStripedLock(size int) *StripedLock {
	if size <= 0 {
		size = 32
	}
	return &StripedLock{stripes: make([]sync.Mutex, size)}
}

func (l *StripedLock) GetLock(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &l.stripes[h.Sum32()%uint32(len(l.stripes))]
}

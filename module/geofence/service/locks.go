package service

import (
	"sync"

	"github.com/spaolacci/murmur3"
)

const lockStripes = 64

// stripedMutex serializes work per geofence id without a map of mutexes.
// Distinct ids may share a stripe.
type stripedMutex struct {
	stripes [lockStripes]sync.Mutex
}

func (s *stripedMutex) lock(id string) func() {
	m := &s.stripes[murmur3.Sum32([]byte(id))%lockStripes]
	m.Lock()
	return m.Unlock
}

// lockAll takes every stripe in index order.
func (s *stripedMutex) lockAll() func() {
	for i := range s.stripes {
		s.stripes[i].Lock()
	}
	return func() {
		for i := len(s.stripes) - 1; i >= 0; i-- {
			s.stripes[i].Unlock()
		}
	}
}

package repository

import (
	"sync"

	"gorm.io/gorm"
)

type changeOp string

const (
	opAdd    changeOp = "add"
	opUpdate changeOp = "update"
	opRemove changeOp = "remove"
)

// change is a mutation tracked by an accessor and applied on the next commit.
type change struct {
	aggregate string
	op        changeOp
	apply     func(tx *gorm.DB) *gorm.DB
}

// changeSet holds pending changes in tracking order. The mutex only keeps the
// slice itself consistent; it does not order concurrent repository calls.
type changeSet struct {
	mu    sync.Mutex
	items []change
}

func (s *changeSet) add(c change) {
	s.mu.Lock()
	s.items = append(s.items, c)
	s.mu.Unlock()
}

func (s *changeSet) take() []change {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.items
	s.items = nil
	return items
}

// restore puts back changes whose commit failed, ahead of anything tracked
// in the meantime.
func (s *changeSet) restore(items []change) {
	if len(items) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(append(make([]change, 0, len(items)+len(s.items)), items...), s.items...)
}

func (s *changeSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

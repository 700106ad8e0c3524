package cache

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Sized is implemented by every table type; a nil or zero-length table is "not loaded".
type Sized interface {
	Len() int
}

type entry[T Sized] struct {
	table    T
	loadedAt time.Time
}

// Slot holds the current snapshot of one dataset. Readers never block on each
// other; an empty slot is refilled synchronously on first read and concurrent
// readers of the same empty slot share one load.
type Slot[T Sized] struct {
	name    string
	load    func(context.Context) T
	current atomic.Pointer[entry[T]]
	group   singleflight.Group
	loads   atomic.Int64
}

// NewSlot creates an empty slot filled by load.
func NewSlot[T Sized](name string, load func(context.Context) T) *Slot[T] {
	return &Slot[T]{name: name, load: load}
}

// Name returns the dataset name.
func (s *Slot[T]) Name() string {
	return s.name
}

// Get returns the current table, loading it if the slot is empty. ok is false
// when the table is still empty after the load attempt ("data unavailable").
func (s *Slot[T]) Get(ctx context.Context) (table T, ok bool) {
	if e := s.current.Load(); e != nil {
		return e.table, true
	}

	v, _, _ := s.group.Do(s.name, func() (any, error) {
		if e := s.current.Load(); e != nil {
			return e.table, nil
		}
		t := s.load(ctx)
		s.loads.Add(1)
		if t.Len() > 0 {
			s.Set(t)
		}
		return t, nil
	})

	table = v.(T)
	return table, table.Len() > 0
}

// Refresh reloads unconditionally. A failed (empty) reload keeps the previous
// snapshot; it reports whether a new snapshot was installed.
func (s *Slot[T]) Refresh(ctx context.Context) bool {
	v, _, _ := s.group.Do(s.name+"/refresh", func() (any, error) {
		t := s.load(ctx)
		s.loads.Add(1)
		if t.Len() == 0 {
			return false, nil
		}
		s.Set(t)
		return true, nil
	})
	installed, _ := v.(bool)
	return installed
}

// Set installs a table directly. Empty tables clear the slot.
func (s *Slot[T]) Set(table T) {
	if table.Len() == 0 {
		s.current.Store(nil)
		return
	}
	s.current.Store(&entry[T]{table: table, loadedAt: time.Now()})
}

// SlotStats describes one slot for operators.
type SlotStats struct {
	Name     string    `json:"name"`
	Rows     int       `json:"rows"`
	Loaded   bool      `json:"loaded"`
	LoadedAt time.Time `json:"loadedAt,omitempty"`
	Loads    int64     `json:"loads"`
}

// Stats reports the slot's current state.
func (s *Slot[T]) Stats() SlotStats {
	st := SlotStats{Name: s.name, Loads: s.loads.Load()}
	if e := s.current.Load(); e != nil {
		st.Rows = e.table.Len()
		st.Loaded = true
		st.LoadedAt = e.loadedAt
	}
	return st
}

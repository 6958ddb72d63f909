// Package analysis releases asynchronously completed trip analyses in trip
// start order.
//
// A trip enters the sequencer when it ends and leaves when its analysis is
// released. A trip whose analysis has not arrived within the timeout, or that
// is pushed out by the capacity bound, stops blocking later trips; its
// analysis is then released as soon as it arrives, out of order.
package analysis

import (
	"sort"
	"time"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/sdkerr"
)

type entry[T any] struct {
	id           string
	startedAt    time.Time
	registeredAt time.Time
	ready        bool
	value        T
}

type Sequencer[T any] struct {
	timeout  time.Duration
	capacity int
	queue    []*entry[T]
	late     []string
}

// NewSequencer returns a sequencer. A non-positive timeout disables expiry and
// a non-positive capacity disables the bound.
func NewSequencer[T any](timeout time.Duration, capacity int) *Sequencer[T] {
	return &Sequencer[T]{timeout: timeout, capacity: capacity}
}

// Register records an ended trip. It returns values released because the
// capacity bound pushed out the oldest pending trip.
func (s *Sequencer[T]) Register(id string, startedAt, now time.Time) []T {
	if s.index(id) >= 0 {
		return nil
	}
	e := &entry[T]{id: id, startedAt: startedAt, registeredAt: now}
	i := sort.Search(len(s.queue), func(i int) bool { return s.queue[i].startedAt.After(startedAt) })
	s.queue = append(s.queue, nil)
	copy(s.queue[i+1:], s.queue[i:])
	s.queue[i] = e

	var out []T
	for s.capacity > 0 && len(s.queue) > s.capacity {
		s.skipHead()
		out = append(out, s.drain()...)
	}
	return out
}

// Complete stores the analysis for id and returns every value that is now
// releasable, oldest trip first.
func (s *Sequencer[T]) Complete(id string, value T) ([]T, error) {
	if i := s.lateIndex(id); i >= 0 {
		s.late = append(s.late[:i], s.late[i+1:]...)
		return []T{value}, nil
	}
	i := s.index(id)
	if i < 0 {
		return nil, sdkerr.Newf(sdkerr.InvalidParams, "analysis for unknown or still active trip %s", id)
	}
	if s.queue[i].ready {
		return nil, sdkerr.Newf(sdkerr.InvalidParams, "analysis for trip %s already received", id)
	}
	s.queue[i].ready = true
	s.queue[i].value = value
	return s.drain(), nil
}

// Expire stops waiting on head trips registered longer than the timeout ago
// and returns what that unblocks.
func (s *Sequencer[T]) Expire(now time.Time) []T {
	if s.timeout <= 0 {
		return nil
	}
	var out []T
	for len(s.queue) > 0 && !s.queue[0].ready && now.Sub(s.queue[0].registeredAt) >= s.timeout {
		s.skipHead()
		out = append(out, s.drain()...)
	}
	return out
}

// Pending is the number of trips still held, ready or not.
func (s *Sequencer[T]) Pending() int {
	return len(s.queue)
}

// Tracks reports whether an analysis for id would still be accepted.
func (s *Sequencer[T]) Tracks(id string) bool {
	return s.index(id) >= 0 || s.lateIndex(id) >= 0
}

func (s *Sequencer[T]) Reset() {
	s.queue = nil
	s.late = nil
}

func (s *Sequencer[T]) drain() []T {
	var out []T
	for len(s.queue) > 0 && s.queue[0].ready {
		out = append(out, s.queue[0].value)
		s.queue = s.queue[1:]
	}
	return out
}

// skipHead removes the head. If it was still waiting, its id is remembered so
// that its analysis is released on arrival.
func (s *Sequencer[T]) skipHead() {
	head := s.queue[0]
	s.queue = s.queue[1:]
	if head.ready {
		return
	}
	s.late = append(s.late, head.id)
	if s.capacity > 0 && len(s.late) > s.capacity {
		s.late = s.late[len(s.late)-s.capacity:]
	}
}

func (s *Sequencer[T]) index(id string) int {
	for i, e := range s.queue {
		if e.id == id {
			return i
		}
	}
	return -1
}

func (s *Sequencer[T]) lateIndex(id string) int {
	for i, l := range s.late {
		if l == id {
			return i
		}
	}
	return -1
}

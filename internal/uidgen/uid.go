// Package uidgen produces cluster-unique identifiers without
// inter-node coordination: a string id for client-facing uniqueness
// requests, and an integer id used internally to correlate gossip
// fan-out attempts. Both are drawn from the same mutex-guarded
// counter (spec §4.3).
package uidgen

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrClockFailure is returned when the wall clock cannot be read. On a
// real system this practically never happens; the hook exists so
// callers can exercise the failure path the same way the node's
// generate handler must (spec: "clock error ⇒ UID_GENERATE_ERROR").
var ErrClockFailure = errors.New("uidgen: clock failure")

// clockFunc returns the current Unix time in milliseconds, or an
// error if the clock cannot be read. Service holds one as a field so
// tests can substitute a failing clock (see newWithClock).
type clockFunc func() (int64, error)

func defaultClock() (int64, error) {
	return time.Now().UnixMilli(), nil
}

// Service hands out string and integer unique ids for one node.
type Service struct {
	mu      sync.Mutex
	counter uint64
	clock   clockFunc
}

// New creates a Service using the wall clock.
func New() *Service {
	return &Service{clock: defaultClock}
}

// newWithClock is used by tests to inject a failing or deterministic
// clock.
func newWithClock(c clockFunc) *Service {
	return &Service{clock: c}
}

// NextString produces a string id of the form
// "{unix_millis}-{node_id}-{counter}". Within a node, the counter
// disambiguates ids minted in the same millisecond; across nodes, the
// node_id segment does. The clock is used for ordering only, never for
// uniqueness.
func (s *Service) NextString(nodeID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	millis, err := s.clock()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrClockFailure, err)
	}

	id := fmt.Sprintf("%d-%s-%d", millis, nodeID, s.counter)
	s.counter++
	return id, nil
}

// NextInt returns the current counter value and advances it. It
// shares the counter with NextString, so an integer id minted here is
// never reused as a later string id's counter segment.
func (s *Service) NextInt() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.counter
	s.counter++
	return id
}

package uidgen

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestService_NextString_Distinct(t *testing.T) {
	s := New()
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id, err := s.NextString("n1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

func TestService_NextString_Format(t *testing.T) {
	s := New()
	id, err := s.NextString("n3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parts := strings.Split(id, "-")
	if len(parts) != 3 {
		t.Fatalf("expected 3 dash-separated segments, got %q", id)
	}
	if parts[1] != "n3" {
		t.Fatalf("expected node segment n3, got %q", parts[1])
	}
	if parts[2] != "0" {
		t.Fatalf("expected counter segment 0 for first call, got %q", parts[2])
	}
}

func TestService_NextInt_Distinct(t *testing.T) {
	s := New()
	seen := map[uint64]bool{}
	for i := 0; i < 1000; i++ {
		id := s.NextInt()
		if seen[id] {
			t.Fatalf("duplicate int id generated: %d", id)
		}
		seen[id] = true
	}
}

func TestService_SharedCounter(t *testing.T) {
	s := New()
	// An integer id minted first must never reappear as a later
	// string id's counter segment, because both draw from the same
	// monotonically increasing counter.
	intID := s.NextInt()
	strID, err := s.NextString("n1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantSuffix := fmt.Sprintf("-%d", intID+1)
	if !strings.HasSuffix(strID, wantSuffix) {
		t.Fatalf("expected string id counter to follow the int id, got %q", strID)
	}
}

func TestService_ClockFailure(t *testing.T) {
	boom := errors.New("clock unavailable")
	s := newWithClock(func() (int64, error) { return 0, boom })
	if _, err := s.NextString("n1"); !errors.Is(err, ErrClockFailure) {
		t.Fatalf("expected ErrClockFailure, got %v", err)
	}
}

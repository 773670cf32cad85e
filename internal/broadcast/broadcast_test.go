package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/kariuki-george/gossip-glomers/internal/logging"
	"github.com/kariuki-george/gossip-glomers/internal/protocol"
	"github.com/kariuki-george/gossip-glomers/internal/uidgen"
)

// recordingSender captures every message handed to Send for later
// inspection, safe for concurrent use by the retry worker.
type recordingSender struct {
	mu  sync.Mutex
	out []protocol.Message
}

func (r *recordingSender) Send(m protocol.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, m)
	return nil
}

func (r *recordingSender) snapshot() []protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.Message, len(r.out))
	copy(out, r.out)
	return out
}

func rawInt(v int) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

func TestBroadcast_ClientSubmissionSchedulesFanOut(t *testing.T) {
	sender := &recordingSender{}
	b := New("n1", uidgen.New(), sender, logging.Noop{})
	b.SetTopology([]string{"n2", "n3"})

	b.Handle("c1", rawInt(42))

	if b.pending.Len() != 2 {
		t.Fatalf("expected 2 pending entries (n2, n3), got %d", b.pending.Len())
	}

	b.retryTick()
	sent := sender.snapshot()
	if len(sent) != 2 {
		t.Fatalf("expected 2 gossip messages emitted, got %d", len(sent))
	}

	dests := map[string]bool{}
	for _, m := range sent {
		if m.Body.Type != protocol.TypeBroadcast {
			t.Fatalf("expected broadcast type, got %s", m.Body.Type)
		}
		var env gossipEnvelope
		if err := json.Unmarshal(m.Body.Message, &env); err != nil {
			t.Fatalf("failed decoding envelope: %v", err)
		}
		if env.DistID == nil {
			t.Fatalf("expected gossip envelope to carry a dist id")
		}
		dests[m.Dest] = true
	}
	if !dests["n2"] || !dests["n3"] {
		t.Fatalf("expected fan-out to both n2 and n3, got %v", sent)
	}
}

func TestBroadcast_FanOutExcludesImmediateSender(t *testing.T) {
	sender := &recordingSender{}
	b := New("n1", uidgen.New(), sender, logging.Noop{})
	b.SetTopology([]string{"n2", "n3"})

	// A gossip hop arriving from n2 must not be echoed back to n2.
	env, _ := json.Marshal(gossipEnvelope{D: rawInt(7), DistID: strPtr("d-1")})
	b.Handle("n2", env)

	b.retryTick()
	for _, m := range sender.snapshot() {
		if m.Dest == "n2" {
			t.Fatalf("must not fan out back to immediate sender n2")
		}
	}
}

func TestBroadcast_DedupSuppressesFanOut(t *testing.T) {
	sender := &recordingSender{}
	b := New("n1", uidgen.New(), sender, logging.Noop{})
	b.SetTopology([]string{"n2", "n3"})

	env, _ := json.Marshal(gossipEnvelope{D: rawInt(7), DistID: strPtr("d-1")})
	b.Handle("n4", env)
	firstPending := b.pending.Len()

	// Same dist id again: must not grow the seen set or schedule more
	// fan-out.
	b.Handle("n4", env)
	if b.pending.Len() != firstPending {
		t.Fatalf("dedup should not schedule additional fan-out: before=%d after=%d", firstPending, b.pending.Len())
	}

	values := b.Read()
	if len(values) != 1 {
		t.Fatalf("expected exactly one seen value after dedup, got %d", len(values))
	}
}

func TestBroadcast_AckRemovesPendingEntry(t *testing.T) {
	sender := &recordingSender{}
	b := New("n1", uidgen.New(), sender, logging.Noop{})
	b.SetTopology([]string{"n2"})

	b.Handle("c1", rawInt(1))
	if b.pending.Len() != 1 {
		t.Fatalf("expected 1 pending entry, got %d", b.pending.Len())
	}

	entries := b.pending.Snapshot()
	b.Ack(entries[0].TransportID)
	if b.pending.Len() != 0 {
		t.Fatalf("expected ack to remove the pending entry")
	}

	// Unknown transport ids are ignored, not an error.
	b.Ack(9999)
}

func TestBroadcast_ReadSortsNumericValues(t *testing.T) {
	sender := &recordingSender{}
	b := New("n1", uidgen.New(), sender, logging.Noop{})

	for _, v := range []int{30, 10, 20} {
		b.Handle("c1", rawInt(v))
	}

	values := b.Read()
	if len(values) != 3 {
		t.Fatalf("expected 3 values, got %d", len(values))
	}
	want := []float64{10, 20, 30}
	for i, v := range values {
		f, ok := v.(float64)
		if !ok || f != want[i] {
			t.Fatalf("expected sorted %v, got %v", want, values)
		}
	}
}

func TestBroadcast_ReadEmptyBeforeAnyBroadcast(t *testing.T) {
	b := New("n1", uidgen.New(), &recordingSender{}, logging.Noop{})
	if values := b.Read(); len(values) != 0 {
		t.Fatalf("expected no seen values, got %v", values)
	}
}

func TestBroadcast_WorkerRetriesUnackedEntryEveryTick(t *testing.T) {
	sender := &recordingSender{}
	b := New("n1", uidgen.New(), sender, logging.Noop{})
	b.SetTopology([]string{"n2"})
	b.Handle("c1", rawInt(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.RunWorker(ctx)

	deadline := time.After(2 * time.Second)
	for {
		if len(sender.snapshot()) >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected at least 2 retries of the unacked entry, got %d", len(sender.snapshot()))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestBroadcast_WorkerStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	sender := &recordingSender{}
	b := New("n1", uidgen.New(), sender, logging.Noop{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.RunWorker(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected worker to stop promptly after context cancellation")
	}
}

func strPtr(s string) *string { return &s }

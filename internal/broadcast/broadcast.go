// Package broadcast implements the gossip subsystem: it delivers a
// client-submitted value to every node at-least-once under partial
// failures, deduplicates repeat deliveries, and retries unacknowledged
// fan-out via a periodic background worker (spec §4.4).
//
// The shape follows the teacher's core.Peer: a mutex-guarded struct
// shared between the dispatcher and a background poll loop, with all
// outbound I/O built inside the critical section and issued after the
// lock is released.
package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kariuki-george/gossip-glomers/internal/logging"
	"github.com/kariuki-george/gossip-glomers/internal/protocol"
	"github.com/kariuki-george/gossip-glomers/internal/store"
	"github.com/kariuki-george/gossip-glomers/internal/uidgen"
)

// RetryInterval is how often the background worker re-emits every
// currently pending entry.
const RetryInterval = 40 * time.Millisecond

// Sender is the narrow interface broadcast needs from the transport
// layer: fire-and-forget delivery of one outbound Message.
type Sender interface {
	Send(protocol.Message) error
}

// pendingEntry is one outstanding, unacknowledged fan-out attempt.
type pendingEntry struct {
	TransportID uint64
	Dest        string
	Value       json.RawMessage
	DistID      string
	Src         string
	FirstSeenAt time.Time
}

// gossipEnvelope is the wire shape used when forwarding a value to a
// peer: {"d": <value>, "d_id": <dist id>}. A first-hop client
// submission instead carries the raw value with no wrapper, which is
// exactly how a handler tells the two apart on receipt.
type gossipEnvelope struct {
	D      json.RawMessage `json:"d"`
	DistID *string         `json:"d_id"`
}

// Broadcast holds one node's topology, seen set and pending fan-out
// attempts.
type Broadcast struct {
	nodeID string
	uid    *uidgen.Service
	sender Sender
	log    logging.Logger

	mu          sync.Mutex
	topology    map[string]struct{}
	seenOrder   []string
	seenByID    map[string]json.RawMessage
	pending     *store.Store[uint64, pendingEntry]
}

// New creates a Broadcast for nodeID. uid mints distributed and
// transport ids; sender delivers outbound gossip and is typically
// backed by transport.Writer.
func New(nodeID string, uid *uidgen.Service, sender Sender, log logging.Logger) *Broadcast {
	return &Broadcast{
		nodeID:   nodeID,
		uid:      uid,
		sender:   sender,
		log:      log,
		topology: make(map[string]struct{}),
		seenByID: make(map[string]json.RawMessage),
		pending:  store.New[uint64, pendingEntry](),
	}
}

// SetTopology replaces this node's peer set. An absent entry for this
// node (the caller simply never calls SetTopology) leaves the peer set
// empty, so fan-out is a no-op until topology arrives — matching spec
// §3's lifecycle note.
func (b *Broadcast) SetTopology(peers []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topology = make(map[string]struct{}, len(peers))
	for _, p := range peers {
		b.topology[p] = struct{}{}
	}
}

// Handle processes an incoming broadcast value, whether a fresh client
// submission or an internal gossip hop from a peer. Unless the value's
// distributed id is already in the seen set, it records the value there
// and schedules fan-out to every peer except src; a duplicate schedules
// nothing. It never blocks on I/O.
func (b *Broadcast) Handle(src string, raw json.RawMessage) {
	var env gossipEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.DistID != nil {
		b.handleGossipHop(src, *env.DistID, env.D)
		return
	}
	b.handleClientSubmission(src, raw)
}

func (b *Broadcast) handleGossipHop(src, distID string, value json.RawMessage) {
	if _, dup := b.recordIfNew(distID, value); dup {
		// Dedup: still acked by the caller via broadcast_ok, but no
		// further fan-out — this is what makes gossip terminate.
		return
	}
	b.fanOut(distID, value, src)
}

func (b *Broadcast) handleClientSubmission(src string, value json.RawMessage) {
	distID, err := b.uid.NextString(b.nodeID)
	if err != nil {
		b.log.Errorf("failed minting distributed id for broadcast from %s: %v", src, err)
		return
	}
	b.recordIfNew(distID, value)
	b.fanOut(distID, value, src)
}

// recordIfNew inserts value under distID if not already present,
// preserving first-seen order for Read's fallback ordering. It
// reports whether distID was already present.
func (b *Broadcast) recordIfNew(distID string, value json.RawMessage) (json.RawMessage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.seenByID[distID]; ok {
		return existing, true
	}
	b.seenByID[distID] = value
	b.seenOrder = append(b.seenOrder, distID)
	return value, false
}

// fanOut schedules a pending entry, keyed by a fresh transport id, for
// every topology peer except exclude. Entries are only scheduled here
// — the retry worker is the one that actually sends (spec §4.4,
// "Emission is deferred to the retry worker").
func (b *Broadcast) fanOut(distID string, value json.RawMessage, exclude string) {
	b.mu.Lock()
	peers := make([]string, 0, len(b.topology))
	for p := range b.topology {
		if p == exclude {
			continue
		}
		peers = append(peers, p)
	}
	b.mu.Unlock()

	for _, peer := range peers {
		transportID := b.uid.NextInt()
		b.pending.Insert(transportID, pendingEntry{
			TransportID: transportID,
			Dest:        peer,
			Value:       value,
			DistID:      distID,
			Src:         b.nodeID,
			FirstSeenAt: time.Now(),
		})
	}
}

// Ack deletes the pending entry matching transportID. An unknown id is
// silently ignored — it may have already been deleted by a previous,
// duplicate acknowledgement.
func (b *Broadcast) Ack(transportID uint64) {
	b.pending.Delete(transportID)
}

// Read returns the current seen values. Per spec §4.5's numeric
// convention for the Maelstrom broadcast workload, values that are all
// JSON numbers are sorted ascending; otherwise first-seen order is
// preserved.
func (b *Broadcast) Read() []interface{} {
	b.mu.Lock()
	order := append([]string(nil), b.seenOrder...)
	raws := make([]json.RawMessage, 0, len(order))
	for _, id := range order {
		raws = append(raws, b.seenByID[id])
	}
	b.mu.Unlock()

	values := make([]interface{}, 0, len(raws))
	numeric := make([]float64, 0, len(raws))
	allNumeric := true
	for _, raw := range raws {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			allNumeric = false
			continue
		}
		values = append(values, v)
		if f, ok := v.(float64); ok {
			numeric = append(numeric, f)
		} else {
			allNumeric = false
		}
	}

	if allNumeric && len(numeric) == len(values) {
		sortFloatBackedValues(values)
	}
	return values
}

func sortFloatBackedValues(values []interface{}) {
	for i := 1; i < len(values); i++ {
		for j := i; j > 0; j-- {
			a := values[j-1].(float64)
			b := values[j].(float64)
			if a <= b {
				break
			}
			values[j-1], values[j] = values[j], values[j-1]
		}
	}
}

// RunWorker blocks, re-emitting every pending entry exactly once per
// RetryInterval tick, until ctx is cancelled. There is no attempt
// counter and no backoff: the only terminal transition for a pending
// entry is an acknowledging broadcast_ok (spec §4.4's state machine).
func (b *Broadcast) RunWorker(ctx context.Context) {
	ticker := time.NewTicker(RetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.retryTick()
		}
	}
}

func (b *Broadcast) retryTick() {
	for _, entry := range b.pending.Snapshot() {
		envelope, err := json.Marshal(gossipEnvelope{D: entry.Value, DistID: &entry.DistID})
		if err != nil {
			b.log.Errorf("failed encoding gossip envelope for %s: %v", entry.DistID, err)
			continue
		}
		msg := protocol.Message{
			Src:  entry.Src,
			Dest: entry.Dest,
			Body: protocol.Body{
				Type:    protocol.TypeBroadcast,
				MsgID:   entry.TransportID,
				Message: envelope,
			},
		}
		if err := b.sender.Send(msg); err != nil {
			b.log.Warnf("failed sending gossip retry to %s: %v", entry.Dest, err)
		}
	}
}

// Package klog implements the per-key append log subsystem: monotonic
// offsets, bounded polling, and client-declared committed-offset
// bookkeeping (spec §4.5). Each key owns an independent log and its
// own mutex, per the spec's stated preference for per-key locking over
// one log-wide lock.
package klog

import "sync"

// PollBatch caps how many records a single poll of one key returns.
const PollBatch = 10

// Record is one (offset, value) entry in a log.
type Record struct {
	Offset int64
	Value  interface{}
}

type log struct {
	mu              sync.Mutex
	records         []Record
	nextOffset      int64
	committedOffset int64
}

func (l *log) append(value interface{}) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	offset := l.nextOffset
	l.records = append(l.records, Record{Offset: offset, Value: value})
	l.nextOffset++
	return offset
}

func (l *log) poll(start int64) [][2]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([][2]interface{}, 0, PollBatch)
	for _, rec := range l.records {
		if rec.Offset < start {
			continue
		}
		out = append(out, [2]interface{}{rec.Offset, rec.Value})
		if len(out) == PollBatch {
			break
		}
	}
	return out
}

func (l *log) commit(offset int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.committedOffset = offset
}

func (l *log) committed() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.committedOffset
}

// KLog maps key to an independent log.
type KLog struct {
	mu   sync.Mutex
	logs map[string]*log
}

// New creates an empty KLog.
func New() *KLog {
	return &KLog{logs: make(map[string]*log)}
}

// getOrCreate returns the log for key, creating it (with
// nextOffset/committedOffset at 0) on first reference.
func (k *KLog) getOrCreate(key string) *log {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.logs[key]
	if !ok {
		l = &log{}
		k.logs[key] = l
	}
	return l
}

// Send appends value to key's log and returns its assigned offset.
// The first append to a key yields offset 0.
func (k *KLog) Send(key string, value interface{}) int64 {
	return k.getOrCreate(key).append(value)
}

// Poll returns, for each requested key, up to PollBatch records
// starting at the given offset, in offset order. Unknown keys are
// auto-created and yield an empty result.
func (k *KLog) Poll(offsets map[string]int64) map[string][][2]interface{} {
	out := make(map[string][][2]interface{}, len(offsets))
	for key, start := range offsets {
		out[key] = k.getOrCreate(key).poll(start)
	}
	return out
}

// CommitOffsets sets the committed marker for each key, auto-creating
// missing logs. No monotonicity is enforced: the broker trusts the
// client's committed marker.
func (k *KLog) CommitOffsets(offsets map[string]int64) {
	for key, offset := range offsets {
		k.getOrCreate(key).commit(offset)
	}
}

// ListCommittedOffsets returns the committed marker for each requested
// key, defaulting to 0 for a key never committed.
func (k *KLog) ListCommittedOffsets(keys []string) map[string]int64 {
	out := make(map[string]int64, len(keys))
	for _, key := range keys {
		out[key] = k.getOrCreate(key).committed()
	}
	return out
}

// Package transport owns the one piece of shared mutable state the
// wire codec itself does not: the stdout stream. Every reply and every
// gossip fan-out message funnels through a single Writer so that lines
// are never interleaved (spec §5, "only one writer may hold stdout at
// a time").
package transport

import (
	"io"
	"sync"

	promlog "github.com/prometheus/common/log"

	"github.com/kariuki-george/gossip-glomers/internal/protocol"
)

// Writer serializes Messages and writes them, one per line, to an
// underlying io.Writer. It is safe for concurrent use by the
// dispatcher and the broadcast retry worker.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriter wraps out (typically os.Stdout) for line-atomic writes.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Send encodes and writes m. Encode failures are logged and the
// message is dropped — spec §4.1 and §7 both require that a bad
// outbound message never aborts the process; the sender (a peer, for
// gossip, or the client, for a reply) will simply see no reply and
// retry at its own layer.
func (w *Writer) Send(m protocol.Message) error {
	data, err := protocol.Encode(m)
	if err != nil {
		promlog.Errorf("failed encoding message %#v: %v", m, err)
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.out.Write(data); err != nil {
		promlog.Errorf("failed writing message %#v: %v", m, err)
		return err
	}
	_, err = w.out.Write([]byte("\n"))
	return err
}

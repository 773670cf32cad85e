// Command maelstrom-node is a single node participating in a
// simulated Maelstrom cluster. It reads newline-delimited JSON
// messages from stdin and writes JSON replies to stdout; everything
// else (process startup, the simulated network, log collection) is
// the harness's job.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/rs/xid"

	"github.com/kariuki-george/gossip-glomers/internal/logging"
	"github.com/kariuki-george/gossip-glomers/internal/node"
	"github.com/kariuki-george/gossip-glomers/internal/protocol"
	"github.com/kariuki-george/gossip-glomers/internal/transport"
)

func main() {
	runID := xid.New().String()
	log := logging.NewStdLogger(os.Stderr, runID)
	log.Infof("starting maelstrom-node run=%s", runID)

	writer := transport.NewWriter(os.Stdout)
	n := node.New(writer, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerStarted := false
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		msg, err := protocol.Decode(line)
		if err != nil {
			log.Errorf("failed decoding line: %v", err)
			errMsg := protocol.Reply(protocol.ErrorBody(0, protocol.ErrDecodeFailed, fmt.Sprintf("decode failed: %v", err)))
			if sendErr := writer.Send(errMsg); sendErr != nil {
				log.Errorf("failed sending decode-error reply: %v", sendErr)
			}
			continue
		}

		reply := n.Dispatch(msg)
		if reply == nil {
			continue
		}

		if reply.Dest == "" && reply.Src == "" {
			reply.Dest = msg.Src
			reply.Src = msg.Dest
		}

		if err := writer.Send(*reply); err != nil {
			log.Errorf("failed sending reply: %v", err)
		}

		if !workerStarted && msg.Body.Type == protocol.TypeInit {
			n.StartBroadcastWorker(ctx)
			workerStarted = true
		}
	}

	if err := scanner.Err(); err != nil {
		log.Errorf("stdin scan failed: %v", err)
	}
	log.Infof("stdin closed, shutting down")
}

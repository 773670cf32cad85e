// Package node implements the event taxonomy and routes each inbound
// message to its handler, binding together the uid, broadcast and
// klog subsystems (spec §4.6).
package node

import (
	"context"

	"github.com/kariuki-george/gossip-glomers/internal/broadcast"
	"github.com/kariuki-george/gossip-glomers/internal/klog"
	"github.com/kariuki-george/gossip-glomers/internal/logging"
	"github.com/kariuki-george/gossip-glomers/internal/protocol"
	"github.com/kariuki-george/gossip-glomers/internal/uidgen"
)

// Sender delivers one outbound Message. transport.Writer implements
// this; tests can substitute a recording fake.
type Sender interface {
	Send(protocol.Message) error
}

// Node owns per-process state: its assigned id, the full peer list
// from init, and the broadcast/klog/uid subsystems.
type Node struct {
	log logging.Logger

	nodeID  string
	nodeIDs []string

	uid       *uidgen.Service
	broadcast *broadcast.Broadcast
	klog      *klog.KLog

	sender Sender
}

// New creates a Node. The broadcast retry worker is not started until
// StartBroadcastWorker is called.
func New(sender Sender, log logging.Logger) *Node {
	uid := uidgen.New()
	return &Node{
		log:    log,
		uid:    uid,
		klog:   klog.New(),
		sender: sender,
	}
}

// Dispatch routes one inbound message to its handler and returns the
// reply to send, if any. Per spec §4.6, if the reply's Src/Dest are
// both empty the caller (the stdin loop in cmd/maelstrom-node) fills
// them in from the request; handlers
// that build an addressed message directly (gossip fan-out acks) are
// left untouched.
func (n *Node) Dispatch(msg protocol.Message) *protocol.Message {
	body := msg.Body
	switch body.Type {
	case protocol.TypeInit:
		return n.handleInit(body)
	case protocol.TypeEcho:
		return n.handleEcho(body)
	case protocol.TypeTopology:
		return n.handleTopology(body)
	case protocol.TypeBroadcast:
		return n.handleBroadcast(msg)
	case protocol.TypeBroadcastOk:
		n.broadcast.Ack(body.InReplyTo)
		return nil
	case protocol.TypeRead:
		return n.handleRead(body)
	case protocol.TypeGenerate:
		return n.handleGenerate(body)
	case protocol.TypeSend:
		return n.handleSend(body)
	case protocol.TypePoll:
		return n.handlePoll(body)
	case protocol.TypeCommitOffsets:
		return n.handleCommitOffsets(body)
	case protocol.TypeListCommittedOffsets:
		return n.handleListCommittedOffsets(body)

	case protocol.TypeInitOk, protocol.TypeEchoOk, protocol.TypeTopologyOk,
		protocol.TypeReadOk, protocol.TypeGenerateOk, protocol.TypeSendOk,
		protocol.TypePollOk, protocol.TypeCommitOffsetsOk,
		protocol.TypeListCommittedOffsetsOk:
		// Responses that carry no correlatable pending state are
		// absorbed silently (spec §4.6).
		return nil

	default:
		reply := protocol.Reply(protocol.ErrorBody(body.MsgID, protocol.ErrNotSupported, "unsupported message type: "+body.Type))
		return &reply
	}
}

func (n *Node) handleInit(body protocol.Body) *protocol.Message {
	n.nodeID = body.NodeID
	n.nodeIDs = body.NodeIDs
	n.broadcast = broadcast.New(n.nodeID, n.uid, n.sender, n.log)

	reply := protocol.Reply(protocol.Body{
		Type:      protocol.TypeInitOk,
		InReplyTo: body.MsgID,
	})
	return &reply
}

func (n *Node) handleEcho(body protocol.Body) *protocol.Message {
	reply := protocol.Reply(protocol.Body{
		Type:      protocol.TypeEchoOk,
		InReplyTo: body.MsgID,
		Echo:      body.Echo,
	})
	return &reply
}

func (n *Node) handleTopology(body protocol.Body) *protocol.Message {
	peers := body.Topology[n.nodeID]
	n.broadcast.SetTopology(peers)

	reply := protocol.Reply(protocol.Body{
		Type:      protocol.TypeTopologyOk,
		InReplyTo: body.MsgID,
	})
	return &reply
}

func (n *Node) handleBroadcast(msg protocol.Message) *protocol.Message {
	n.broadcast.Handle(msg.Src, msg.Body.Message)

	reply := protocol.Reply(protocol.Body{
		Type:      protocol.TypeBroadcastOk,
		InReplyTo: msg.Body.MsgID,
	})
	return &reply
}

func (n *Node) handleRead(body protocol.Body) *protocol.Message {
	reply := protocol.Reply(protocol.Body{
		Type:      protocol.TypeReadOk,
		InReplyTo: body.MsgID,
		Messages:  n.broadcast.Read(),
	})
	return &reply
}

func (n *Node) handleGenerate(body protocol.Body) *protocol.Message {
	id, err := n.uid.NextString(n.nodeID)
	if err != nil {
		n.log.Errorf("failed generating unique id: %v", err)
		reply := protocol.Reply(protocol.ErrorBody(body.MsgID, protocol.ErrIDGenerateFailed, "failed to generate id"))
		return &reply
	}

	reply := protocol.Reply(protocol.Body{
		Type:      protocol.TypeGenerateOk,
		InReplyTo: body.MsgID,
		ID:        id,
	})
	return &reply
}

func (n *Node) handleSend(body protocol.Body) *protocol.Message {
	offset := n.klog.Send(body.Key, body.Msg)
	reply := protocol.Reply(protocol.Body{
		Type:      protocol.TypeSendOk,
		InReplyTo: body.MsgID,
		Offset:    &offset,
	})
	return &reply
}

func (n *Node) handlePoll(body protocol.Body) *protocol.Message {
	msgs := n.klog.Poll(body.Offsets)
	reply := protocol.Reply(protocol.Body{
		Type:      protocol.TypePollOk,
		InReplyTo: body.MsgID,
		Msgs:      msgs,
	})
	return &reply
}

func (n *Node) handleCommitOffsets(body protocol.Body) *protocol.Message {
	n.klog.CommitOffsets(body.Offsets)
	reply := protocol.Reply(protocol.Body{
		Type:      protocol.TypeCommitOffsetsOk,
		InReplyTo: body.MsgID,
	})
	return &reply
}

func (n *Node) handleListCommittedOffsets(body protocol.Body) *protocol.Message {
	offsets := n.klog.ListCommittedOffsets(body.Keys)
	reply := protocol.Reply(protocol.Body{
		Type:      protocol.TypeListCommittedOffsetsOk,
		InReplyTo: body.MsgID,
		Offsets:   offsets,
	})
	return &reply
}

// StartBroadcastWorker launches the gossip retry worker in its own
// goroutine, stopped when ctx is cancelled. It must be called after
// init has been processed, since the broadcast subsystem is only
// constructed once this node's id is known (see handleInit).
func (n *Node) StartBroadcastWorker(ctx context.Context) {
	go n.broadcast.RunWorker(ctx)
}

// NodeID reports the id assigned at init, or "" before init arrives.
func (n *Node) NodeID() string {
	return n.nodeID
}

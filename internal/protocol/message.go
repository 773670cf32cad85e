// Package protocol defines the wire envelope exchanged between nodes
// and clients: one Message per line of newline-delimited JSON, tagged
// by Body.Type.
package protocol

import "encoding/json"

// Event type discriminators, per the workload's event taxonomy.
const (
	TypeInit    = "init"
	TypeInitOk  = "init_ok"
	TypeEcho    = "echo"
	TypeEchoOk  = "echo_ok"
	TypeError   = "error"

	TypeTopology   = "topology"
	TypeTopologyOk = "topology_ok"
	TypeBroadcast   = "broadcast"
	TypeBroadcastOk = "broadcast_ok"
	TypeRead   = "read"
	TypeReadOk = "read_ok"

	TypeGenerate   = "generate"
	TypeGenerateOk = "generate_ok"

	TypeSend   = "send"
	TypeSendOk = "send_ok"
	TypePoll   = "poll"
	TypePollOk = "poll_ok"
	TypeCommitOffsets         = "commit_offsets"
	TypeCommitOffsetsOk       = "commit_offsets_ok"
	TypeListCommittedOffsets   = "list_committed_offsets"
	TypeListCommittedOffsetsOk = "list_committed_offsets_ok"
)

// Error codes, per spec: 0-22 reserved by the harness, 1000+ private.
const (
	ErrNotSupported       = 10
	ErrDecodeFailed       = 1000
	ErrEncodeFailed       = 1001
	ErrIDGenerateFailed   = 1003
)

// Message is the envelope carried on one line of stdin/stdout.
type Message struct {
	Src  string `json:"src"`
	Dest string `json:"dest"`
	Body Body   `json:"body"`
}

// Body carries a type discriminator plus every kind-specific field.
// A single flat struct (rather than a tagged union) is the idiomatic
// Go shape for this wire format: encoding/json has no sum-type
// support, so one struct with omitempty fields plays the same role as
// the source's `#[serde(tag = "type")]` enum.
type Body struct {
	Type       string `json:"type"`
	MsgID      uint64 `json:"msg_id,omitempty"`
	InReplyTo  uint64 `json:"in_reply_to,omitempty"`

	// init / init_ok
	NodeID  string   `json:"node_id,omitempty"`
	NodeIDs []string `json:"node_ids,omitempty"`

	// echo / echo_ok
	Echo string `json:"echo,omitempty"`

	// topology / topology_ok
	Topology map[string][]string `json:"topology,omitempty"`

	// broadcast / broadcast_ok
	Message json.RawMessage `json:"message,omitempty"`

	// read_ok
	Messages []interface{} `json:"messages,omitempty"`

	// generate_ok
	ID string `json:"id,omitempty"`

	// send
	Key string      `json:"key,omitempty"`
	Msg interface{} `json:"msg,omitempty"`

	// send_ok
	Offset *int64 `json:"offset,omitempty"`

	// poll / commit_offsets (request), list_committed_offsets_ok (response)
	Offsets map[string]int64 `json:"offsets,omitempty"`

	// poll_ok: key -> [[offset, value], ...]
	Msgs map[string][][2]interface{} `json:"msgs,omitempty"`

	// list_committed_offsets (request)
	Keys []string `json:"keys,omitempty"`

	// error
	Code uint64 `json:"code,omitempty"`
	Text string `json:"text,omitempty"`
}

// ErrorBody builds the body of an error reply.
func ErrorBody(inReplyTo uint64, code uint64, text string) Body {
	return Body{
		Type:      TypeError,
		InReplyTo: inReplyTo,
		Code:      code,
		Text:      text,
	}
}

// Reply wraps a body into a Message whose Src/Dest are left blank so
// the dispatcher can fill them in from the originating request (spec
// §4.6). Handlers that need to address a specific peer (gossip
// fan-out) build the Message directly instead of using Reply.
func Reply(body Body) Message {
	return Message{Body: body}
}

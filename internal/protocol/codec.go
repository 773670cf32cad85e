package protocol

import "encoding/json"

// Decode parses one line of input into a Message. It is a pure
// transformation: it owns no state and performs no I/O or logging.
// Callers that need to surface a decode failure to the harness build
// their own error Message (spec §4.1 — the codec does not know what
// to reply).
func Decode(line []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(line, &m); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Encode serializes a Message to a single JSON line without a
// trailing newline; callers append their own line terminator.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Package hub fans messages out to websocket clients. One goroutine owns
// the client set; each client has its own writer goroutine, so a slow
// browser never blocks a broadcaster.
package hub

import "encoding/json"

// Message is one pre-encoded text frame.
type Message struct {
	Data []byte
}

// NewJSONMessage encodes v as a Message.
func NewJSONMessage(v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Data: data}, nil
}

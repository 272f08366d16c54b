package collab

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Wire events. Names follow the socket protocol the editor clients speak.
const (
	EventJoinDocument   = "join-document"
	EventLoadDocument   = "load-document"
	EventSendChanges    = "send-changes"
	EventDocumentChange = "document-change"
	EventReceiveChanges = "receive-changes"
	EventSaveDocument   = "save-document"
	EventError          = "error"
)

// Error codes carried by EventError.
const (
	CodeUnauthorized = "unauthorized"
	CodeLoadFailed   = "load_failed"
)

// Message is the envelope of every frame on the real-time channel.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ErrorPayload is the data of an EventError frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type joinPayload struct {
	DocumentID string `json:"documentId"`
	Ticket     string `json:"ticket,omitempty"`
}

// changePayload accepts both client spellings: {documentId, delta} and
// {documentId, operation}.
type changePayload struct {
	DocumentID string          `json:"documentId"`
	Delta      json.RawMessage `json:"delta,omitempty"`
	Operation  json.RawMessage `json:"operation,omitempty"`
}

func (p changePayload) op() json.RawMessage {
	if len(p.Delta) > 0 {
		return p.Delta
	}
	return p.Operation
}

type savePayload struct {
	DocumentID string          `json:"documentId"`
	Content    json.RawMessage `json:"content,omitempty"`
}

var errEmptyPayload = errors.New("empty payload")

// parseJoin accepts either a bare document id string or an object.
func parseJoin(data json.RawMessage) (joinPayload, error) {
	var p joinPayload
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return p, errEmptyPayload
	}
	if data[0] == '"' {
		err := json.Unmarshal(data, &p.DocumentID)
		return p, err
	}
	err := json.Unmarshal(data, &p)
	return p, err
}

// EncodeFrame renders an outbound frame.
func EncodeFrame(event string, data any) ([]byte, error) {
	var raw json.RawMessage
	switch v := data.(type) {
	case nil:
	case json.RawMessage:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Message{Event: event, Data: raw})
}

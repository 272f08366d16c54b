package collab

import (
	"bytes"
	"encoding/json"
	"strings"
)

// EmptySnapshot is the load payload of a document that has no stored content.
const EmptySnapshot = "[]"

// Content is held as an operation log: a JSON array of the opaque operations
// in acceptance order. Folding an operation appends it. Client snapshots never
// overwrite the log.

// decodeLog splits stored content into log entries. Content that is not a
// JSON array becomes a single base entry.
func decodeLog(content string) []json.RawMessage {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &entries); err == nil {
		return entries
	}
	if json.Valid([]byte(trimmed)) {
		return []json.RawMessage{json.RawMessage(trimmed)}
	}
	b, _ := json.Marshal(content)
	return []json.RawMessage{b}
}

func encodeLog(entries []json.RawMessage) string {
	if len(entries) == 0 {
		return EmptySnapshot
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(e)
	}
	buf.WriteByte(']')
	return buf.String()
}

// Snapshot normalizes stored content into the wire snapshot format.
func Snapshot(content string) json.RawMessage {
	return json.RawMessage(encodeLog(decodeLog(content)))
}

// contentLog is a room's authoritative in-memory content. Guarded by Room.mu.
type contentLog struct {
	entries []json.RawMessage
	seeded  bool
	gen     uint64 // operations applied
	saved   uint64 // gen at the last successful flush
}

func (c *contentLog) apply(op json.RawMessage) {
	c.entries = append(c.entries, op)
	c.gen++
}

// seed installs the stored content underneath any operations applied so far.
// Only the first seed counts.
func (c *contentLog) seed(content string) bool {
	if c.seeded {
		return false
	}
	c.entries = append(decodeLog(content), c.entries...)
	c.seeded = true
	return true
}

// pending returns the content to flush, if any. An unseeded log is never
// flushed so it cannot overwrite durable content it has not seen.
func (c *contentLog) pending() (string, uint64, bool) {
	if !c.seeded || c.gen == c.saved {
		return "", c.gen, false
	}
	return encodeLog(c.entries), c.gen, true
}

func (c *contentLog) markSaved(gen uint64) {
	if gen > c.saved {
		c.saved = gen
	}
}

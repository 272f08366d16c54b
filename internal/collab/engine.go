package collab

import (
	"encoding/json"

	"github.com/gogotex/gogotex/backend/go-collab/pkg/logger"
	"github.com/gogotex/gogotex/backend/go-collab/pkg/metrics"
)

// Engine fans edit operations out to the other members of a room.
//
// Each accepted operation is delivered and folded into the room content while
// the room lock is held, so every member observes the same per-document order
// and a concurrent join or leave is either fully before or fully after it.
// Deliveries never block: a member that cannot keep up is dropped by its own
// Deliver, not waited for.
type Engine struct {
	registry *Registry
}

func NewEngine(registry *Registry) *Engine {
	return &Engine{registry: registry}
}

// Propagate delivers op to every member of documentID except the sender.
// It reports how many members accepted the frame and whether the operation
// was accepted at all. Unknown rooms and senders that are not members are
// no-ops.
func (e *Engine) Propagate(documentID, senderID string, op json.RawMessage) (delivered int, accepted bool) {
	room := e.registry.lookup(documentID)
	if room == nil {
		logger.Debugf("propagate: no room for doc=%s, dropping", documentID)
		return 0, false
	}
	frame, err := EncodeFrame(EventReceiveChanges, op)
	if err != nil {
		logger.Warnf("propagate: encode failed for doc=%s: %v", documentID, err)
		return 0, false
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if room.closed {
		return 0, false
	}
	if _, ok := room.members[senderID]; !ok {
		metrics.MessagesDropped.WithLabelValues("not_member").Inc()
		return 0, false
	}
	for id, m := range room.members {
		if id == senderID {
			continue
		}
		if m.Deliver(frame) {
			delivered++
		} else {
			metrics.DeliveriesDropped.Inc()
		}
	}
	room.content.apply(op)
	metrics.OperationsPropagated.Inc()
	return delivered, true
}

package collab

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeFrame(t *testing.T, frame []byte) Message {
	t.Helper()
	var msg Message
	require.NoError(t, json.Unmarshal(frame, &msg))
	return msg
}

func TestEngine_DeliversToOthersOnly(t *testing.T) {
	r := NewRegistry(nil)
	e := NewEngine(r)
	a, b, c := newFakeMember("a"), newFakeMember("b"), newFakeMember("c")
	r.Join("d1", a)
	r.Join("d1", b)
	r.Join("d1", c)

	delivered, ok := e.Propagate("d1", "a", json.RawMessage(`{"insert":"x"}`))
	require.True(t, ok)
	require.Equal(t, 2, delivered)
	require.Empty(t, a.received())

	for _, m := range []*fakeMember{b, c} {
		frames := m.received()
		require.Len(t, frames, 1)
		msg := decodeFrame(t, frames[0])
		require.Equal(t, EventReceiveChanges, msg.Event)
		require.JSONEq(t, `{"insert":"x"}`, string(msg.Data))
	}
}

func TestEngine_AloneInRoomStillFolds(t *testing.T) {
	r := NewRegistry(nil)
	e := NewEngine(r)
	room := r.Join("d1", newFakeMember("a"))

	delivered, ok := e.Propagate("d1", "a", json.RawMessage(`1`))
	require.True(t, ok)
	require.Zero(t, delivered)
	require.Equal(t, "[1]", encodeLog(room.content.entries))
}

func TestEngine_UnknownRoomAndStrangers(t *testing.T) {
	r := NewRegistry(nil)
	e := NewEngine(r)

	_, ok := e.Propagate("nope", "a", json.RawMessage(`1`))
	require.False(t, ok)

	b := newFakeMember("b")
	room := r.Join("d1", b)
	_, ok = e.Propagate("d1", "intruder", json.RawMessage(`1`))
	require.False(t, ok)
	require.Empty(t, b.received())
	require.Empty(t, room.content.entries)
}

func TestEngine_RefusingMemberDoesNotBlockOthers(t *testing.T) {
	r := NewRegistry(nil)
	e := NewEngine(r)
	slow := newFakeMember("slow")
	slow.refuse = true
	fast := newFakeMember("fast")
	r.Join("d1", newFakeMember("sender"))
	r.Join("d1", slow)
	r.Join("d1", fast)

	for i := 0; i < 5; i++ {
		delivered, ok := e.Propagate("d1", "sender", json.RawMessage(fmt.Sprint(i)))
		require.True(t, ok)
		require.Equal(t, 1, delivered)
	}
	require.Len(t, fast.received(), 5)
}

func TestEngine_SingleOrderPerDocument(t *testing.T) {
	r := NewRegistry(nil)
	e := NewEngine(r)
	watchers := []*fakeMember{newFakeMember("w1"), newFakeMember("w2")}
	for _, w := range watchers {
		r.Join("d1", w)
	}
	senders := []string{"s1", "s2", "s3"}
	for _, s := range senders {
		r.Join("d1", newFakeMember(s))
	}

	const perSender = 100
	var wg sync.WaitGroup
	for _, s := range senders {
		wg.Add(1)
		go func(s string) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				op, _ := json.Marshal(fmt.Sprintf("%s-%d", s, i))
				e.Propagate("d1", s, op)
			}
		}(s)
	}
	wg.Wait()

	first := watchers[0].received()
	require.Len(t, first, perSender*len(senders))
	require.Equal(t, first, watchers[1].received(), "all members observe one order")

	// each sender's operations keep their send order
	next := map[string]int{}
	for _, f := range first {
		var op string
		require.NoError(t, json.Unmarshal(decodeFrame(t, f).Data, &op))
		var n, i int
		_, err := fmt.Sscanf(op, "s%d-%d", &n, &i)
		require.NoError(t, err)
		s := fmt.Sprintf("s%d", n)
		require.Equal(t, next[s], i)
		next[s]++
	}

	room := r.lookup("d1")
	require.Len(t, room.content.entries, perSender*len(senders))
}

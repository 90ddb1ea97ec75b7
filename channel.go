package livelog

import (
	"crypto/subtle"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mroth/livelog/internal/debug"
)

// A channel is a named live-log endpoint. It holds the current session token
// and at most one live connection; every read or write of that pair happens
// under mu, which totally orders page loads, stream binds and pushes.
type channel struct {
	name    string
	kind    Kind
	metrics *metrics

	mu       sync.Mutex
	token    string      // current session, "" until the first page load
	live     *connection // bound stream, nil if nobody is watching
	closed   bool        // set on server shutdown, refuses further binds
	sessions uint64      // sessions issued since startup
	sentMsgs uint64      // msgs written to a live stream since startup

	orderMu sync.Mutex
	tail    chan struct{} // released by the most recently reserved push
}

func newChannel(name string, kind Kind, m *metrics) *channel {
	return &channel{name: name, kind: kind, metrics: m}
}

// issueSession mints a new token and evicts the current viewer, if any. The
// evicted connection is closed before the new token is returned.
func (ch *channel) issueSession() string {
	token := uuid.NewString()

	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.token = token
	ch.sessions++
	ch.evictLocked()
	ch.metrics.sessionIssued(ch.name)
	debug.Debug("new session issued for " + ch.name)
	return token
}

// tryBind makes c the live connection if token is the current session. Any
// previous connection is closed first. On success the stream headers have been
// sent on c.
func (ch *channel) tryBind(token string, c *connection) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.closed || token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(ch.token)) != 1 {
		ch.metrics.bind(ch.name, false)
		debug.Debug("rejected stream for " + ch.name + ": stale or unknown session")
		return false
	}
	ch.metrics.bind(ch.name, true)
	ch.evictLocked()

	if err := c.open(); err != nil {
		// headers are already committed, so the bind stands, but the
		// connection is of no use to anyone.
		debug.Debug("error opening stream for "+ch.name+", closing:", err)
		ch.metrics.writeError(ch.name)
		c.close()
		return true
	}
	ch.live = c
	ch.metrics.streamUp()
	return true
}

// push writes payload to the live connection. It reports whether the message
// was delivered; a failed write tears the connection down and is otherwise
// swallowed.
func (ch *channel) push(payload string) bool {
	msg := frame(payload)

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.live == nil {
		ch.metrics.dropped(ch.name)
		return false
	}
	if err := ch.live.send(msg); err != nil {
		debug.Debug("error writing msg to "+ch.name+", closing:", err)
		ch.metrics.writeError(ch.name)
		ch.metrics.dropped(ch.name)
		ch.evictLocked()
		return false
	}
	ch.sentMsgs++
	ch.metrics.pushed(ch.name)
	return true
}

// A pushSlot is a reserved place in a channel's push order.
type pushSlot struct {
	prev <-chan struct{} // released once the previous push is written
	done chan struct{}
}

// reserve takes the next place in the channel's push order. Pushes are
// written in the order their slots were reserved.
func (ch *channel) reserve() pushSlot {
	ch.orderMu.Lock()
	defer ch.orderMu.Unlock()
	slot := pushSlot{prev: ch.tail, done: make(chan struct{})}
	ch.tail = slot.done
	return slot
}

// pushAt waits for every push reserved before slot, then pushes payload.
func (ch *channel) pushAt(slot pushSlot, payload string) bool {
	defer close(slot.done)
	if slot.prev != nil {
		<-slot.prev
	}
	return ch.push(payload)
}

// keepalive writes a comment frame to c if it is still live, with the same
// failure handling as push. It reports whether c is still live afterwards.
func (ch *channel) keepalive(c *connection) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.live != c {
		return false
	}
	if err := c.write(keepaliveFrame); err != nil {
		debug.Debug("error writing keepalive to "+ch.name+", closing:", err)
		ch.metrics.writeError(ch.name)
		ch.evictLocked()
		return false
	}
	return true
}

// detach lets go of c after its client went away. It is a no-op for the live
// state if c was already superseded.
func (ch *channel) detach(c *connection) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.live == c {
		ch.evictLocked()
		return
	}
	c.close()
}

// shutdown evicts the live connection and refuses any further bind.
func (ch *channel) shutdown() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.closed = true
	ch.evictLocked()
}

func (ch *channel) evictLocked() {
	if ch.live == nil {
		return
	}
	ch.live.close()
	ch.live = nil
	ch.metrics.streamDown()
}

// ChannelStatus is a snapshot of a channel's state.
type ChannelStatus struct {
	Name     string            `json:"name"`
	Kind     string            `json:"kind"`
	Sessions uint64            `json:"sessions_issued"`
	SentMsgs uint64            `json:"msgs_sent"`
	Live     *ConnectionStatus `json:"live,omitempty"`
}

func (ch *channel) status() ChannelStatus {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	cs := ChannelStatus{
		Name:     ch.name,
		Kind:     fmt.Sprintf("%T", ch.kind),
		Sessions: ch.sessions,
		SentMsgs: ch.sentMsgs,
	}
	if ch.live != nil {
		s := ch.live.Status()
		cs.Live = &s
	}
	return cs
}

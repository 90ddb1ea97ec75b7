package livelog

import (
	"net/http"
	"sync"
	"time"
)

// A connection is an open event stream response. It is only ever written to
// while its channel's lock is held, and only while it is that channel's live
// connection.
type connection struct {
	r        *http.Request       // The HTTP request
	w        http.ResponseWriter // The HTTP response
	created  time.Time           // Timestamp for when connection was opened
	done     chan struct{}       // Closed when the channel lets go of the connection
	once     sync.Once
	msgsSent uint64 // Msgs the connection has sent (all time)
}

func newConnection(w http.ResponseWriter, r *http.Request) *connection {
	return &connection{
		r:       r,
		w:       w,
		created: time.Now(),
		done:    make(chan struct{}),
	}
}

// ConnectionStatus describes the live connection of a channel.
type ConnectionStatus struct {
	Path      string `json:"request_path"`
	Created   int64  `json:"created_at"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent"`
	MsgsSent  uint64 `json:"msgs_sent"`
}

func (c *connection) Status() ConnectionStatus {
	return ConnectionStatus{
		Path:      c.r.URL.Path,
		Created:   c.created.Unix(),
		ClientIP:  clientIP(c.r),
		UserAgent: c.r.UserAgent(),
		MsgsSent:  c.msgsSent,
	}
}

// trust proxy IP headers if they exist, pattern taken from http://git.io/xDD3Mw
func clientIP(r *http.Request) string {
	ip := r.Header.Get("X-Real-IP")
	if ip == "" {
		ip = r.Header.Get("X-Forwarded-For")
	}
	if ip == "" {
		ip = r.RemoteAddr
	}
	return ip
}

// open commits the event stream headers so the client sees the stream as
// established before any message arrives.
func (c *connection) open() error {
	headers := c.w.Header()
	headers.Set("Content-Type", "text/event-stream; charset=utf-8")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	c.w.WriteHeader(http.StatusOK)
	return c.flush()
}

// send writes one message frame out to the client.
func (c *connection) send(b []byte) error {
	if err := c.write(b); err != nil {
		return err
	}
	c.msgsSent++
	return nil
}

func (c *connection) write(b []byte) error {
	if _, err := c.w.Write(b); err != nil {
		return err
	}
	return c.flush()
}

// flush reports write errors surfaced while flushing, which a bare
// http.Flusher would swallow.
func (c *connection) flush() error {
	return http.NewResponseController(c.w).Flush()
}

// close tells the stream handler to return, which ends the response. Safe to
// call more than once.
func (c *connection) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *connection) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

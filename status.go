package livelog

import (
	"fmt"
	"os"
	"time"
)

// ServerStatus is snapshot of metadata describing the status of a Server.
//
// It can be serialized to JSON and is what gets reported to the admin API
// endpoint.
type ServerStatus struct {
	Node        string          `json:"node"`
	Status      string          `json:"status"`
	Reported    int64           `json:"reported_at"`
	StartupTime int64           `json:"startup_time"`
	SentMsgs    uint64          `json:"msgs_sent"`
	LiveStreams int             `json:"live_streams"`
	Channels    []ChannelStatus `json:"channels"`
}

// Status returns a snaphot of status metadata for the Server, with channels in
// name order.
//
// Primarily intended for logging and reporting.
func (s *Server) Status() ServerStatus {
	stats := ServerStatus{
		Node:        fmt.Sprintf("%s-%s", env(), nodeName()),
		Status:      "OK",
		Reported:    time.Now().Unix(),
		StartupTime: s.registry.startupTime.Unix(),
		Channels:    make([]ChannelStatus, 0, len(s.registry.names)),
	}

	s.mu.Lock()
	if s.state == closed {
		stats.Status = "CLOSED"
	}
	s.mu.Unlock()

	s.registry.each(func(ch *channel) {
		cs := ch.status()
		stats.SentMsgs += cs.SentMsgs
		if cs.Live != nil {
			stats.LiveStreams++
		}
		stats.Channels = append(stats.Channels, cs)
	})
	return stats
}

// Attempts to intelligently get the name of the node we are running on.
//
// First checks for a Heroku $DYNO variable (e.g. `web.2` etc), if that isn't
// found will default to the local hostname.
func nodeName() string {
	if dyno := os.Getenv("DYNO"); dyno != "" {
		return dyno
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "unknown.X"
}

// A string representing the environment (dev/staging/prod), for reporting.
func env() string {
	if env := os.Getenv("LIVELOG_ENV"); env != "" {
		return env
	}
	return "development"
}

package livelog

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// channelNamePattern keeps names usable as a single URL path segment without
// escaping. Names made only of dots are rejected separately, since browsers
// resolve "." and ".." segments before sending a request.
var channelNamePattern = regexp.MustCompile(`^[A-Za-z0-9._~+-]+$`)

type channelSpec struct {
	name string
	kind Kind
}

// A registry owns every channel of a server. It is built once by NewServer and
// never mutated afterwards; only the channels' own state changes.
type registry struct {
	channels    map[string]*channel
	names       []string  // sorted, for reproducible index rendering
	startupTime time.Time // Time registry was created
}

func newRegistry(specs []channelSpec, m *metrics) (*registry, error) {
	r := &registry{
		channels:    make(map[string]*channel, len(specs)),
		names:       make([]string, 0, len(specs)),
		startupTime: time.Now(),
	}
	for _, s := range specs {
		if !channelNamePattern.MatchString(s.name) || strings.Trim(s.name, ".") == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidChannelName, s.name)
		}
		if s.kind == nil {
			return nil, fmt.Errorf("livelog: channel %q has no kind", s.name)
		}
		if _, exists := r.channels[s.name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateChannel, s.name)
		}
		r.channels[s.name] = newChannel(s.name, s.kind, m)
		r.names = append(r.names, s.name)
	}
	sort.Strings(r.names)
	return r, nil
}

func (r *registry) lookup(name string) (*channel, bool) {
	ch, ok := r.channels[name]
	return ch, ok
}

// allNames returns the channel names in lexicographic order. The slice is a
// copy and may be kept by the caller.
func (r *registry) allNames() []string {
	return append([]string(nil), r.names...)
}

// each applies fn to every channel in name order.
func (r *registry) each(fn func(*channel)) {
	for _, name := range r.names {
		fn(r.channels[name])
	}
}

func (r *registry) shutdown() {
	r.each(func(ch *channel) { ch.shutdown() })
}

package livelog

import (
	"fmt"

	"github.com/mroth/livelog/internal/debug"
)

// Push encodes args with the channel's kind and writes the result to the
// channel's live stream.
//
// Delivery is best effort: if nobody is watching, or the write fails, the
// message is dropped and Push still returns nil. The only error is
// ErrUnknownChannel.
func (s *Server) Push(name string, args ...interface{}) error {
	ch, ok := s.registry.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	if payload, ok := encode(ch, args); ok {
		ch.pushAt(ch.reserve(), payload)
	}
	return nil
}

// PushAsync is Push without waiting for the write. The arguments are encoded
// before PushAsync returns; the write itself happens on another goroutine.
//
// The message takes its place in the channel's order before PushAsync returns,
// so messages from one caller arrive in call order, whether sent with Push or
// PushAsync. The returned channel receives the same result Push would have
// returned once the write attempt is over, and is then closed.
func (s *Server) PushAsync(name string, args ...interface{}) <-chan error {
	result := make(chan error, 1)

	ch, ok := s.registry.lookup(name)
	if !ok {
		result <- fmt.Errorf("%w: %q", ErrUnknownChannel, name)
		close(result)
		return result
	}
	payload, ok := encode(ch, args)
	if !ok {
		result <- nil
		close(result)
		return result
	}

	slot := ch.reserve()
	go func() {
		defer close(result)
		ch.pushAt(slot, payload)
		result <- nil
	}()
	return result
}

// encode runs the channel's encoder, dropping the message if it panics.
func encode(ch *channel, args []interface{}) (payload string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			debug.Debug("encoder for "+ch.name+" panicked, dropping msg:", r)
			ch.metrics.dropped(ch.name)
			ok = false
		}
	}()
	return ch.kind.Encode(args...), true
}

package livelog

import "errors"

var (
	// ErrAlreadyRunning is returned by Start when the server is already serving.
	ErrAlreadyRunning = errors.New("livelog: server is already running")

	// ErrServerClosed is returned by Start after Shutdown. A server cannot be
	// restarted.
	ErrServerClosed = errors.New("livelog: server closed")

	// ErrUnknownChannel is returned when pushing to a name that was never
	// registered.
	ErrUnknownChannel = errors.New("livelog: unknown channel")

	ErrInvalidChannelName = errors.New("livelog: invalid channel name")
	ErrDuplicateChannel   = errors.New("livelog: duplicate channel")
)

/*
Package livelog implements an embeddable live-log broadcaster, streaming
messages pushed by application code to a browser over Server-Sent Events.

# Channels

A Server owns a fixed set of named channels, registered with WithChannel when
the server is created. Each channel has a Kind, which decides the page served
to the browser and how pushed values are encoded:

	s, err := livelog.NewServer(
		livelog.WithChannel("requests", livelog.Document{}),
		livelog.WithChannel("debug", livelog.Console{}),
	)
	if err != nil {
		log.Fatal(err)
	}
	if err := s.Start(); err != nil {
		log.Fatal(err)
	}
	s.Push("requests", "GET /", 200)

Pushes are fire and forget: if nobody is watching a channel, or the viewer went
away, the message is dropped.

# Sessions

Every channel serves exactly one viewer. The HTTP surface is:

	GET /                      index of all channels
	GET /{channel}/            channel page, issues a new session token
	GET /{channel}/{session}/  text/event-stream for that session

Loading a channel page issues a new session token and closes the stream of any
previous viewer. The page then opens its event stream with the token, and a
stream is only accepted while its token is the channel's current one, so a
stale tab cannot take the stream back from a newer one.

Each pushed message is sent as a single event:

	data: <payload>\n\n

where payload is the output of the channel's Kind.Encode. The built-in kinds
base64 encode the message text.

# Templates

The built-in pages are kept in the templates directory and loaded with go.rice.
They are read from the source tree during development; run `rice embed-go` in
this package before building a standalone binary.
*/
package livelog

package livelog

// frame is the formatted bytestring for a pushed payload, ready to be written
// to a live stream as a single SSE event.
//
// The payload must not contain a blank line; the encoders in this package only
// ever produce base64 text.
func frame(payload string) []byte {
	b := make([]byte, 0, len(dataPrefix)+len(payload)+2)
	b = append(b, dataPrefix...)
	b = append(b, payload...)
	b = append(b, '\n', '\n')
	return b
}

const dataPrefix = "data: "

// any line starting with a colon is a comment and is ignored by EventSource.
// https://html.spec.whatwg.org/multipage/server-sent-events.html#event-stream-interpretation
var keepaliveFrame = []byte(":keepalive\n\n")

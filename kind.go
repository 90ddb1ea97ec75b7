package livelog

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"strings"
)

// Markers substituted into rendered pages before they are sent.
const (
	PortMarker    = "$LIVELOG_PORT$"
	ChannelMarker = "$LIVELOG_CHANNEL$"
	SessionMarker = "$LIVELOG_SESSION$"
)

// A Kind decides how a channel is presented to the browser.
//
// Page returns the HTML document served on a page load, which may reference
// PortMarker, ChannelMarker and SessionMarker. Encode turns the arguments of a
// single push into one payload; it must never produce a blank line.
//
// Custom kinds usually embed Console or Document and override one method.
type Kind interface {
	Page() string
	Encode(args ...interface{}) string
}

// Console prints every message to the browser's developer console.
type Console struct{}

func (Console) Page() string                      { return mustTemplate("console.html") }
func (Console) Encode(args ...interface{}) string { return EncodeLines(args...) }

// Document renders messages as HTML lines on a terminal styled page.
type Document struct{}

func (Document) Page() string                      { return mustTemplate("document.html") }
func (Document) Encode(args ...interface{}) string { return EncodeLines(args...) }

// EncodeLines writes each argument on its own line and base64 encodes the
// result. A nil argument becomes an empty line.
func EncodeLines(args ...interface{}) string {
	var sb strings.Builder
	for _, a := range args {
		if a != nil {
			fmt.Fprint(&sb, a)
		}
		sb.WriteByte('\n')
	}
	return base64.StdEncoding.EncodeToString([]byte(sb.String()))
}

// An IndexRenderer renders the document served at "/" from the sorted list of
// channel names.
type IndexRenderer func(names []string) string

// DefaultIndex lists every channel as a link to its page.
func DefaultIndex(names []string) string {
	t := template.Must(template.New("index").Parse(mustTemplate("index.html")))
	var sb strings.Builder
	if err := t.Execute(&sb, names); err != nil {
		panic(fmt.Sprintf("livelog: rendering index: %v", err))
	}
	return sb.String()
}

// render replaces the page markers in doc.
func render(doc string, port int, channel, session string) string {
	return strings.NewReplacer(
		PortMarker, fmt.Sprint(port),
		ChannelMarker, channel,
		SessionMarker, session,
	).Replace(doc)
}

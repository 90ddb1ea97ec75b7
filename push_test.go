package livelog

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"testing"
)

// panicKind blows up on every encode.
type panicKind struct{ Console }

func (panicKind) Encode(args ...interface{}) string { panic("bad encoder") }

func mockPushServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(
		WithChannel("A", Console{}),
		WithChannel("bad", panicKind{}),
	)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestPushUnknownChannel(t *testing.T) {
	s := mockPushServer(t)

	if err := s.Push("Z", "x"); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("Push: got %v want %v", err, ErrUnknownChannel)
	}
	if err := <-s.PushAsync("Z", "x"); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("PushAsync: got %v want %v", err, ErrUnknownChannel)
	}
}

// nobody watching is not an error.
func TestPushNoStream(t *testing.T) {
	s := mockPushServer(t)

	if err := s.Push("A", "x"); err != nil {
		t.Errorf("Push: %v", err)
	}
	result := s.PushAsync("A", "x")
	if err := <-result; err != nil {
		t.Errorf("PushAsync: %v", err)
	}
	if _, open := <-result; open {
		t.Error("result channel not closed")
	}
}

func TestPushAsyncDelivers(t *testing.T) {
	s := mockPushServer(t)
	ch := s.registry.channels["A"]
	c, w := mockConn("/A/")
	if !ch.tryBind(ch.issueSession(), c) {
		t.Fatal("bind rejected")
	}

	if err := <-s.PushAsync("A", "one", "two"); err != nil {
		t.Fatal(err)
	}
	want := "data: " + EncodeLines("one", "two") + "\n\n"
	if got := w.Body.String(); got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

// a panicking encoder drops the message without taking the caller down.
func TestPushEncoderPanic(t *testing.T) {
	s := mockPushServer(t)
	ch := s.registry.channels["bad"]
	c, w := mockConn("/bad/")
	if !ch.tryBind(ch.issueSession(), c) {
		t.Fatal("bind rejected")
	}

	if err := s.Push("bad", "x"); err != nil {
		t.Errorf("Push: %v", err)
	}
	if err := <-s.PushAsync("bad", "x"); err != nil {
		t.Errorf("PushAsync: %v", err)
	}
	if w.Body.Len() != 0 {
		t.Errorf("unexpected write %q", w.Body.String())
	}
	if c.closed() {
		t.Error("stream closed by encoder panic")
	}
}

// frames splits a recorded stream body into decoded event payloads.
func frames(t *testing.T, body string) []string {
	t.Helper()
	var out []string
	for _, event := range strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n") {
		b, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(event, dataPrefix))
		if err != nil {
			t.Fatalf("bad frame %q: %v", event, err)
		}
		out = append(out, strings.TrimSuffix(string(b), "\n"))
	}
	return out
}

// pushes made one after the other arrive in call order, sync or not.
func TestPushAsyncOrdering(t *testing.T) {
	s := mockPushServer(t)
	ch := s.registry.channels["A"]
	c, w := mockConn("/A/")
	if !ch.tryBind(ch.issueSession(), c) {
		t.Fatal("bind rejected")
	}

	const n = 500
	results := make([]<-chan error, 0, n)
	for i := 0; i < n; i++ {
		if i%50 == 49 {
			// a blocking push in between keeps its place too
			if err := s.Push("A", i); err != nil {
				t.Fatal(err)
			}
			continue
		}
		results = append(results, s.PushAsync("A", i))
	}
	for _, r := range results {
		if err := <-r; err != nil {
			t.Fatal(err)
		}
	}

	got := frames(t, w.Body.String())
	if len(got) != n {
		t.Fatalf("frames: got %v want %v", len(got), n)
	}
	for i, msg := range got {
		if want := strconv.Itoa(i); msg != want {
			t.Fatalf("frame %v: got push %v want %v", i, msg, want)
		}
	}
}

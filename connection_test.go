package livelog

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func mockConn(path string) (*connection, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	return newConnection(rr, req), rr
}

var errBroken = errors.New("broken pipe")

// brokenWriter is a flushable response writer whose writes start failing
// after a number of successful ones.
type brokenWriter struct {
	header    http.Header
	okWrites  int
	attempted int
}

func (b *brokenWriter) Header() http.Header {
	if b.header == nil {
		b.header = make(http.Header)
	}
	return b.header
}

func (b *brokenWriter) Write(p []byte) (int, error) {
	b.attempted++
	if b.attempted > b.okWrites {
		return 0, errBroken
	}
	return len(p), nil
}

func (b *brokenWriter) WriteHeader(int) {}
func (b *brokenWriter) Flush()          {}

/*
Opened connections should get...
  - HTTP status OK 200
  - content-type event-stream
  - check all headers match what we want
*/
func TestConnectionOpen(t *testing.T) {
	c, rr := mockConn("/test/abc/")
	if err := c.open(); err != nil {
		t.Fatal(err)
	}

	if got, want := rr.Code, http.StatusOK; got != want {
		t.Errorf("unexpected status code: got %v want %v", got, want)
	}
	if !rr.Flushed {
		t.Error("headers were not flushed")
	}

	expectHeaders := http.Header{
		"Content-Type":      {"text/event-stream; charset=utf-8"},
		"Connection":        {"keep-alive"},
		"X-Accel-Buffering": {"no"},
	}
	gotHeaders := rr.Result().Header
	for key, wantVal := range expectHeaders {
		gotVal, found := gotHeaders[key]
		if !found {
			t.Errorf("missing expected header: %v: %v", key, wantVal)
		} else if !reflect.DeepEqual(gotVal, wantVal) {
			t.Errorf("%v: got %v want %v", key, gotVal, wantVal)
		}
	}
}

func TestConnectionSend(t *testing.T) {
	c, rr := mockConn("/test/abc/")
	payload := frame("Zm9v")
	for i := 0; i < 2; i++ {
		if err := c.send(payload); err != nil {
			t.Fatal(err)
		}
	}

	var expected = append(append([]byte{}, payload...), payload...)
	if actual := rr.Body.Bytes(); !bytes.Equal(actual, expected) {
		t.Errorf("body does not match:\n[got]\n%s[expected]\n%s", actual, expected)
	}
	if got, want := c.msgsSent, uint64(2); got != want {
		t.Errorf("msgsSent: got %v want %v", got, want)
	}

	// keepalives are written but not counted as messages
	if err := c.write(keepaliveFrame); err != nil {
		t.Fatal(err)
	}
	if got, want := c.msgsSent, uint64(2); got != want {
		t.Errorf("msgsSent after keepalive: got %v want %v", got, want)
	}
}

func TestConnectionSendError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test/abc/", nil)
	c := newConnection(&brokenWriter{}, req)
	if err := c.send(frame("Zm9v")); !errors.Is(err, errBroken) {
		t.Errorf("got %v want %v", err, errBroken)
	}
	if c.msgsSent != 0 {
		t.Errorf("failed send was counted")
	}
}

func TestConnectionCloseTwice(t *testing.T) {
	c, _ := mockConn("/test/abc/")
	if c.closed() {
		t.Fatal("new connection reports closed")
	}
	c.close()
	c.close()
	if !c.closed() {
		t.Error("connection not closed")
	}
}

func TestClientIP(t *testing.T) {
	var testcases = []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"remote addr", nil, "192.0.2.1:1234"},
		{"x-real-ip", map[string]string{"X-Real-IP": "10.0.0.1"}, "10.0.0.1"},
		{"x-forwarded-for", map[string]string{"X-Forwarded-For": "10.0.0.2"}, "10.0.0.2"},
		{"real ip wins", map[string]string{"X-Real-IP": "10.0.0.1", "X-Forwarded-For": "10.0.0.2"}, "10.0.0.1"},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tc.want {
				t.Errorf("got %v want %v", got, tc.want)
			}
		})
	}
}

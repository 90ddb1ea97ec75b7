package admin_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mroth/livelog"
	"github.com/mroth/livelog/admin"
)

func mockServer(t *testing.T) *livelog.Server {
	t.Helper()
	s, err := livelog.NewServer(
		livelog.WithChannel("requests", livelog.Document{}),
		livelog.WithChannel("debug", livelog.Console{}),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

// it should serve a HTML index page
func TestAdminHTTPIndex(t *testing.T) {
	s := mockServer(t)

	req, err := http.NewRequest("GET", "/admin/", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	handler := admin.AdminHandler(s)
	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v",
			status, http.StatusOK)
	}
	if ctype := rr.Header().Get("Content-Type"); !strings.HasPrefix(ctype, "text/html") {
		t.Errorf("content type header does not match: got %v want text/html", ctype)
	}
	if !strings.Contains(rr.Body.String(), "status.json") {
		t.Error("index page does not load the status api")
	}
}

// it should expose a REST JSON status API
func TestAdminHTTPStatusAPI(t *testing.T) {
	s := mockServer(t)
	s.Push("requests", "GET /")

	req, err := http.NewRequest("GET", "/admin/status.json", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	handler := admin.AdminHandler(s)
	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v",
			status, http.StatusOK)
	}

	if ctype := rr.Header().Get("Content-Type"); ctype != "application/json" {
		t.Errorf("content type header does not match: got %v want %v",
			ctype, "application/json")
	}

	var status livelog.ServerStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Status != "OK" {
		t.Errorf("status: got %v want OK", status.Status)
	}
	var names []string
	for _, ch := range status.Channels {
		names = append(names, ch.Name)
	}
	if got, want := strings.Join(names, ","), "debug,requests"; got != want {
		t.Errorf("channels: got %v want %v", got, want)
	}
}

func TestAdminHTTPNotFound(t *testing.T) {
	s := mockServer(t)

	rr := httptest.NewRecorder()
	admin.AdminHandler(s).ServeHTTP(rr, httptest.NewRequest("GET", "/admin/nope", nil))
	if status := rr.Code; status != http.StatusNotFound {
		t.Errorf("got %v want %v", status, http.StatusNotFound)
	}
}

package command

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/yndnr/meshtls/internal/server/httpserver/handler"
)

func TestLogLevel_Show(t *testing.T) {
	server := newMockServer(t)
	server.handle("/admin/v1/log-level", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		jsonResponse(w, http.StatusOK, handler.NewResponse("req-1", handler.LogLevel{Level: "info"}))
	})

	out, err := runApp(t, "-o", "json", "log-level", "--admin", server.URL)
	if err != nil {
		t.Fatalf("log-level error = %v", err)
	}
	var got handler.LogLevel
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if got.Level != "info" {
		t.Errorf("Level = %q, want info", got.Level)
	}
}

func TestLogLevel_Set(t *testing.T) {
	server := newMockServer(t)
	server.handle("/admin/v1/log-level", func(w http.ResponseWriter, r *http.Request) {
		var req handler.LogLevel
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Level != "debug" {
			t.Errorf("body = %+v (err %v), want level debug", req, err)
		}
		jsonResponse(w, http.StatusOK, handler.NewResponse("req-2", handler.LogLevel{Level: "debug"}))
	})

	out, err := runApp(t, "-o", "json", "log-level", "--admin", server.URL, "debug")
	if err != nil {
		t.Fatalf("log-level error = %v", err)
	}
	if !strings.Contains(out, `"debug"`) {
		t.Errorf("output = %q", out)
	}
}

func TestLogLevel_TooManyArgs(t *testing.T) {
	if _, err := runApp(t, "log-level", "--admin", "127.0.0.1:1", "debug", "info"); err == nil {
		t.Error("log-level with two arguments should fail")
	}
}

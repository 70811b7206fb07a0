package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/yndnr/meshtls/internal/core/credential"
	"github.com/yndnr/meshtls/internal/core/reload"
	"github.com/yndnr/meshtls/internal/testutil/pkitest"
)

type fakeReloader struct {
	triggers atomic.Int32
	reloads  atomic.Int32
	err      error
	stats    reload.Stats
}

func (f *fakeReloader) Trigger()            { f.triggers.Add(1) }
func (f *fakeReloader) Reload() error       { f.reloads.Add(1); return f.err }
func (f *fakeReloader) Stats() reload.Stats { return f.stats }

type fixedSource struct{ b *credential.Bundle }

func (s fixedSource) Load() *credential.Bundle { return s.b }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBundle(t *testing.T) *credential.Bundle {
	t.Helper()
	ca := pkitest.NewCA(t, "root")
	leaf := ca.Issue(t, pkitest.LeafOptions{CommonName: "admin-test"})
	files := pkitest.WriteFiles(t, t.TempDir(), leaf, ca)
	b, err := credential.Load(files.Cert, files.Key, files.CA)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return b
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data any) Response {
	t.Helper()
	var resp Response
	raw := json.RawMessage{}
	resp.Data = &raw
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
	if data != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return resp
}

func TestHealth(t *testing.T) {
	h := New(nil, nil, nil, quietLogger())

	rec := do(t, h, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"status":"ok"}` {
		t.Errorf("body = %s, want {\"status\":\"ok\"}", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestReady(t *testing.T) {
	rec := do(t, New(fixedSource{}, nil, nil, quietLogger()), http.MethodGet, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("without bundle status = %d, want 503", rec.Code)
	}

	rec = do(t, New(fixedSource{testBundle(t)}, nil, nil, quietLogger()), http.MethodGet, "/readyz")
	if rec.Code != http.StatusOK {
		t.Errorf("with bundle status = %d, want 200", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	b := testBundle(t)
	rl := &fakeReloader{stats: reload.Stats{Attempts: 3, Successes: 2, Failures: 1, LastReason: "key_mismatch"}}
	h := New(fixedSource{b}, rl, nil, quietLogger())

	rec := do(t, h, http.MethodGet, "/admin/v1/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var data StatusResponse
	resp := decodeEnvelope(t, rec, &data)
	if resp.Code != "OK" {
		t.Errorf("code = %q, want OK", resp.Code)
	}
	if data.Bundle == nil || data.Bundle.ID != b.ID() {
		t.Errorf("bundle = %+v, want id %s", data.Bundle, b.ID())
	}
	if data.Reload.Attempts != 3 || data.Reload.LastReason != "key_mismatch" {
		t.Errorf("reload = %+v", data.Reload)
	}
	if data.Build.Version == "" {
		t.Error("build version missing")
	}
}

func TestReload_Queued(t *testing.T) {
	rl := &fakeReloader{}
	h := New(fixedSource{}, rl, nil, quietLogger())

	rec := do(t, h, http.MethodPost, "/admin/v1/reload")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if rl.triggers.Load() != 1 || rl.reloads.Load() != 0 {
		t.Errorf("triggers = %d reloads = %d, want 1 and 0", rl.triggers.Load(), rl.reloads.Load())
	}

	var data ReloadResponse
	decodeEnvelope(t, rec, &data)
	if !data.Queued {
		t.Error("Queued = false")
	}
}

func TestReload_Wait(t *testing.T) {
	b := testBundle(t)
	rl := &fakeReloader{}
	h := New(fixedSource{b}, rl, nil, quietLogger())

	rec := do(t, h, http.MethodPost, "/admin/v1/reload?wait=true")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rl.reloads.Load() != 1 || rl.triggers.Load() != 0 {
		t.Errorf("reloads = %d triggers = %d, want 1 and 0", rl.reloads.Load(), rl.triggers.Load())
	}

	var data ReloadResponse
	decodeEnvelope(t, rec, &data)
	if data.Queued || data.Bundle == nil || data.Bundle.ID != b.ID() {
		t.Errorf("data = %+v", data)
	}
}

func TestReload_WaitFailure(t *testing.T) {
	b := testBundle(t)
	loadErr := &credential.LoadError{Reason: credential.ReasonKeyMismatch, Path: "key.pem", Err: errors.New("mismatch")}
	h := New(fixedSource{b}, &fakeReloader{err: loadErr}, nil, quietLogger())

	rec := do(t, h, http.MethodPost, "/admin/v1/reload?wait=1")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if code := rec.Header().Get("X-Error-Code"); code != CodeReloadFailed {
		t.Errorf("X-Error-Code = %q, want %q", code, CodeReloadFailed)
	}

	var resp struct {
		Code    string        `json:"code"`
		Details ReloadFailure `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Details.Reason != "key_mismatch" {
		t.Errorf("reason = %q, want key_mismatch", resp.Details.Reason)
	}
	if resp.Details.ActiveBundleID != b.ID() {
		t.Errorf("active_bundle_id = %q, want %q", resp.Details.ActiveBundleID, b.ID())
	}
}

func TestReload_NotConfigured(t *testing.T) {
	rec := do(t, New(nil, nil, nil, quietLogger()), http.MethodPost, "/admin/v1/reload")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestReload_MethodNotAllowed(t *testing.T) {
	rec := do(t, New(nil, &fakeReloader{}, nil, quietLogger()), http.MethodGet, "/admin/v1/reload")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "meshtls_up 1\n")
	})

	rec := do(t, New(nil, nil, metrics, quietLogger()), http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "meshtls_up") {
		t.Errorf("metrics status = %d body = %q", rec.Code, rec.Body.String())
	}

	rec = do(t, New(nil, nil, nil, quietLogger()), http.MethodGet, "/metrics")
	if rec.Code != http.StatusNotFound {
		t.Errorf("without metrics status = %d, want 404", rec.Code)
	}
}

func TestRequestIDHeaderFallback(t *testing.T) {
	h := New(nil, nil, nil, quietLogger())

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/status", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	resp := decodeEnvelope(t, rec, nil)
	if resp.RequestID != "req-abc" {
		t.Errorf("request_id = %q, want req-abc", resp.RequestID)
	}
}

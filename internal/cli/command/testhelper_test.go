package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshtls/internal/server/mtlsserver"
	"github.com/yndnr/meshtls/internal/testutil/pkitest"
)

// echoIdentity answers every session with the peer identity.
var echoIdentity = mtlsserver.HandlerFunc(func(_ context.Context, sess *mtlsserver.Session) {
	fmt.Fprintf(sess, "identity=%s\n", sess.Identity())
})

// runApp runs the application with args and returns what it printed.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app := App(echoIdentity)
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"meshtls-server"}, args...))
	return stdout.String(), err
}

// writeCredentials writes a server credential triple signed by a fresh CA.
func writeCredentials(t *testing.T) (pkitest.Files, *pkitest.CA) {
	t.Helper()
	ca := pkitest.NewCA(t, "test-root")
	leaf := ca.Issue(t, pkitest.LeafOptions{
		CommonName: "server",
		DNSNames:   []string{"localhost"},
		URIs:       []string{"spiffe://example.org/server"},
	})
	return pkitest.WriteFiles(t, t.TempDir(), leaf, ca), ca
}

func credentialArgs(f pkitest.Files) []string {
	return []string{"--cert", f.Cert, "--key", f.Key, "--ca", f.CA}
}

// mockServer creates a test HTTP server with custom handlers.
type mockServer struct {
	*httptest.Server
	handlers map[string]http.HandlerFunc
}

// newMockServer creates a new mock server.
func newMockServer(t *testing.T) *mockServer {
	m := &mockServer{
		handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for pattern, handler := range m.handlers {
			if strings.HasPrefix(r.URL.Path, pattern) {
				handler(w, r)
				return
			}
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

// handle registers a handler for a path pattern.
func (m *mockServer) handle(pattern string, handler http.HandlerFunc) {
	m.handlers[pattern] = handler
}

// jsonResponse writes a JSON response.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

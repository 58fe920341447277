package auth

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// MockBrowserOpener records OpenURL calls
type MockBrowserOpener struct {
	mu           sync.Mutex
	OpenURLFunc  func(url string) error
	OpenURLCalls []string
}

func (m *MockBrowserOpener) OpenURL(url string) error {
	m.mu.Lock()
	m.OpenURLCalls = append(m.OpenURLCalls, url)
	fn := m.OpenURLFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(url)
	}
	return nil
}

func (m *MockBrowserOpener) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.OpenURLCalls...)
}

// fakeProvider is a token endpoint that records every form it receives
type fakeProvider struct {
	mu     sync.Mutex
	forms  []url.Values
	status int
	reply  any
}

func newFakeProvider(t *testing.T, reply any) (*fakeProvider, *httptest.Server) {
	t.Helper()

	p := &fakeProvider{status: http.StatusOK, reply: reply}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth2/token" || r.Method != "POST" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		p.mu.Lock()
		p.forms = append(p.forms, r.PostForm)
		status, reply := p.status, p.reply
		p.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(server.Close)
	return p, server
}

func (p *fakeProvider) Forms() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]url.Values(nil), p.forms...)
}

// freePort returns a loopback port that was free a moment ago
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func testConfig(baseURL string, port int) Config {
	return Config{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		Username:     "user@example.com",
		Password:     "hunter2",
		State:        "unique-state-123",
		BaseURL:      baseURL,
		RedirectPort: port,
	}
}

package auth

import (
	"crypto/subtle"
	"net/http"
	"sync"

	"github.com/fastertools/atmo/internal/errs"
)

// authorizationState is shared between the callback handler and the flow
// driver for the duration of one authorization run.
type authorizationState struct {
	mu       sync.RWMutex
	expected string
	code     string
	server   *http.Server
	sealed   bool
	mismatch error

	done     chan struct{}
	doneOnce sync.Once
}

func newAuthorizationState(expected string) *authorizationState {
	return &authorizationState{
		expected: expected,
		done:     make(chan struct{}),
	}
}

// matches compares state against the issued value in constant time
func (s *authorizationState) matches(state string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return subtle.ConstantTimeCompare([]byte(s.expected), []byte(state)) == 1
}

// reject remembers a callback whose state did not match
func (s *authorizationState) reject() error {
	err := errs.New(errs.StateMismatch, "verify callback state", errStateMismatch)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mismatch = err
	return err
}

// lastMismatch returns the latest rejected callback, or nil
func (s *authorizationState) lastMismatch() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mismatch
}

// record stores code; the last writer wins. The first successful write
// signals completion.
func (s *authorizationState) record(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return errs.New(errs.SynchronizationFault, "record authorization code",
			errAlreadyCompleted)
	}
	s.code = code
	s.doneOnce.Do(func() { close(s.done) })
	return nil
}

// setServer stores the listener's stop handle. It must run before the
// listener starts serving.
func (s *authorizationState) setServer(srv *http.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.server = srv
}

// stopHandle returns the stored stop handle
func (s *authorizationState) stopHandle() *http.Server {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.server
}

// seal rejects further writes and returns the final code
func (s *authorizationState) seal() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed = true
	return s.code
}

// receivedCode returns the recorded code, or "" if none
func (s *authorizationState) receivedCode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.code
}

// callbackHandler serves the provider's redirect:
// GET /api/authorization_response?state=<s>&code=<c>
func callbackHandler(state *authorizationState) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+CallbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if !state.matches(q.Get("state")) {
			_ = state.reject()
			http.Error(w, "state string is not matching", http.StatusUnauthorized)
			return
		}

		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing authorization code", http.StatusBadRequest)
			return
		}

		if err := state.record(code); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(callbackPage))
	})
	return mux
}

const callbackPage = `<!DOCTYPE html>
<html><head><title>atmo</title></head>
<body><p>Authorization received. You can close this window.</p></body></html>
`

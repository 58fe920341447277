package auth

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastertools/atmo/internal/errs"
)

func callback(t *testing.T, h http.Handler, method, query string) int {
	t.Helper()
	req := httptest.NewRequest(method, CallbackPath+"?"+query, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestCallbackHandler_MatchingState(t *testing.T) {
	state := newAuthorizationState("s1")
	h := callbackHandler(state)

	assert.Equal(t, http.StatusOK, callback(t, h, "GET", "state=s1&code=c1"))
	assert.Equal(t, "c1", state.receivedCode())

	select {
	case <-state.done:
	default:
		t.Fatal("done was not signalled")
	}
}

func TestCallbackHandler_MismatchedState(t *testing.T) {
	state := newAuthorizationState("s1")
	h := callbackHandler(state)

	assert.Equal(t, http.StatusUnauthorized, callback(t, h, "GET", "state=forged&code=evil"))
	assert.Equal(t, http.StatusUnauthorized, callback(t, h, "GET", "code=evil"))
	assert.Equal(t, http.StatusUnauthorized, callback(t, h, "GET", "state=s&code=evil"))
	assert.Empty(t, state.receivedCode())

	mismatch := state.lastMismatch()
	require.Error(t, mismatch)
	assert.True(t, errs.IsKind(mismatch, errs.StateMismatch))

	// a forged callback after a good one does not overwrite it
	assert.Equal(t, http.StatusOK, callback(t, h, "GET", "state=s1&code=good"))
	assert.Equal(t, http.StatusUnauthorized, callback(t, h, "GET", "state=forged&code=evil"))
	assert.Equal(t, "good", state.receivedCode())
}

func TestCallbackHandler_MatchingStateIsNotAMismatch(t *testing.T) {
	state := newAuthorizationState("s1")
	h := callbackHandler(state)

	assert.Equal(t, http.StatusBadRequest, callback(t, h, "GET", "state=s1"))
	assert.Equal(t, http.StatusOK, callback(t, h, "GET", "state=s1&code=good"))
	assert.NoError(t, state.lastMismatch())
}

func TestCallbackHandler_EmptyCode(t *testing.T) {
	state := newAuthorizationState("s1")
	h := callbackHandler(state)

	assert.Equal(t, http.StatusBadRequest, callback(t, h, "GET", "state=s1"))
	assert.Empty(t, state.receivedCode())
}

func TestCallbackHandler_OnlyGETOnOneRoute(t *testing.T) {
	state := newAuthorizationState("s1")
	h := callbackHandler(state)

	assert.Equal(t, http.StatusMethodNotAllowed, callback(t, h, "POST", "state=s1&code=c1"))

	req := httptest.NewRequest("GET", "/other?state=s1&code=c1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, state.receivedCode())
}

func TestCallbackHandler_AfterSeal(t *testing.T) {
	state := newAuthorizationState("s1")
	h := callbackHandler(state)

	assert.Equal(t, http.StatusOK, callback(t, h, "GET", "state=s1&code=first"))
	assert.Equal(t, "first", state.seal())

	assert.Equal(t, http.StatusInternalServerError, callback(t, h, "GET", "state=s1&code=late"))
	assert.Equal(t, "first", state.receivedCode())
}

func TestCallbackHandler_ConcurrentValidCallbacks(t *testing.T) {
	state := newAuthorizationState("s1")
	h := callbackHandler(state)

	const n = 32
	codes := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		codes[fmt.Sprintf("code-%d", i)] = true
	}

	var wg sync.WaitGroup
	statuses := make(chan int, n)
	for code := range codes {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			statuses <- callback(t, h, "GET", "state=s1&code="+code)
		}(code)
	}
	wg.Wait()
	close(statuses)

	for status := range statuses {
		assert.Equal(t, http.StatusOK, status)
	}

	// exactly one code wins and it is one of those sent, intact
	winner := state.receivedCode()
	assert.True(t, codes[winner], "unexpected code %q", winner)
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fastertools/atmo/internal/errs"
)

// shutdownGrace bounds how long in-flight callback requests may take to
// finish once a code has been recorded
const shutdownGrace = 5 * time.Second

var (
	errAlreadyCompleted = errors.New("authorization already completed")
	errStateMismatch    = errors.New("callback state does not match the issued state")
)

// ConsentURL builds the provider's authorization URL for cfg. The state
// value is taken verbatim from cfg.
func ConsentURL(cfg Config) (string, error) {
	oc, err := cfg.OAuth2()
	if err != nil {
		return "", err
	}
	if cfg.State == "" {
		return "", errs.New(errs.InvalidConfig, "build consent url", fmt.Errorf("state is required"))
	}
	return oc.AuthCodeURL(cfg.State), nil
}

// Authorize runs the authorization-code grant: it starts the loopback
// callback listener, opens the consent page, waits for a callback carrying
// the issued state and exchanges the received code for a token.
func (m *Manager) Authorize(ctx context.Context) (Token, error) {
	cfg := m.oauth.Config()

	consentURL, err := ConsentURL(cfg)
	if err != nil {
		return Token{}, err
	}

	code, err := m.awaitCode(ctx, cfg, consentURL)
	if err != nil {
		return Token{}, err
	}

	return m.oauth.ExchangeCode(ctx, code)
}

// awaitCode serves the callback route until a valid code arrives
func (m *Manager) awaitCode(ctx context.Context, cfg Config, consentURL string) (string, error) {
	if m.config.AuthTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.AuthTimeout)
		defer cancel()
	}
	flowCtx, cancelFlow := context.WithCancel(ctx)
	defer cancelFlow()

	addr := cfg.ListenAddr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", errs.New(errs.ListenerBindFailure, "listen "+addr, err)
	}

	state := newAuthorizationState(cfg.State)
	srv := &http.Server{
		Handler:           callbackHandler(state),
		ReadHeaderTimeout: 10 * time.Second,
	}
	state.setServer(srv)

	g, gctx := errgroup.WithContext(flowCtx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errs.New(errs.Transport, "serve callback", err)
		}
		return nil
	})
	g.Go(func() error {
		return waitForCode(gctx, state)
	})

	if err := m.browser.OpenURL(consentURL); err != nil {
		cancelFlow()
		_ = g.Wait()
		return "", errs.New(errs.BrowserOpen, "open consent url", err)
	}

	if err := g.Wait(); err != nil {
		if mismatch := state.lastMismatch(); mismatch != nil {
			err = errors.Join(err, mismatch)
		}
		return "", errs.New(errs.AuthorizationIncomplete, "await authorization", err)
	}

	code := state.seal()
	if code == "" {
		return "", errs.New(errs.AuthorizationIncomplete, "await authorization", nil)
	}
	return code, nil
}

// waitForCode blocks until a code is recorded, then gracefully stops the
// listener. On cancellation the listener is closed immediately.
func waitForCode(ctx context.Context, state *authorizationState) error {
	select {
	case <-state.done:
		srv := state.stopHandle()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
		}
		return nil
	case <-ctx.Done():
		_ = state.stopHandle().Close()
		return ctx.Err()
	}
}

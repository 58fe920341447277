package cli

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"

	"github.com/fastertools/atmo/internal/config"
	"github.com/fastertools/atmo/internal/polling"
)

// consoleReporter implements polling.Reporter with the colored helpers
type consoleReporter struct{}

func (consoleReporter) Infof(format string, args ...interface{})  { Info(format, args...) }
func (consoleReporter) Warnf(format string, args ...interface{})  { Warn(format, args...) }
func (consoleReporter) Debugf(format string, args ...interface{}) { Debug(format, args...) }

// consentSpinner shows progress while the loop waits for the consent
// callback. It runs only in the authorizing state.
type consentSpinner struct {
	mu sync.Mutex
	sp *spinner.Spinner
}

func newConsentSpinner(w io.Writer) *consentSpinner {
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	sp.Suffix = " Waiting for authorization in the browser..."
	return &consentSpinner{sp: sp}
}

// OnState is a polling.Options.OnState callback
func (c *consentSpinner) OnState(s polling.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == polling.Authorizing {
		c.sp.Start()
		return
	}
	c.sp.Stop()
}

// printOpener replaces the browser with a printed consent link
type printOpener struct {
	w io.Writer
}

func (p printOpener) OpenURL(url string) error {
	_, err := fmt.Fprintf(p.w, "Open this URL in a browser to authorize atmo:\n\n  %s\n\n", url)
	return err
}

// bestEffortStore reads secrets from the keyring but treats an unavailable
// keyring as empty
type bestEffortStore struct {
	config.SecretStore
}

func (s bestEffortStore) Get(key string) (string, error) {
	value, err := s.SecretStore.Get(key)
	if err != nil && !errors.Is(err, config.ErrSecretNotFound) {
		Debug("keyring unavailable: %v", err)
		return "", config.ErrSecretNotFound
	}
	return value, err
}

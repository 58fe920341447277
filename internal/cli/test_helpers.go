package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastertools/atmo/internal/config"
)

// TestCommandExecution helps test cobra command execution
type TestCommandExecution struct {
	Command      *cobra.Command
	Args         []string
	ExpectError  bool
	ExpectOutput []string
	Validate     func(t *testing.T, stdout, stderr string, err error)
}

// ExecuteCommandTest runs a command with captured output
func ExecuteCommandTest(t *testing.T, test TestCommandExecution) {
	t.Helper()

	// Capture output, including the colored helpers
	var stdout, stderr bytes.Buffer
	captureHelpers(t, &stdout, &stderr)
	test.Command.SetOut(&stdout)
	test.Command.SetErr(&stderr)
	test.Command.SetArgs(test.Args)

	// Execute
	err := test.Command.Execute()

	// Check error expectation
	if test.ExpectError {
		assert.Error(t, err)
	} else {
		assert.NoError(t, err)
	}

	// Check output expectations
	output := stdout.String() + stderr.String()
	for _, expected := range test.ExpectOutput {
		assert.Contains(t, output, expected)
	}

	// Custom validation
	if test.Validate != nil {
		test.Validate(t, stdout.String(), stderr.String(), err)
	}
}

// captureHelpers redirects Success/Info/Warn/Error for the test
func captureHelpers(t *testing.T, stdout, stderr *bytes.Buffer) {
	t.Helper()
	oldOut, oldErr := colorOutput, errorOutput
	colorOutput, errorOutput = stdout, stderr
	t.Cleanup(func() {
		colorOutput, errorOutput = oldOut, oldErr
	})
}

// useConfigFile points --config at a temp file holding content
func useConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	}

	old := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = old })
	return path
}

// useSecrets replaces the keyring with an in-memory store
func useSecrets(t *testing.T, secrets map[string]string) *config.MockStore {
	t.Helper()
	store := config.NewMockStore(secrets, nil)

	old := newSecretStore
	newSecretStore = func() config.SecretStore { return store }
	t.Cleanup(func() { newSecretStore = old })
	return store
}

package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/streakgate/internal/testutil"
)

var cliNow = time.Date(2026, 3, 10, 15, 4, 5, 0, time.UTC)

const (
	testEmail    = "rank-test@example.com"
	testPassword = "pw"
)

// setHarnessEnv points the configuration at url with fast readiness polling.
func setHarnessEnv(t *testing.T, url string) {
	t.Helper()
	t.Setenv("BASE_URL", url)
	t.Setenv("TEST_EMAIL", testEmail)
	t.Setenv("TEST_PASSWORD", testPassword)
	t.Setenv("READY_TIMEOUT", "2s")
	t.Setenv("READY_INTERVAL", "10ms")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("RESULTS_DB", "")
}

// startFake serves a compliant fake service on the fixed test clock.
func startFake(t *testing.T) *testutil.FakeService {
	t.Helper()
	fake := testutil.NewFakeService(testutil.NewFixedClock(cliNow).Now)
	srv := fake.Start()
	t.Cleanup(srv.Close)
	setHarnessEnv(t, srv.URL)
	return fake
}

// execute runs cmd with args and returns stdout, stderr and the error.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// runCommand builds a run command with a fixed clock and run ids.
func runCommand(format string, ids ...string) *cobra.Command {
	return newRunCommand(&RunOptions{
		RootOptions: &RootOptions{Format: format},
		Now:         testutil.NewFixedClock(cliNow).Now,
		IDGenerator: testutil.NewFixedIDGenerator(ids...),
	})
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

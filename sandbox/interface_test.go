package sandbox

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealCommandRunner(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	t.Run("CapturesStreamsAndExitCode", func(t *testing.T) {
		runner := RealCommandRunner{}
		stdout, stderr, code, err := runner.RunCommand(context.Background(),
			[]string{"sh", "-c", "echo out; echo err >&2; exit 3"})
		require.NoError(t, err)
		assert.Equal(t, "out\n", stdout)
		assert.Equal(t, "err\n", stderr)
		assert.Equal(t, 3, code)
	})

	t.Run("NoCommand", func(t *testing.T) {
		_, _, _, err := RealCommandRunner{}.RunCommand(context.Background(), nil)
		assert.ErrorContains(t, err, "no command provided")
	})

	t.Run("InheritedPipeDoesNotOutliveCancellation", func(t *testing.T) {
		runner := RealCommandRunner{WaitDelay: 200 * time.Millisecond}
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, _, code, err := runner.RunCommand(ctx, []string{"sh", "-c", "sleep 30 & sleep 30"})
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Equal(t, -1, code)
		assert.Less(t, elapsed, 5*time.Second)
	})

	t.Run("BackgroundChildAfterCleanExit", func(t *testing.T) {
		runner := RealCommandRunner{WaitDelay: 200 * time.Millisecond}

		start := time.Now()
		stdout, _, code, err := runner.RunCommand(context.Background(), []string{"sh", "-c", "sleep 30 & echo done"})

		require.NoError(t, err)
		assert.Equal(t, "done\n", stdout)
		assert.Equal(t, 0, code)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}

package shell_test

import (
	"context"
	"testing"
	"time"

	"github.com/openkraft/keeper/internal/adapters/outbound/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExec_Success(t *testing.T) {
	out, err := shell.Exec{}.Output(context.Background(), "", "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}

func TestExec_StderrInError(t *testing.T) {
	_, err := shell.Exec{}.Output(context.Background(), "", "sh", "-c", "echo 'bad thing' >&2; exit 1")
	require.Error(t, err)
	assert.Equal(t, "sh: bad thing", err.Error())
}

func TestExec_StdoutKeptOnFailure(t *testing.T) {
	out, err := shell.Exec{}.Output(context.Background(), "", "sh", "-c", "echo '{\"a\":1}'; exit 1")
	require.Error(t, err)
	assert.Equal(t, "{\"a\":1}\n", string(out))
}

func TestExec_Dir(t *testing.T) {
	dir := t.TempDir()
	out, err := shell.Exec{}.Output(context.Background(), dir, "pwd")
	require.NoError(t, err)
	assert.Contains(t, string(out), dir)
}

func TestExec_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := shell.Exec{}.Output(ctx, "", "sleep", "5")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRun_SplitsCommandLine(t *testing.T) {
	assert.NoError(t, shell.Run(context.Background(), shell.Exec{}, "", "true"))
	assert.Error(t, shell.Run(context.Background(), shell.Exec{}, "", "false"))
	assert.Error(t, shell.Run(context.Background(), shell.Exec{}, "", "   "))
}

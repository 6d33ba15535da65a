package cmd

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVersionCmd(t *testing.T) {
	t.Run("creates version command", func(t *testing.T) {
		t.Parallel()
		cmd := NewVersionCmd("1.2.3")
		assert.NotNil(t, cmd)
		assert.Equal(t, "version", cmd.Use)
		assert.Equal(t, "Show version information", cmd.Short)
	})

	t.Run("command has run function", func(t *testing.T) {
		t.Parallel()
		cmd := NewVersionCmd("1.2.3")
		assert.NotNil(t, cmd.Run)
	})

	t.Run("command executes without error", func(t *testing.T) {
		t.Parallel()
		cmd := NewVersionCmd("1.2.3")
		err := cmd.Execute()
		require.NoError(t, err)
	})
}

func TestVersionCmd_Output(t *testing.T) {
	cmd := NewVersionCmd("1.2.3")

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := cmd.Execute()

	w.Close()
	os.Stdout = oldStdout

	require.NoError(t, err)

	out, _ := io.ReadAll(r)
	assert.Equal(t, "ipkg version 1.2.3\n", string(out))
}

func TestVersionCmd_DevelopmentVersion(t *testing.T) {
	t.Parallel()
	cmd := NewVersionCmd("dev")
	assert.NotNil(t, cmd)

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	err := cmd.Execute()
	require.NoError(t, err)
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, "assets/local.yaml", effectiveConfigPath(""))

	t.Setenv("CONFIG_PATH", "/etc/jobmarket.yaml")
	assert.Equal(t, "/etc/jobmarket.yaml", effectiveConfigPath(""))
	assert.Equal(t, "custom.yaml", effectiveConfigPath("custom.yaml"))
}

func TestRootCommand_Subcommands(t *testing.T) {
	t.Parallel()

	root := newRootCommand()
	for _, name := range []string{"up", "down", "drop", "version"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}

	down, _, err := root.Find([]string{"down"})
	require.NoError(t, err)
	assert.NotNil(t, down.Flags().Lookup("steps"))
}

func TestRootCommand_MissingConfig(t *testing.T) {
	t.Parallel()

	root := newRootCommand()
	root.SetArgs([]string{"version", "--config", t.TempDir() + "/missing.yaml"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

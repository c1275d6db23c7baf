package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommandMetadata(t *testing.T) {
	cmd := NewRootCommand(newTestDeps())

	assert.Equal(t, "queryward", cmd.Use)
	assert.Equal(t, "0.0.0-test", cmd.Version)
	assert.True(t, cmd.SilenceUsage)
	assert.NotEmpty(t, cmd.Short)
}

func TestNewRootCommandSubcommands(t *testing.T) {
	cmd := NewRootCommand(newTestDeps())

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"query", "ask", "history", "sessions", "serve", "doctor"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestNewRootCommandPersistentFlags(t *testing.T) {
	cmd := NewRootCommand(newTestDeps())

	session := cmd.PersistentFlags().Lookup("session")
	require.NotNil(t, session)
	assert.Equal(t, "s", session.Shorthand)

	require.NotNil(t, cmd.PersistentFlags().Lookup("limit"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("unrestricted"))
}

func TestRootCommandVersionFlag(t *testing.T) {
	deps := newTestDeps()
	out, err := runCommand(t, deps, "--version")

	require.NoError(t, err)
	assert.Contains(t, out, "0.0.0-test")
}

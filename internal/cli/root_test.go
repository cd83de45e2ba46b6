package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "cfstore", cmd.Use)
	assert.Contains(t, cmd.Long, "content-addressed")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"location", "add"}, {"location", "rm"}, {"location", "ls"},
		{"collection", "add"}, {"collection", "rm"}, {"collection", "empty"},
		{"collection", "ls"}, {"collection", "show"}, {"collection", "relate"},
		{"ingest"}, {"quark"},
		{"file", "show"}, {"file", "rm"},
		{"variable", "show"}, {"variable", "rm"},
		{"verify"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("db"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestQuarkCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	quarkCmd, _, err := cmd.Find([]string{"quark"})
	require.NoError(t, err)

	for _, name := range []string{"variable", "manifest", "start", "end", "dry-run"} {
		assert.NotNil(t, quarkCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "false", quarkCmd.Flags().Lookup("dry-run").DefValue)
}

func TestCollectionRemoveFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, use := range []string{"rm", "empty"} {
		sub, _, err := cmd.Find([]string{"collection", use})
		require.NoError(t, err)
		force := sub.Flags().Lookup("force")
		require.NotNil(t, force)
		assert.Equal(t, "false", force.DefValue)
	}
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "location", "ls"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

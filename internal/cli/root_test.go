package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "entrepo", cmd.Use)
	assert.Contains(t, cmd.Long, "CUE")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"validate", "plan", "find", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
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

	for _, name := range []string{"config", "driver", "dsn", "dialect", "schema-dir", "log-level", "log-format", "query-log"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing --%s", name)
	}
}

func TestQueryCommandFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"plan", "find"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			for _, flag := range []string{"where", "order", "limit", "offset", "count"} {
				assert.NotNil(t, sub.Flags().Lookup(flag), "missing --%s", flag)
			}
		})
	}
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	assert.NotNil(t, testCmd.Flags().Lookup("update"))
	assert.NotNil(t, testCmd.Flags().Lookup("filter"))
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	_, _, err := execute(t, cmd, "--format", "xml", "validate", cmsSchemaDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootFlagsReachConfig(t *testing.T) {
	dsn := seedCMSDatabase(t)
	schemaDir := mustAbs(t, cmsSchemaDir)
	chdir(t, t.TempDir())

	cmd := NewRootCommand()
	out, _, err := execute(t, cmd,
		"--dsn", dsn,
		"--schema-dir", schemaDir,
		"--log-level", "error",
		"find", "CmsUser", "--where", "status=dev", "--count",
	)

	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestInvalidConfigIsCommandError(t *testing.T) {
	chdir(t, t.TempDir())

	cmd := NewRootCommand()
	_, _, err := execute(t, cmd, "--driver", "oracle", "plan", "CmsUser")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid config")
	assert.Contains(t, err.Error(), `database.driver "oracle"`)
}

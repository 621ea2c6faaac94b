package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/entrepo/internal/config"
	"github.com/roach88/entrepo/internal/metadata"
	"github.com/roach88/entrepo/internal/store"
	"github.com/roach88/entrepo/internal/testutil"
)

var cmsSchemaDir = filepath.Join("..", "metadata", "testdata", "cms")

// testRootOptions returns options with a fixed configuration, so tests
// never read entrepo.yaml or ENTREPO_ variables.
func testRootOptions(format, dsn string) *RootOptions {
	return &RootOptions{
		Format: format,
		Config: &config.Config{
			Database:  config.DatabaseConfig{Driver: "sqlite3", DSN: dsn},
			Dialect:   "sqlite",
			SchemaDir: cmsSchemaDir,
			Log:       config.LogConfig{Level: "error", Format: "text"},
		},
	}
}

// execute runs cmd with args, returning stdout and stderr.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// seedCMSDatabase writes the CMS fixtures into a fresh SQLite file and
// returns its path.
func seedCMSDatabase(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cms.db")

	reg, err := metadata.LoadDir(cmsSchemaDir)
	require.NoError(t, err)

	st, err := store.Open(store.DriverSQLite3, path)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.CreateTables(ctx, reg))
	for _, row := range testutil.CMSFixtures() {
		et, err := reg.EntityType(row.Entity)
		require.NoError(t, err)
		require.NoError(t, st.Insert(ctx, et, row.Values))
	}
	return path
}

func mustAbs(t *testing.T, path string) string {
	t.Helper()
	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	return abs
}

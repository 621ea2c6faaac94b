package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/entrepo/internal/metadata"
	"github.com/roach88/entrepo/internal/store"
	"github.com/roach88/entrepo/internal/testutil"
	"github.com/roach88/entrepo/internal/uow"
)

type fixture struct {
	store *store.Store
	reg   *metadata.Registry
	log   *store.DebugStack
	mgr   *Manager
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.OpenMemory(store.WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	reg := testutil.CMSRegistry(t)
	testutil.SeedCMS(t, s, reg)

	f := &fixture{store: s, reg: reg, log: store.NewDebugStack()}
	f.mgr = f.newManager()
	return f
}

func (f *fixture) newManager() *Manager {
	return NewManager(f.reg, f.store,
		WithQueryLog(f.log),
		WithManagerLogger(quietLogger()),
		WithIDGenerator(testutil.NewFixedIDGenerator("")),
	)
}

func (f *fixture) repo(t *testing.T, name string) *Repository {
	t.Helper()
	r, err := f.mgr.Repository(name)
	require.NoError(t, err)
	return r
}

func (f *fixture) find(t *testing.T, name string, id any) *uow.Entity {
	t.Helper()
	e, err := f.mgr.Find(context.Background(), name, id)
	require.NoError(t, err)
	require.NotNil(t, e)
	return e
}

func (f *fixture) tableCount(t *testing.T, table string) int64 {
	t.Helper()
	n, err := f.store.TableCount(context.Background(), table)
	require.NoError(t, err)
	return n
}

func usernames(entities []*uow.Entity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.GetString("username")
	}
	return out
}

func ids(entities []*uow.Entity) []int64 {
	out := make([]int64, len(entities))
	for i, e := range entities {
		out[i] = e.GetInt("id")
	}
	return out
}

func reversed[T any](in []T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

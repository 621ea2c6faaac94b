package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/entrepo/internal/criteria"
	"github.com/roach88/entrepo/internal/metadata"
	"github.com/roach88/entrepo/internal/ormerr"
	"github.com/roach88/entrepo/internal/testutil"
	"github.com/roach88/entrepo/internal/uow"
)

// articleRepository adds a finder to the CmsArticle repository.
type articleRepository struct {
	*Repository
}

func (r *articleRepository) FindByAuthor(ctx context.Context, userID any) ([]*uow.Entity, error) {
	return r.FindBy(ctx, criteria.Map{"user": userID}, OrderBy("id", "ASC"))
}

// auditedRepository stands in for an application-wide default repository.
type auditedRepository struct {
	*Repository
}

func articles(base *Repository) (EntityRepository, error) {
	return &articleRepository{base}, nil
}

func audited(base *Repository) (EntityRepository, error) {
	return &auditedRepository{base}, nil
}

// registryNaming returns the CMS registry with entity's metadata naming repo.
func registryNaming(t *testing.T, entity, repo string) *metadata.Registry {
	t.Helper()
	types := testutil.CMSTypes()
	for _, et := range types {
		if et.Name == entity {
			et.Repository = repo
		}
	}
	reg, err := metadata.Build(types...)
	require.NoError(t, err)
	return reg
}

func TestEntityRepositoryDefaultsToBase(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "", f.mgr.DefaultRepository())
	r, err := f.mgr.EntityRepository(`\CmsUser`)
	require.NoError(t, err)
	base := f.repo(t, "CmsUser")
	assert.Same(t, base, r)
}

func TestDefaultRepository(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mgr := NewManager(registryNaming(t, "CmsArticle", "articles"), f.store,
		WithRepository("articles", articles),
		WithRepository("audited", audited),
		WithManagerLogger(quietLogger()),
	)

	require.NoError(t, mgr.SetDefaultRepository("audited"))
	assert.Equal(t, "audited", mgr.DefaultRepository())

	addresses, err := mgr.EntityRepository("CmsAddress")
	require.NoError(t, err)
	assert.IsType(t, &auditedRepository{}, addresses)
	n, err := addresses.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Metadata naming a repository wins over the default.
	r, err := mgr.EntityRepository("CmsArticle")
	require.NoError(t, err)
	custom, ok := r.(*articleRepository)
	require.True(t, ok, "got %T", r)
	byAuthor, err := custom.FindByAuthor(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(byAuthor))

	again, err := mgr.EntityRepository("CmsArticle")
	require.NoError(t, err)
	assert.Same(t, r, again)

	require.NoError(t, mgr.SetDefaultRepository(""))
	assert.Equal(t, "", mgr.DefaultRepository())

	users, err := mgr.EntityRepository("CmsUser")
	require.NoError(t, err)
	assert.IsType(t, &Repository{}, users)

	// Repositories already built keep their type.
	addresses, err = mgr.EntityRepository("CmsAddress")
	require.NoError(t, err)
	assert.IsType(t, &auditedRepository{}, addresses)
}

func TestSetDefaultRepositoryRejectsUnregistered(t *testing.T) {
	f := newFixture(t)
	mgr := NewManager(f.reg, f.store,
		WithRepository("audited", audited),
		WithRepository("removed", audited),
		WithRepository("removed", nil),
		WithManagerLogger(quietLogger()),
	)

	for _, name := range []string{"nope", "removed"} {
		err := mgr.SetDefaultRepository(name)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ormerr.ErrInvalidRepository))
		assert.Contains(t, err.Error(), "Invalid repository '"+name+"'")
	}
	assert.Equal(t, "", mgr.DefaultRepository())
}

func TestEntityRepositoryInvalid(t *testing.T) {
	f := newFixture(t)
	users := f.repo(t, "CmsUser")
	boom := errors.New("boom")

	tests := []struct {
		name    string
		factory RepositoryFactory
		want    error
	}{
		{"not_registered", nil, ormerr.ErrInvalidRepository},
		{"nil_repository", func(*Repository) (EntityRepository, error) { return nil, nil }, ormerr.ErrInvalidRepository},
		{"other_entity_type", func(*Repository) (EntityRepository, error) { return users, nil }, ormerr.ErrInvalidRepository},
		{"factory_error", func(*Repository) (EntityRepository, error) { return nil, boom }, boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := NewManager(registryNaming(t, "CmsArticle", "articles"), f.store,
				WithRepository("articles", tt.factory),
				WithManagerLogger(quietLogger()),
			)

			_, err := mgr.EntityRepository("CmsArticle")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			// Types without a custom repository are unaffected.
			_, err = mgr.EntityRepository("CmsUser")
			assert.NoError(t, err)
		})
	}

	_, err := f.mgr.EntityRepository("Nope")
	assert.True(t, errors.Is(err, ormerr.ErrUnknownEntityType))
}

func TestTransactionHoldsSQLiteConnection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	holder := f.newManager()
	require.NoError(t, holder.Begin(ctx))

	users, err := f.newManager().Repository("CmsUser")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = users.FindBy(waitCtx, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ormerr.ErrQueryExecutionFailed))
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)

	require.NoError(t, holder.Commit())
	all, err := users.FindBy(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

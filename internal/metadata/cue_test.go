package metadata

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/entrepo/internal/ir"
)

func TestCompileEntityBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: CmsUser: {
			table: "cms_users"
			fields: {
				id:       int
				status:   string | null
				username: {type: string, column: "user_name"}
				active:   bool
			}
			associations: {
				email: {target: "CmsEmail", kind: "one_to_one", joinColumn: "email_id"}
			}
		}
	`)
	require.NoError(t, v.Err())

	et, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.CmsUser")))
	require.NoError(t, err)

	assert.Equal(t, "CmsUser", et.Name)
	assert.Equal(t, "cms_users", et.Table)
	assert.Equal(t, []string{"id"}, et.Identifier)
	assert.False(t, et.IsVersioned())

	require.Len(t, et.Fields, 4)
	assert.Equal(t, ir.Field{Name: "id", Column: "id", Type: ir.TypeInt}, et.Fields[0])
	assert.Equal(t, ir.Field{Name: "status", Column: "status", Type: ir.TypeString, Nullable: true}, et.Fields[1])
	assert.Equal(t, ir.Field{Name: "username", Column: "user_name", Type: ir.TypeString}, et.Fields[2])
	assert.Equal(t, ir.TypeBool, et.Fields[3].Type)

	require.Len(t, et.Associations, 1)
	assert.Equal(t, ir.Association{
		Name: "email", Target: "CmsEmail", Kind: ir.OneToOne, JoinColumn: "email_id",
	}, et.Associations[0])
}

func TestCompileEntityDefaults(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: Tag: {
			fields: {id: int, label: string}
			associations: {
				owner: {target: "User", joinColumn: "owner_id"}
				posts: {target: "Post", mappedBy: "tag"}
			}
		}
	`)
	require.NoError(t, v.Err())

	et, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Tag")))
	require.NoError(t, err)

	assert.Equal(t, "tag", et.Table)
	assert.Empty(t, et.Repository)
	assert.Equal(t, []string{"id"}, et.Identifier)
	assert.Equal(t, ir.ManyToOne, et.Associations[0].Kind)
	assert.Equal(t, ir.OneToMany, et.Associations[1].Kind)
}

func TestCompileEntityRepository(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: Page: {
			repository: "pages"
			fields: {id: int}
		}
		entity: Bad: {
			repository: 7
			fields: {id: int}
		}
	`)
	require.NoError(t, v.Err())

	et, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Page")))
	require.NoError(t, err)
	assert.Equal(t, "pages", et.Repository)

	_, err = CompileEntity(v.LookupPath(cue.ParsePath("entity.Bad")))
	assert.Error(t, err)
}

func TestCompileEntityCompositeIdentifier(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: Setting: {
			id: ["scope", "name"]
			fields: {scope: string, name: string, value: string}
		}
	`)
	require.NoError(t, v.Err())

	et, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Setting")))
	require.NoError(t, err)
	assert.Equal(t, []string{"scope", "name"}, et.Identifier)
}

func TestCompileEntityErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		contains string
	}{
		{
			name:     "float field",
			src:      `entity: X: fields: {id: int, price: float}`,
			contains: "float types are not supported",
		},
		{
			name:     "number field",
			src:      `entity: X: fields: {id: int, price: number}`,
			contains: "float types are not supported",
		},
		{
			name:     "no fields",
			src:      `entity: X: table: "x"`,
			contains: "at least one field is required",
		},
		{
			name:     "field struct without type",
			src:      `entity: X: fields: {id: int, name: {column: "n"}}`,
			contains: "must declare a type",
		},
		{
			name:     "association without target",
			src:      `entity: X: {fields: {id: int}, associations: a: {joinColumn: "a_id"}}`,
			contains: "target is required",
		},
		{
			name:     "unknown association kind",
			src:      `entity: X: {fields: {id: int}, associations: a: {target: "X", kind: "many_to_many", joinColumn: "a_id"}}`,
			contains: "unknown association kind",
		},
		{
			name:     "identifier not a string",
			src:      `entity: X: {id: 5, fields: {id: int}}`,
			contains: "id must be a string or a list of strings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := cuecontext.New()
			v := ctx.CompileString(tt.src)
			require.NoError(t, v.Err())

			_, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.X")))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "fields", Message: "bad"}
	assert.Equal(t, "fields: bad", err.Error())
}

func TestCompileSourceValidates(t *testing.T) {
	_, err := CompileSource(`
		entity: Post: {
			fields: {id: int}
			associations: author: {target: "Ghost", joinColumn: "author_id"}
		}
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrUnknownTarget)
}

func TestCompileSourceSyntaxError(t *testing.T) {
	_, err := CompileSource(`entity: {`)
	require.Error(t, err)
}

func TestCompileSourceNoEntities(t *testing.T) {
	_, err := CompileSource(`other: 1`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entity definitions found")
}

func TestLoadDir(t *testing.T) {
	reg, err := LoadDir("testdata/cms")
	require.NoError(t, err)

	assert.Equal(t, []string{"CmsAddress", "CmsArticle", "CmsEmail", "CmsSetting", "CmsUser"}, reg.Names())

	user, err := reg.EntityType("CmsUser")
	require.NoError(t, err)
	assert.Equal(t, "cms_users", user.Table)

	article, err := reg.EntityType("CmsArticle")
	require.NoError(t, err)
	assert.Equal(t, "version", article.Version)

	setting, err := reg.EntityType("CmsSetting")
	require.NoError(t, err)
	f, ok := setting.Field("value")
	require.True(t, ok)
	assert.Equal(t, "setting_value", f.Column)
	assert.True(t, f.Nullable)
}

func TestLoadDirErrors(t *testing.T) {
	_, err := LoadDir("testdata/does-not-exist")
	require.Error(t, err)

	_, err = LoadDir(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CUE files found")

	_, err = LoadDir("testdata/cms/cms.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

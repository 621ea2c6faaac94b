package planner

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/entrepo/internal/criteria"
	"github.com/roach88/entrepo/internal/ir"
	"github.com/roach88/entrepo/internal/metadata"
	"github.com/roach88/entrepo/internal/queryir"
	"github.com/roach88/entrepo/internal/testutil"
)

const userColumns = "SELECT t0.id, t0.status, t0.username, t0.name, t0.email_id FROM cms_users t0"

type fixture struct {
	reg  *metadata.Registry
	norm *criteria.Normalizer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := testutil.CMSRegistry(t)
	return &fixture{reg: reg, norm: criteria.NewNormalizer(reg)}
}

func (f *fixture) query(t *testing.T, entity string, m criteria.Map, order criteria.Order, page criteria.Page) *criteria.Query {
	t.Helper()
	q, err := f.norm.Normalize(testutil.EntityType(t, f.reg, entity), m, order, page)
	require.NoError(t, err)
	return q
}

func (f *fixture) matching(t *testing.T, entity string, c queryir.Criteria) *criteria.Query {
	t.Helper()
	q, err := f.norm.Resolve(testutil.EntityType(t, f.reg, entity), c)
	require.NoError(t, err)
	return q
}

func intPtr(n int) *int { return &n }

func describePlan(p *Plan) []byte {
	var b bytes.Buffer
	b.WriteString(p.SQL)
	b.WriteString("\n")
	for i, prm := range p.Params {
		fmt.Fprintf(&b, "%d: %s\n", i+1, prm)
	}
	return b.Bytes()
}

func TestPlanGolden(t *testing.T) {
	f := newFixture(t)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	t.Run("find_by_status_null_split", func(t *testing.T) {
		q := f.query(t, "CmsUser",
			criteria.Map{"status": []any{"dev", nil}},
			criteria.Order{{Field: "username", Direction: "ASC"}},
			criteria.Page{})
		plan, err := New(f.reg).Select(q)
		require.NoError(t, err)
		g.Assert(t, "find_by_status_null_split", describePlan(plan))
	})

	t.Run("association_hop", func(t *testing.T) {
		q := f.query(t, "CmsAddress",
			criteria.Map{"user.username": "romanb", "user.name": "Roman"},
			criteria.Order{{Field: "user.name", Direction: "desc"}},
			criteria.Page{Limit: intPtr(5), Offset: intPtr(10)})
		plan, err := New(f.reg).Select(q)
		require.NoError(t, err)
		g.Assert(t, "association_hop", describePlan(plan))
	})

	t.Run("matching_postgres", func(t *testing.T) {
		q := f.matching(t, "CmsUser", queryir.NewCriteria().
			WithWhere(queryir.AllOf(
				queryir.In("status", "dev", "freak"),
				queryir.AnyOf(queryir.IContains("name", "AL"), queryir.Neq("status", nil)),
			)).
			OrderBy("id", "desc").
			SetMaxResults(3))
		plan, err := New(f.reg, WithDialect(Postgres{})).Select(q)
		require.NoError(t, err)
		g.Assert(t, "matching_postgres", describePlan(plan))
	})
}

func TestSelectSQL(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		entity string
		m      criteria.Map
		order  criteria.Order
		page   criteria.Page
		sql    string
		params []Param
	}{
		{
			name:   "find all",
			entity: "CmsUser",
			sql:    userColumns,
		},
		{
			name:   "findOneBy ordered",
			entity: "CmsUser",
			m:      criteria.Map{"status": "dev"},
			order:  criteria.Order{{Field: "username", Direction: "ASC"}},
			page:   criteria.Page{Limit: intPtr(1)},
			sql:    userColumns + " WHERE t0.status = ? ORDER BY t0.username ASC LIMIT 1",
			params: []Param{{Type: ParamType{Scalar: ir.TypeString}, Value: ir.IRString("dev")}},
		},
		{
			name:   "is null",
			entity: "CmsUser",
			m:      criteria.Map{"status": nil},
			sql:    userColumns + " WHERE t0.status IS NULL",
		},
		{
			name:   "owning association compares join column",
			entity: "CmsArticle",
			m:      criteria.Map{"user": 1},
			sql:    "SELECT t0.id, t0.topic, t0.text, t0.version, t0.user_id FROM cms_articles t0 WHERE t0.user_id = ?",
			params: []Param{{Type: ParamType{Scalar: ir.TypeInt}, Value: ir.IRInt(1)}},
		},
		{
			name:   "order by owning association",
			entity: "CmsArticle",
			order:  criteria.Order{{Field: "user", Direction: "ASC"}, {Field: "id", Direction: "DESC"}},
			sql:    "SELECT t0.id, t0.topic, t0.text, t0.version, t0.user_id FROM cms_articles t0 ORDER BY t0.user_id ASC, t0.id DESC",
		},
		{
			name:   "join only from ordering",
			entity: "CmsArticle",
			order:  criteria.Order{{Field: "user.username", Direction: "ASC"}},
			sql: "SELECT t0.id, t0.topic, t0.text, t0.version, t0.user_id FROM cms_articles t0 " +
				"LEFT JOIN cms_users t1 ON t1.id = t0.user_id ORDER BY t1.username ASC",
		},
		{
			name:   "offset without limit",
			entity: "CmsUser",
			page:   criteria.Page{Offset: intPtr(2)},
			sql:    userColumns + " LIMIT -1 OFFSET 2",
		},
		{
			name:   "empty in",
			entity: "CmsUser",
			m:      criteria.Map{"id": []int{}},
			sql:    userColumns + " WHERE 1 = 0",
		},
		{
			name:   "in list is one array param",
			entity: "CmsUser",
			m:      criteria.Map{"id": []int{1, 2, 3}},
			sql:    userColumns + " WHERE t0.id IN (?)",
			params: []Param{{
				Type:  ParamType{Scalar: ir.TypeInt, Array: true},
				Value: ir.IRArray{ir.IRInt(1), ir.IRInt(2), ir.IRInt(3)},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := New(f.reg).Select(f.query(t, tt.entity, tt.m, tt.order, tt.page))
			require.NoError(t, err)
			assert.Equal(t, KindSelect, plan.Kind)
			assert.Equal(t, tt.sql, plan.SQL)
			assert.Equal(t, tt.params, plan.Params)
			assert.Len(t, plan.Segments, len(plan.Params)+1)
		})
	}
}

func TestMatchingSQL(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		where  queryir.Expression
		sql    string
		values []ir.IRValue
	}{
		{
			name:  "neq null",
			where: queryir.Neq("status", nil),
			sql:   userColumns + " WHERE t0.status IS NOT NULL",
		},
		{
			name:   "not in with null",
			where:  queryir.NotIn("status", "dev", nil),
			sql:    userColumns + " WHERE t0.status NOT IN (?) AND t0.status IS NOT NULL",
			values: []ir.IRValue{ir.IRArray{ir.IRString("dev")}},
		},
		{
			name:  "empty not in",
			where: queryir.NotIn("status"),
			sql:   userColumns + " WHERE 1 = 1",
		},
		{
			name:   "comparison operators",
			where:  queryir.AllOf(queryir.Gt("id", 1), queryir.Lte("id", 3), queryir.Lt("id", 9), queryir.Gte("id", 0)),
			sql:    userColumns + " WHERE t0.id > ? AND t0.id <= ? AND t0.id < ? AND t0.id >= ?",
			values: []ir.IRValue{ir.IRInt(1), ir.IRInt(3), ir.IRInt(9), ir.IRInt(0)},
		},
		{
			name:   "patterns escape metacharacters",
			where:  queryir.AnyOf(queryir.Contains("name", `50%_off\`), queryir.StartsWith("name", "Ben"), queryir.EndsWith("name", "der")),
			sql:    userColumns + ` WHERE t0.name LIKE ? ESCAPE '\' OR t0.name LIKE ? ESCAPE '\' OR t0.name LIKE ? ESCAPE '\'`,
			values: []ir.IRValue{ir.IRString(`%50\%\_off\\%`), ir.IRString("Ben%"), ir.IRString("%der")},
		},
		{
			name:   "case insensitive lowers operand",
			where:  queryir.IStartsWith("username", "BEB"),
			sql:    userColumns + ` WHERE LOWER(t0.username) LIKE ? ESCAPE '\'`,
			values: []ir.IRValue{ir.IRString("beb%")},
		},
		{
			name:   "nested groups are parenthesized",
			where:  queryir.AnyOf(queryir.AllOf(queryir.Eq("id", 1), queryir.Eq("status", "freak")), queryir.Eq("id", 2)),
			sql:    userColumns + " WHERE (t0.id = ? AND t0.status = ?) OR t0.id = ?",
			values: []ir.IRValue{ir.IRInt(1), ir.IRString("freak"), ir.IRInt(2)},
		},
		{
			name:  "empty disjunction",
			where: queryir.AnyOf(),
			sql:   userColumns + " WHERE 1 = 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := f.matching(t, "CmsUser", queryir.NewCriteria().WithWhere(tt.where))
			plan, err := New(f.reg).Select(q)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, plan.SQL)
			if tt.values == nil {
				assert.Empty(t, plan.Params)
			} else {
				assert.Equal(t, tt.values, plan.ParamValues())
			}
		})
	}
}

func TestCountPlan(t *testing.T) {
	f := newFixture(t)
	q := f.query(t, "CmsAddress",
		criteria.Map{"user.status": "dev"},
		criteria.Order{{Field: "city", Direction: "ASC"}},
		criteria.Page{Limit: intPtr(1)})

	plan, err := New(f.reg).Count(q)
	require.NoError(t, err)
	assert.Equal(t, KindCount, plan.Kind)
	assert.Nil(t, plan.Mapping)
	assert.Equal(t,
		"SELECT COUNT(*) FROM cms_addresses t0 LEFT JOIN cms_users t1 ON t1.id = t0.user_id WHERE t1.status = ?",
		plan.SQL)
	assert.Equal(t, []string{"string"}, plan.ParamTypes())
}

func TestLookupPlan(t *testing.T) {
	f := newFixture(t)
	user := testutil.EntityType(t, f.reg, "CmsUser")
	setting := testutil.EntityType(t, f.reg, "CmsSetting")

	plan, err := New(f.reg).Lookup(user, []ir.IRValue{ir.IRInt(1)}, LockPessimisticWrite)
	require.NoError(t, err)
	assert.Equal(t, userColumns+" WHERE t0.id = ?", plan.SQL)
	assert.Equal(t, LockPessimisticWrite, plan.Lock)

	plan, err = New(f.reg, WithDialect(Postgres{})).Lookup(user, []ir.IRValue{ir.IRInt(1)}, LockPessimisticWrite)
	require.NoError(t, err)
	assert.Equal(t, "SELECT t0.id, t0.status, t0.username, t0.name, t0.email_id FROM cms_users t0 WHERE t0.id = $1 FOR UPDATE", plan.SQL)

	plan, err = New(f.reg, WithDialect(Postgres{})).Lookup(user, []ir.IRValue{ir.IRInt(1)}, LockPessimisticRead)
	require.NoError(t, err)
	assert.Contains(t, plan.SQL, "FOR SHARE")

	plan, err = New(f.reg).Lookup(setting, []ir.IRValue{ir.IRString("site"), ir.IRString("title")}, LockNone)
	require.NoError(t, err)
	assert.Equal(t, "SELECT t0.scope, t0.name, t0.setting_value FROM cms_settings t0 WHERE t0.scope = ? AND t0.name = ?", plan.SQL)

	_, err = New(f.reg).Lookup(setting, []ir.IRValue{ir.IRString("site")}, LockNone)
	assert.Error(t, err)
}

func TestBindExpandsArrays(t *testing.T) {
	f := newFixture(t)
	q := f.matching(t, "CmsUser", queryir.NewCriteria().WithWhere(queryir.AllOf(
		queryir.In("id", 1, 2),
		queryir.Eq("status", "dev"),
	)))

	plan, err := New(f.reg).Select(q)
	require.NoError(t, err)
	sql, args := plan.Bind()
	assert.Equal(t, userColumns+" WHERE t0.id IN (?, ?) AND t0.status = ?", sql)
	assert.Equal(t, []any{int64(1), int64(2), "dev"}, args)

	plan, err = New(f.reg, WithDialect(Postgres{})).Select(q)
	require.NoError(t, err)
	assert.Equal(t, userColumns+" WHERE t0.id IN ($1) AND t0.status = $2", plan.SQL)
	sql, args = plan.Bind()
	assert.Equal(t, userColumns+" WHERE t0.id IN ($1, $2) AND t0.status = $3", sql)
	assert.Len(t, args, 3)
}

func TestPlanningIsDeterministic(t *testing.T) {
	f := newFixture(t)
	m := criteria.Map{"status": []any{"dev", nil}, "username": "asm89", "email.email": "x@example.com"}
	order := criteria.Order{{Field: "email.id", Direction: "ASC"}}

	first, err := New(f.reg).Select(f.query(t, "CmsUser", m, order, criteria.Page{}))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := New(f.reg).Select(f.query(t, "CmsUser", m, order, criteria.Page{}))
		require.NoError(t, err)
		assert.Equal(t, first.SQL, again.SQL)
		assert.Equal(t, first.Params, again.Params)
		assert.Equal(t, first.Joins, again.Joins)
	}
	require.Len(t, first.Joins, 1)
	assert.Equal(t, "t1", first.Joins[0].Alias)

	fp1, err := first.Fingerprint()
	require.NoError(t, err)
	other, err := New(f.reg).Select(f.query(t, "CmsUser", criteria.Map{"username": "romanb"}, nil, criteria.Page{}))
	require.NoError(t, err)
	fp2, err := other.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp2)
	assert.Len(t, fp1, 64)
}

func TestResultMapping(t *testing.T) {
	f := newFixture(t)
	m, err := NewResultMapping(f.reg, testutil.EntityType(t, f.reg, "CmsUser"), "u")
	require.NoError(t, err)

	assert.Equal(t, "CmsUser", m.Entity)
	assert.Equal(t, "u", m.Alias)
	assert.Equal(t, []string{"id", "status", "username", "name", "email"}, m.Names())
	last := m.Columns[len(m.Columns)-1]
	assert.Equal(t, ColumnJoin, last.Kind)
	assert.Equal(t, "email_id", last.Column)
	assert.Equal(t, "CmsEmail", last.Target)
	assert.Equal(t, ir.TypeInt, last.Type)
}

func TestPlanNilQuery(t *testing.T) {
	f := newFixture(t)
	_, err := New(f.reg).Select(nil)
	assert.Error(t, err)
}

func TestDialects(t *testing.T) {
	d, err := DialectByName("postgres")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())
	assert.Equal(t, "$3", d.Placeholder(3))
	assert.Equal(t, " OFFSET 4", d.LimitOffset(nil, intPtr(4)))

	d, err = DialectByName("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, "?", d.Placeholder(3))
	assert.Equal(t, " LIMIT 2 OFFSET 4", d.LimitOffset(intPtr(2), intPtr(4)))
	assert.Equal(t, "", d.LockClause(LockPessimisticWrite))

	_, err = DialectByName("oracle")
	assert.Error(t, err)
}

func TestLockModes(t *testing.T) {
	for _, m := range []LockMode{LockNone, LockOptimistic, LockPessimisticRead, LockPessimisticWrite} {
		parsed, err := ParseLockMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	assert.True(t, LockPessimisticRead.IsPessimistic())
	assert.False(t, LockOptimistic.IsPessimistic())
	_, err := ParseLockMode("exclusive")
	assert.Error(t, err)
}

func TestParamTypeString(t *testing.T) {
	assert.Equal(t, "int", ParamType{Scalar: ir.TypeInt}.String())
	assert.Equal(t, "string[]", ParamType{Scalar: ir.TypeString, Array: true}.String())
}

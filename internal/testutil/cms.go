// Package testutil provides the CMS test model and deterministic helpers
// shared by package tests.
//
// The CMS model covers every mapping shape the repository supports:
//
//	CmsUser     scalar fields, nullable status, inverse one-to-one (address),
//	            owning one-to-one (email)
//	CmsAddress  owning one-to-one back to CmsUser
//	CmsEmail    inverse one-to-one back to CmsUser
//	CmsArticle  versioned, owning many-to-one to CmsUser
//	CmsSetting  composite identifier (scope, name)
package testutil

import (
	"testing"

	"github.com/roach88/entrepo/internal/ir"
	"github.com/roach88/entrepo/internal/metadata"
)

// CMSTypes returns fresh copies of the CMS entity types.
func CMSTypes() []*ir.EntityType {
	return []*ir.EntityType{
		{
			Name:  "CmsUser",
			Table: "cms_users",
			Fields: []ir.Field{
				{Name: "id", Column: "id", Type: ir.TypeInt},
				{Name: "status", Column: "status", Type: ir.TypeString, Nullable: true},
				{Name: "username", Column: "username", Type: ir.TypeString},
				{Name: "name", Column: "name", Type: ir.TypeString},
			},
			Associations: []ir.Association{
				{Name: "address", Target: "CmsAddress", Kind: ir.OneToOne, MappedBy: "user"},
				{Name: "email", Target: "CmsEmail", Kind: ir.OneToOne, JoinColumn: "email_id"},
			},
			Identifier: []string{"id"},
		},
		{
			Name:  "CmsAddress",
			Table: "cms_addresses",
			Fields: []ir.Field{
				{Name: "id", Column: "id", Type: ir.TypeInt},
				{Name: "country", Column: "country", Type: ir.TypeString},
				{Name: "zip", Column: "zip", Type: ir.TypeString},
				{Name: "city", Column: "city", Type: ir.TypeString},
			},
			Associations: []ir.Association{
				{Name: "user", Target: "CmsUser", Kind: ir.OneToOne, JoinColumn: "user_id"},
			},
			Identifier: []string{"id"},
		},
		{
			Name:  "CmsEmail",
			Table: "cms_emails",
			Fields: []ir.Field{
				{Name: "id", Column: "id", Type: ir.TypeInt},
				{Name: "email", Column: "email", Type: ir.TypeString},
			},
			Associations: []ir.Association{
				{Name: "user", Target: "CmsUser", Kind: ir.OneToOne, MappedBy: "email"},
			},
			Identifier: []string{"id"},
		},
		{
			Name:  "CmsArticle",
			Table: "cms_articles",
			Fields: []ir.Field{
				{Name: "id", Column: "id", Type: ir.TypeInt},
				{Name: "topic", Column: "topic", Type: ir.TypeString},
				{Name: "text", Column: "text", Type: ir.TypeString},
				{Name: "version", Column: "version", Type: ir.TypeInt},
			},
			Associations: []ir.Association{
				{Name: "user", Target: "CmsUser", Kind: ir.ManyToOne, JoinColumn: "user_id"},
			},
			Identifier: []string{"id"},
			Version:    "version",
		},
		{
			Name:  "CmsSetting",
			Table: "cms_settings",
			Fields: []ir.Field{
				{Name: "scope", Column: "scope", Type: ir.TypeString},
				{Name: "name", Column: "name", Type: ir.TypeString},
				{Name: "value", Column: "setting_value", Type: ir.TypeString, Nullable: true},
			},
			Identifier: []string{"scope", "name"},
		},
	}
}

// CMSRegistry builds a validated registry of the CMS model.
func CMSRegistry(t testing.TB) *metadata.Registry {
	t.Helper()
	reg, err := metadata.Build(CMSTypes()...)
	if err != nil {
		t.Fatalf("build CMS registry: %v", err)
	}
	return reg
}

// EntityType returns one CMS type from reg, failing the test if absent.
func EntityType(t testing.TB, reg *metadata.Registry, name string) *ir.EntityType {
	t.Helper()
	et, err := reg.EntityType(name)
	if err != nil {
		t.Fatalf("entity type %s: %v", name, err)
	}
	return et
}

// Row is one fixture row. Values are keyed by field or association name.
type Row struct {
	Entity string
	Values map[string]any
}

// CMSFixtures returns the standard data set in insertion order: four users
// with statuses freak, dev, NULL and dev; two emails; two addresses; three
// articles; two settings.
//
//	id  name       username  status  email
//	1   Roman      romanb    freak   1
//	2   Guilherme  gblanco   dev     2
//	3   Benjamin   beberlei  NULL    -
//	4   Alexander  asm89     dev     -
func CMSFixtures() []Row {
	return []Row{
		{"CmsEmail", map[string]any{"id": 1, "email": "roman@example.com"}},
		{"CmsEmail", map[string]any{"id": 2, "email": "guilherme@example.com"}},
		{"CmsUser", map[string]any{"id": 1, "name": "Roman", "username": "romanb", "status": "freak", "email": 1}},
		{"CmsUser", map[string]any{"id": 2, "name": "Guilherme", "username": "gblanco", "status": "dev", "email": 2}},
		{"CmsUser", map[string]any{"id": 3, "name": "Benjamin", "username": "beberlei", "status": nil}},
		{"CmsUser", map[string]any{"id": 4, "name": "Alexander", "username": "asm89", "status": "dev"}},
		{"CmsAddress", map[string]any{"id": 1, "country": "Germany", "zip": "10827", "city": "Berlin", "user": 1}},
		{"CmsAddress", map[string]any{"id": 2, "country": "Brazil", "zip": "01310", "city": "Sao Paulo", "user": 2}},
		{"CmsArticle", map[string]any{"id": 1, "topic": "Doctrine", "text": "Persistence", "version": 1, "user": 1}},
		{"CmsArticle", map[string]any{"id": 2, "topic": "Go", "text": "Interfaces", "version": 1, "user": 1}},
		{"CmsArticle", map[string]any{"id": 3, "topic": "SQL", "text": "Joins", "version": 3, "user": 4}},
		{"CmsSetting", map[string]any{"scope": "site", "name": "title", "value": "CMS"}},
		{"CmsSetting", map[string]any{"scope": "site", "name": "footer", "value": nil}},
	}
}

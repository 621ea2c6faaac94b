package testutil

import (
	"context"
	"testing"

	"github.com/roach88/entrepo/internal/ir"
	"github.com/roach88/entrepo/internal/metadata"
)

// Database is the slice of the store used to stand up fixture data.
// Declared here so packages below the store can seed without importing it.
type Database interface {
	CreateTables(ctx context.Context, reg *metadata.Registry) error
	Insert(ctx context.Context, et *ir.EntityType, values map[string]any) error
}

// SeedCMS creates the CMS tables in db and loads CMSFixtures.
func SeedCMS(t testing.TB, db Database, reg *metadata.Registry) {
	t.Helper()
	ctx := context.Background()
	if err := db.CreateTables(ctx, reg); err != nil {
		t.Fatalf("create tables: %v", err)
	}
	for _, row := range CMSFixtures() {
		et := EntityType(t, reg, row.Entity)
		if err := db.Insert(ctx, et, row.Values); err != nil {
			t.Fatalf("insert %s: %v", row.Entity, err)
		}
	}
}

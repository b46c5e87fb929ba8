//go:build integration

package testhelpers

import (
	"context"
	"testing"
)

func TestTestDB_MigrationsApplied(t *testing.T) {
	testDB := GetTestDB(t)

	ctx := context.Background()

	var exists bool
	err := testDB.DB.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'audit_records')").
		Scan(&exists)
	if err != nil {
		t.Fatalf("failed to query information_schema: %v", err)
	}

	if !exists {
		t.Error("expected audit_records table to exist after migrations")
	}
}

func TestTestRedis_Ping(t *testing.T) {
	r := GetTestRedis(t)

	if err := r.Client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

package db

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert failed: %w", &mysql.MySQLError{
		Number:  1062,
		Message: "Duplicate entry 'abc' for key 'submissions.uk_submission_id'",
	})
	key, ok := UniqueViolation(err)
	if !ok {
		t.Fatalf("expected unique violation")
	}
	if key != "submissions.uk_submission_id" {
		t.Fatalf("expected key name, got %q", key)
	}

	if _, ok := UniqueViolation(&mysql.MySQLError{Number: 1213}); ok {
		t.Fatalf("expected deadlock error not to be a unique violation")
	}
}

func TestDuplicateIndexUsesLastMarker(t *testing.T) {
	got := duplicateIndex("Duplicate entry 'for key x' for key 'PRIMARY'")
	if got != "PRIMARY" {
		t.Fatalf("expected PRIMARY, got %q", got)
	}
	if got := duplicateIndex("Duplicate entry"); got != "" {
		t.Fatalf("expected empty index, got %q", got)
	}
}

func TestIsNoRowsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("scan failed: %w", sql.ErrNoRows)
	if !IsNoRows(err) {
		t.Fatalf("expected wrapped ErrNoRows to be detected")
	}
}

func TestGetQuerierPrefersTransaction(t *testing.T) {
	var database Database = &MySQL{}
	if GetQuerier(database, nil) != Querier(database) {
		t.Fatalf("expected database querier without transaction")
	}
	tx := &mysqlTransaction{}
	if GetQuerier(database, tx) != Querier(tx) {
		t.Fatalf("expected transaction querier")
	}
}

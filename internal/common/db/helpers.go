package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// mysqlErrDupEntry is ER_DUP_ENTRY.
const mysqlErrDupEntry = 1062

// Querier is the statement surface shared by Database and Transaction.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
}

// GetQuerier picks tx when a caller is inside a transaction.
func GetQuerier(database Database, tx Transaction) Querier {
	if tx == nil {
		return database
	}
	return tx
}

func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// UniqueViolation reports whether err is a duplicate-key failure and, if the
// server said so, which index was hit.
func UniqueViolation(err error) (index string, ok bool) {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) || myErr.Number != mysqlErrDupEntry {
		return "", false
	}
	return duplicateIndex(myErr.Message), true
}

// duplicateIndex pulls the index name out of
// "Duplicate entry 'x' for key 'table.index'".
func duplicateIndex(message string) string {
	_, after, found := strings.Cut(message, "for key ")
	if !found {
		return ""
	}
	// Entry values may themselves contain "for key ", so take the last one.
	for {
		_, rest, again := strings.Cut(after, "for key ")
		if !again {
			break
		}
		after = rest
	}
	return strings.Trim(strings.TrimSpace(after), "`\"'")
}

//go:build !sqlite3_cgo

package db

import (
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const (
	driverID   = "ncruces/go-sqlite3"
	driverName = "sqlite3"
)

// fileDSN opens writes with BEGIN IMMEDIATE so publishes serialize on the
// database lock instead of failing on upgrade.
func fileDSN(path string) string {
	return fmt.Sprintf("file:%s?_txlock=immediate&mode=rwc&_pragma=busy_timeout(5000)", path)
}

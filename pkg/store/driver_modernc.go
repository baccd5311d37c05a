//go:build !sqlite_cgo

package store

import (
	_ "modernc.org/sqlite" // pure-Go SQLite driver, default build
)

// sqliteDriverName selects the database/sql driver. The default build uses
// the cgo-free modernc driver; build with -tags sqlite_cgo for mattn/go-sqlite3.
const sqliteDriverName = "sqlite"

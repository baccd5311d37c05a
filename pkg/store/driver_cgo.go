//go:build sqlite_cgo

package store

import (
	_ "github.com/mattn/go-sqlite3" // cgo SQLite driver, enabled with -tags sqlite_cgo
)

const sqliteDriverName = "sqlite3"

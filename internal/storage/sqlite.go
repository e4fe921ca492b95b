package storage

import (
	"database/sql"

	sqlite3 "github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// SQLiteDriver is go-sqlite3 with a fold(text) SQL function matching Fold.
// SQLite's own LOWER() only folds ASCII.
const SQLiteDriver = "sqlite3_libchat"

func init() {
	sql.Register(SQLiteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", Fold, true)
		},
	})
}

// Fold prepares text for case-insensitive comparison: full Unicode case folding, then NFC.
func Fold(s string) string {
	return norm.NFC.String(cases.Fold().String(s))
}

// IsSQLite reports whether db was opened through SQLiteDriver and so has fold().
func IsSQLite(db *sql.DB) bool {
	if db == nil {
		return false
	}
	_, ok := db.Driver().(*sqlite3.SQLiteDriver)
	return ok
}

// Package db opens the gorm connection shared by the service binaries.
package db

import (
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open selects a driver from url. postgres:// and postgresql:// URLs use
// Postgres, mysql:// is followed by a go-sql-driver DSN and anything else is
// a SQLite file path. Unique-index violations surface as
// gorm.ErrDuplicatedKey.
func Open(url string) (*gorm.DB, error) {
	return gorm.Open(dialector(url), &gorm.Config{TranslateError: true})
}

func dialector(url string) gorm.Dialector {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgres.Open(url)
	case strings.HasPrefix(url, "mysql://"):
		return mysql.Open(strings.TrimPrefix(url, "mysql://"))
	}
	return sqlite.Open(url)
}

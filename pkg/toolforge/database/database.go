package database

import (
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var DB *gorm.DB

// Connect initializes the database connection.
// A DSN containing "host=" or a postgres:// URL selects the Postgres driver;
// anything else is treated as a SQLite path for local development.
func Connect(dsn string) error {
	var err error
	if strings.HasPrefix(dsn, "postgres://") || strings.Contains(dsn, "host=") {
		DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	} else {
		DB, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	}
	if err != nil {
		return err
	}
	return nil
}

// GetDB returns the database instance.
func GetDB() *gorm.DB {
	return DB
}

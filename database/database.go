package database

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

// Init opens the database and migrates the schema. TranslateError is on so
// unique-constraint violations surface as gorm.ErrDuplicatedKey on both
// drivers.
func Init(driver, dsn string, debug bool) error {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver %q", driver)
	}

	logLevel := logger.Silent
	if debug {
		logLevel = logger.Warn
	}

	handle, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("opening %s database: %w", driver, err)
	}

	if err := handle.AutoMigrate(
		&User{},
		&Post{},
		&Tag{},
		&DocProduct{},
		&DocSection{},
		&DocPage{},
		&Subscriber{},
	); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	db = handle
	return nil
}

func GetDB() *gorm.DB {
	if db == nil {
		log.Fatal("database.Init must be called before GetDB")
	}
	return db
}

func CloseDB() {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}

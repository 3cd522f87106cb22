package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/navid-fn/footprint/configs"
	"github.com/navid-fn/footprint/internal/logger"
	"github.com/navid-fn/footprint/internal/persistence"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	down := flag.Bool("down", false, "Roll back the most recent migration")
	status := flag.Bool("status", false, "Print migration status and exit")
	flag.Parse()

	cfg := configs.AppLoad()

	log, closer, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	db, err := gorm.Open(mysql.Open(cfg.Store.SQLDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get sql.DB: %v", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	switch {
	case *status:
		err = persistence.MigrationStatus(sqlDB)
	case *down:
		log.Info("Rolling back the last migration...")
		err = persistence.MigrateDown(sqlDB)
	default:
		log.Info("Running database migrations...")
		err = persistence.Migrate(sqlDB)
	}
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Info("Migrations completed successfully")
}

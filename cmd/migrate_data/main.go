package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"waba-gateway/internal/config"
	"waba-gateway/internal/database"
	"waba-gateway/internal/logger"
	"waba-gateway/internal/models"
)

const batchSize = 500

// Copies templates, messages and contacts from the SQLite file at DB_PATH
// into the PostgreSQL database described by the DB_* settings.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	log := logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})

	// 1. Connect to SQLite (Source)
	sqliteDB, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to SQLite: %v", err)
	}
	log.Infof("Connected to SQLite at %s", cfg.DBPath)

	// 2. Connect to PostgreSQL (Destination)
	pgCfg := *cfg
	pgCfg.DBDriver = database.DriverPostgres
	pgDB, err := database.OpenGorm(&pgCfg, log)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}

	log.Info("Starting data migration...")

	failed := 0
	for _, step := range []struct {
		table string
		rows  interface{}
	}{
		{"contacts", &[]models.Contact{}},
		{"messages", &[]models.Message{}},
		{"templates", &[]models.Template{}},
	} {
		n, err := migrateTable(sqliteDB, pgDB, step.rows)
		entry := log.WithField("table", step.table)
		if err != nil {
			entry.WithError(err).Error("Migration failed")
			failed++
			continue
		}
		entry.WithField("rows", n).Info("Successfully migrated")
	}

	if err := database.SyncSequences(pgDB, database.SerialTables...); err != nil {
		log.WithError(err).Error("Failed to sync id sequences")
		failed++
	}

	if failed > 0 {
		log.Fatalf("Migration finished with %d failed step(s)", failed)
	}
	log.Info("Migration completed!")
}

// migrateTable copies every row of one table inside a single transaction.
// Rows already present in the destination are left untouched.
func migrateTable(src, dst *gorm.DB, rows interface{}) (int64, error) {
	result := src.Find(rows)
	if result.Error != nil {
		return 0, fmt.Errorf("read source: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, nil
	}

	err := dst.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, batchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("write destination: %w", err)
	}
	return result.RowsAffected, nil
}

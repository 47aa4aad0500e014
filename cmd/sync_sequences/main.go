package main

import (
	"github.com/sirupsen/logrus"

	"waba-gateway/internal/config"
	"waba-gateway/internal/database"
	"waba-gateway/internal/logger"
)

// Re-aligns PostgreSQL id sequences with the stored rows, e.g. after a
// manual import.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	log := logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})

	pgCfg := *cfg
	pgCfg.DBDriver = database.DriverPostgres
	db, err := database.OpenGorm(&pgCfg, log)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}

	log.Info("Syncing PostgreSQL sequences...")
	for _, table := range database.SerialTables {
		if err := database.SyncSequences(db, table); err != nil {
			log.WithError(err).WithField("table", table).Error("Error syncing sequence")
			continue
		}
		log.WithField("table", table).Info("Successfully synced sequence")
	}
	log.Info("DONE!")
}

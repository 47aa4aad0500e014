package database

import (
	"fmt"

	"gorm.io/gorm"
)

// SerialTables are the tables whose primary key is a PostgreSQL serial.
var SerialTables = []string{"messages"}

func sequenceSyncSQL(table string) string {
	return "SELECT setval(pg_get_serial_sequence('" + table + "', 'id'), coalesce(max(id), 0) + 1, false) FROM " + table
}

// SyncSequences moves each table's id sequence past its highest stored id.
// Rows copied with explicit ids leave the sequence behind, and the next
// insert would collide on the primary key. Other dialects are left alone.
func SyncSequences(db *gorm.DB, tables ...string) error {
	if db.Dialector.Name() != DriverPostgres {
		return nil
	}
	for _, table := range tables {
		if err := db.Exec(sequenceSyncSQL(table)).Error; err != nil {
			return fmt.Errorf("sync sequence for %s: %w", table, err)
		}
	}
	return nil
}

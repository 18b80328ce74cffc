// Package database opens the SQL database backing the anomaly journal.
//
// It wraps GORM and supports MySQL for deployments and SQLite for local runs and
// tests. Connect pings the database before returning, so a bad configuration fails
// at startup instead of on the first journal write.
//
// # Schema Inspection
//
// GetTableColumns and MissingColumns read a table's columns (SHOW COLUMNS on MySQL,
// PRAGMA table_info on SQLite). The journal uses them to verify its table after
// migration.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    logger.Fatal("Database connection failed", zap.Error(err))
//	}
package database

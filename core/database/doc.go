// Package database handles database connections.
//
// It provides a wrapper around GORM (Go Object Relational Mapping) to properly
// configure MySQL connections based on the application's configuration.
//
// # Connect
//
// The Connect function establishes a pooled connection to the database and
// verifies it with a bounded ping before returning.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
package database

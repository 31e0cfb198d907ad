// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup and migrations
//	├── collections/     # Collections, embedded datasets, remote links
//	├── projects/        # Map-level project settings
//	└── audit/           # Import audit trail
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type with domain-specific operations:
//
//	db, err := database.NewDatabase("./mapimport.db")
//
//	collectionsRepo := collections.NewRepository(db.DB)
//	auditRepo := audit.NewRepository(db.DB)
//
//	c, err := collectionsRepo.Get(ctx, id)
//
// # Adding a New Domain
//
//  1. Create a new sub-package: internal/database/<domain>/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Add compile-time interface checks in internal/interfaces
package database

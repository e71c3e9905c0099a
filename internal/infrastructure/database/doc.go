// Package database provides SQLite connectivity for Gray Logic Integrations.
//
// The database stores config entries, the durable record of every
// configured integration instance, plus the schema_migrations bookkeeping.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations read from an fs.FS supplied by the caller
//   - Connection pooling and lifecycle management
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600, since entry data holds
//     API keys and OAuth tokens
//
// Usage:
//
//	db, err := database.Open(ctx, database.FromConfig(cfg.Database, migrations.FS))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql.
package database

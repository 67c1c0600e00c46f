// Package database provides SQLite connection management and schema
// migrations for the durable telemetry store.
//
// The durable store is the log-backed source of record for device
// telemetry: the ingest pipeline appends observed payloads, and the
// reconciliation engine queries the most recent row per device.
//
// # Usage
//
//	db, err := database.Open(database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     true,
//	    BusyTimeout: 5,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are embedded via the migrations package; see
// migrations/embed.go.
//
// # Thread Safety
//
// The underlying sql.DB pool is safe for concurrent use. The pool is
// capped at one open connection to match SQLite's single-writer model.
package database

// Package database owns the SQLite document store used by every
// repository in the core: topology documents, the switch event log, mined
// automation rules, and daily energy totals.
//
// The store runs in WAL mode with a single-connection pool, matching
// SQLite's one-writer model. Schema migrations are embedded *.sql files
// applied one transaction each, so a failed step can be fixed and resumed.
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive-only: new columns get defaults, and nothing is
// dropped or renamed once released.
package database

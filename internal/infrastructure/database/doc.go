// Package database provides SQLite connectivity for the Govee bridge.
//
// The bridge keeps one table of remembered accessories so that sensors
// seen in a previous run are restored rather than re-created. This
// package manages:
//   - Connection setup with WAL mode and busy timeout
//   - Forward and rollback schema migrations read from an fs.FS
//   - Health checks used by the status API
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql.
package database

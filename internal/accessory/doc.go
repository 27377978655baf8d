// Package accessory persists the sensors the bridge has seen so that a
// restarted process restores them instead of registering duplicates.
//
// A Record is keyed by a UUID derived deterministically from the
// sensor's normalized identity key (GenerateIdentity), so the same
// physical sensor always maps to the same record. The Registry wraps a
// Repository with an in-memory cache that is filled once at startup by
// Restore and kept in step by Register and Update.
//
// Usage:
//
//	repo := accessory.NewSQLiteRepository(db.DB)
//	reg := accessory.NewRegistry(repo)
//	if err := reg.Restore(ctx); err != nil {
//	    return err
//	}
//	rec, ok := reg.Lookup(accessory.GenerateIdentity("GVH5075A1B2"))
package accessory

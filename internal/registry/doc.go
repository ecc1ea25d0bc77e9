// Package registry tracks the live process of each project.
//
// The registry holds at most one [Entry] per project ID. An entry carries
// the process handle, the lifecycle [State], the consecutive restart count,
// the last exit code and, while a crash restart is pending, its timer.
// Entries are runtime only and never persisted.
//
// # Locking
//
// Each project ID has its own lock. The registry-wide lock is held only to
// find or create a per-ID slot, so operations on different projects never
// wait on each other while operations on the same project are serialized.
// [Registry.Do] runs a function under the per-ID lock for compound
// transitions such as "check, launch, record".
//
//	err := reg.Do(id, func(tx *registry.Txn) error {
//	    if err := tx.EnsureIdle(); err != nil {
//	        return err
//	    }
//	    h, err := launch()
//	    if err != nil {
//	        return err
//	    }
//	    _, err = reg.RegisterLocked(tx, h)
//	    return err
//	})
package registry

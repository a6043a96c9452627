// Package topology manages the building/location/device hierarchy.
//
// The hierarchy is strict and three-levelled: every device belongs to
// exactly one location, and every location belongs to exactly one building.
// Automation policy is decided per building, so the critical operation is
// resolving a device ID to its owning building.
//
// # Architecture
//
//	Building ─< Location ─< Device
//
//	Directory (cache, thread-safe)
//	    │
//	Repository (SQLite persistence)
//
// The Directory keeps the full hierarchy in memory and serves resolution
// without touching the database. Controllers can announce new devices,
// locations, and buildings at runtime (hot-plug); the Directory integrates
// them, persists them, and notifies the membership sink so the active
// building mode is applied to late arrivals.
//
// # Usage
//
//	dir := topology.NewDirectory(repo)
//	if err := dir.Load(ctx); err != nil { ... }
//
//	buildingID, err := dir.ResolveBuilding("lamp-01")
//	if errors.Is(err, topology.ErrUnresolved) {
//	    // device is dangling; refuse automation decisions
//	}
package topology

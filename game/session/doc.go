// Package session keeps simulation sessions in memory and, optionally, in a
// persistent store.
//
// Each session owns an engine.Engine built from its scenario. IDs are 4 hex
// characters when generated and are matched case-insensitively.
//
// Two stores implement SessionPersistence:
//   - FilePersistence writes one JSON file per session
//   - SQLitePersistence keeps a sessions table through gorm, with the engine
//     snapshot in a JSON column
//
// Both persist the scenario ID and an engine.Snapshot. Loading goes through a
// Rebuilder, which loads the scenario, builds a fresh engine and restores the
// snapshot into it.
//
//	rebuilder := session.Rebuilder{Scenarios: scenarios, Log: log}
//	store, err := session.NewFilePersistence("sessions", rebuilder)
//	manager := session.NewManagerWithPersistence(store, log, metrics)
//	sess, err := manager.Create("", "bridge_crossing", scenario)
//
// CleanupExpiredSessions only evicts from memory; an evicted session is
// reloaded from the store on the next Get.
package session

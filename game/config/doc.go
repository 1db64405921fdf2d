// Package config loads scenario files and process settings.
//
// Scenarios are JSON documents in a directory, addressed by file name
// without the .json extension. The Manager caches parsed scenarios and keeps
// a default: default.json if present, otherwise the first valid file, otherwise
// the built-in engine.DefaultScenario.
//
//	manager, err := config.NewManager("configs", log)
//	scenario, err := manager.LoadScenario("bridge_crossing")
//	infos, err := manager.ListScenarios()
//
// Settings come from viper: built-in defaults, an optional bridgeit.json in the
// settings directory, and BRIDGEIT_* environment variables.
//
//	settings, err := config.LoadSettings(".")
//	addr := settings.Server.Addr()
package config

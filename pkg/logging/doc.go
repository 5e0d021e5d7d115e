// Package logging provides the structured, subsystem-tagged logging used
// throughout the gateway: registry, resource cache, prompt builder and
// orchestrator all log through the same small API.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stdout)
//	logging.Info("Registry", "server %s transitioned to ready", serverID)
//	logging.Error("Cache", err, "refresh failed for server %s", serverID)
//
// Every call takes a subsystem tag as its first argument so log lines can be
// filtered by component (e.g. "Registry", "ResourceCache", "Recovery",
// "Orchestrator", "PromptBuilder"). Output is rendered through slog's
// TextHandler; level filtering happens at Init time.
package logging

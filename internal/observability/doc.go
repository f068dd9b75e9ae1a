// Package observability provides logging and metrics support for the paper
// analysis persistence tooling.
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "console",
//	    Output: "stdout",
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("paper_id", id).Msg("flag repaired")
//
// Add domain context to a logger:
//
//	logger = observability.WithWorkspaceContext(logger, workspaceID, userID)
//	logger = observability.WithCheckContext(logger, "sentence_flag_drift")
//
// # Metrics
//
// Initialize metrics and record events:
//
//	metrics := observability.NewMetrics("paperlyzer")
//	metrics.RecordCheck("selection_uniqueness", elapsed.Seconds())
//	metrics.RecordFinding("selection_uniqueness", "error")
//	metrics.RecordRepair()
//
// # Standard Fields
//
// Common fields used across the tooling:
//
//   - workspace_id: Tenant identifier
//   - user_id: Workspace owner identifier
//   - paper_id: Paper identifier
//   - check: Diagnostic check name
//   - migration_version: Current schema migration version
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability

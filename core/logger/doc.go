// Package logger provides a structured logging facility based on Zap.
//
// It offers a configured logger instance that supports different environments
// (development vs production) with console or JSON encoding.
//
// # Run Correlation
//
// Each import run is assigned a run id. The WithRunID helper attaches it to
// the log entry, ensuring that all logs related to a specific run can be
// correlated.
//
// # Configuration
//
// The package supports configuration for:
//   - Level: debug, info, warn, error
//   - Format: json (production) or console (development)
//
// # Usage
//
//	log, _ := logger.New(&logger.Config{Level: "info"})
//	log.Info("Import started")
//
//	// Inside a run:
//	l := logger.WithRunID(log, runID)
//	l.Error("Run failed", zap.Error(err))
package logger

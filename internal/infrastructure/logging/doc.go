// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components log through child loggers so every line carries its origin:
//
//	logger := logging.NewOrDefault(cfg.Logging)
//	sessLog := logger.Component("session")
//	sessLog.Info("Driver started", zap.String("session_id", id))
package logging

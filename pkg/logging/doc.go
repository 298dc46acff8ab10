// Package logging provides structured logging configuration for devmock.
//
// This package wraps log/slog so every component logs the same way. There is
// no package-level logger: callers build one with New and pass it down.
//
// # Usage
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.ParseLevel("info"),
//	    Format: logging.FormatText,
//	})
//
//	logger.Info("mock module loaded", "path", path, "handlers", n)
//	logger.Error("failed to compile mock module", "path", path, "error", err)
//
// # Log Levels
//
//   - Debug: per-request match decisions
//   - Info: module loads, reloads, and the startup banner
//   - Warn: recoverable problems such as a malformed pattern
//   - Error: module load failures
//   - Off: no output at all
//
// # File Output
//
// Setting Config.File additionally writes every record to a size-rotated
// file managed by lumberjack.
//
// # Integration
//
// Components should accept a *slog.Logger in their constructor or via an
// option. If no logger is provided, use logging.Nop().
package logging

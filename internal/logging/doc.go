// Package logging provides structured logging with per-module levels.
//
// Loggers are obtained per module and carry a "module" attribute:
//
//	logger := logging.GetLogger("session")
//	logger.Info("Recording started", "path", path)
//
// Records fan out to stdout (text or json), the systemd journal when it is
// reachable, and an in-memory ring buffer that backs the /api/logs endpoint
// and the log SSE stream.
//
// Levels are held in slog.LevelVar values, so loggers handed out before
// Initialize, or before a config reload, follow later level changes:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	session = "debug"
//	ffmpeg = "warn"
//
// When running under systemd:
//
//	journalctl -t avgraphics MODULE=session
package logging

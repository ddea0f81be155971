/*
Package log wraps zerolog to give every component of the librarian (catalog,
search compiler, task manager, replication engine) a structured, leveled
logger with consistent field names.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("replication")
	logger.Info().Str("standing_order", "nightly-copy").Msg("evaluating")

Component loggers are cheap value copies of the global Logger with extra
context fields attached; they do not need to be closed or released.

Logs may be routed to a rotating file on disk (Config.RotateFile, backed by
lumberjack) instead of stdout; RotateFile is used only when Config.Output
is nil.
*/
package log

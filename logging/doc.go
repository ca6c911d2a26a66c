// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. The merge engine and transport log through this
// interface; the default for library use is the NoOpLogger.
package logging

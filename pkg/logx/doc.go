// Package logx is a small structured logging layer over zerolog.
//
// A Service owns the sinks (console, rotated JSON file, Telegram ops chat)
// and can be reconfigured at runtime; Loggers derived from it follow the
// current configuration.
package logx

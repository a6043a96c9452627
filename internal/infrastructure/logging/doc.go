// Package logging wraps log/slog into the core's structured logger.
//
// Records are JSON in production and text in development, filtered by
// level, and always carry service and version attributes. Configured from
// the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Domain packages do not import this package directly; each declares its
// own small Logger interface that *logging.Logger happens to satisfy.
// Never log credentials or broker passwords.
package logging

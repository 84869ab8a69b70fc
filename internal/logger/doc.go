// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger writing console lines to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level configuration and parsing for the --log-level flag,
//   - convenience functions (InfoKV, WarnKV, ErrorKV and so on).
//
// Components accept a context and extract the logger from it, so every stage
// of an upgrade run logs with its own name and fields.
package logger

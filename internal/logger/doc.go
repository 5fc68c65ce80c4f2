// Package logger wraps zap for the panel binaries:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and configuration,
//   - leveled helpers (Infof, InfoKV, ErrorKV, ...) that read the logger from ctx.
//
// Services receive a context and log through it, so names and key-values
// attached upstream show up on every line.
package logger

// Package protolog captures the serial link protocol as a machine-readable
// event trace.
//
// It is separate from operational logging (zerolog). Every line written to
// or read from a peripheral port, every handshake attempt and every link
// state transition becomes an Event:
//
//	// Console while developing
//	cfg.ProtocolLogger = protolog.NewZerologAdapter(log.Logger)
//
//	// Binary capture
//	cfg.ProtocolLogger, _ = protolog.NewFileLogger(afero.NewOsFs(), "data/link.rtlog", protolog.DefaultMaxCaptureBytes)
//
//	// Both
//	cfg.ProtocolLogger = protolog.NewMultiLogger(console, file)
//
// Capture files are a plain concatenation of CBOR-encoded events with
// integer keys, conventionally named *.rtlog. A capture that outgrows its
// cap is rotated to *.rtlog.1. The racetimer CLI views and summarizes them.
package protolog

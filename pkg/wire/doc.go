// Package wire implements the serial line protocol spoken with the timing
// peripheral.
//
// Every line is ASCII terminated by a single '\n'. The peripheral sends bare
// tokens:
//
//	handshake
//	heartbeat
//	startFinish
//
// The host sends the same bare handshake and heartbeat tokens, and a JSON
// envelope for everything else:
//
//	{"event":"tick","arguments":[61]}
//	{"event":"finished","arguments":[[{...},null,null,null]]}
//	{"event":"reset"}
package wire

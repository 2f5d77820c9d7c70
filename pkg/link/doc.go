// Package link maintains the serial connection to the timing peripheral.
//
// A Link moves through these states:
//
//	IDLE -> DISCOVERING -> HANDSHAKING -> LINKED
//	LINKED -> RECONNECT_PENDING -> DISCOVERING -> ...
//
// Discovery either opens one configured device path or every enumerated
// port matching a USB signature. Each candidate is sent a handshake token
// and given a fixed window to answer; the first to answer becomes the
// active port and every other candidate is closed. While linked the host
// sends heartbeats and any inbound traffic feeds a liveness watchdog. A
// transport error, a close or a missed watchdog schedules exactly one
// reconnect attempt.
//
// All state lives behind one mutex. Timer callbacks and port goroutines
// carry the generation or session they were started for and drop
// themselves once that is stale. Callbacks registered by the caller run
// after the mutex is released.
package link

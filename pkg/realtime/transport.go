package realtime

// transport is the narrow duplex channel beneath a session: a WebSocket
// connection or a WebRTC data channel. Implementations guarantee in-order
// delivery, fail-fast Send once the channel has left the open state, an
// idempotent Close, and a background receive path that never blocks the
// caller's send path.
type transport interface {
	// Send transmits one text frame. Returns ConnectionClosedError when
	// the transport is not open; frames are never queued silently.
	Send(data []byte) error

	// Close tears the transport down. Safe to call more than once.
	Close() error
}

// transportHandler receives inbound transport callbacks. The handler is
// fixed at construction, before the first frame can arrive.
type transportHandler interface {
	// handleMessage delivers one inbound frame, in receive order.
	handleMessage(data []byte)

	// handleError reports a transport-level failure. The transport is
	// unusable afterwards.
	handleError(err error)

	// handleClose reports the transport closing, with the peer's close
	// code and reason when known.
	handleClose(code int, reason string)
}

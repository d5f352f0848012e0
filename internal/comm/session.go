package comm

// Connect opens the single client session. It fails when a session already
// exists. The session id is a non-zero pseudo-random value drawn from a
// generator seeded by the timebase at the first connect.
func (h *Handler) Connect() bool {
	if h.connected {
		return false
	}
	h.sessionID = h.nextSessionID()
	h.connected = true
	h.lastHeartbeatTs = h.tb.Timestamp()
	return true
}

// Disconnect drops the session, if any.
func (h *Handler) Disconnect() {
	h.connected = false
	h.sessionID = 0
}

// Heartbeat refreshes the session liveness timestamp. It fails, without
// touching the timestamp, when no session exists or the id does not match.
func (h *Handler) Heartbeat(sessionID uint32) bool {
	if !h.connected || sessionID != h.sessionID {
		return false
	}
	h.lastHeartbeatTs = h.tb.Timestamp()
	return true
}

// Connected reports whether a session is active.
func (h *Handler) Connected() bool {
	return h.connected
}

// SessionID returns the active session id, zero when disconnected.
func (h *Handler) SessionID() uint32 {
	return h.sessionID
}

// CheckTimeouts drops the session silently when the heartbeat deadline has
// passed. The dispatcher calls it once per cycle.
func (h *Handler) CheckTimeouts() {
	if h.connected && h.tb.Elapsed(h.lastHeartbeatTs, h.heartbeatTimeout) {
		h.Disconnect()
	}
}

// nextSessionID steps a xorshift32 generator. The seed is forced odd so it
// is never zero, and a zero output is returned as 1.
func (h *Handler) nextSessionID() uint32 {
	if h.rngState == 0 {
		h.rngState = h.tb.Timestamp() | 1
	}
	x := h.rngState
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	h.rngState = x
	if x == 0 {
		x = 1
	}
	return x
}

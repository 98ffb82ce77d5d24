package stream

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no frames within heartbeat window)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrForcedReconnect = errors.New("reconnect forced")
)

// Config holds subscriber settings.
type Config struct {
	ReconnectBaseDelay time.Duration // First reconnect delay
	ReconnectMaxDelay  time.Duration // Delay ceiling; attempts never stop
	HeartbeatTimeout   time.Duration // Silence window that forces a reconnect
	WriteTimeout       time.Duration // Per-write deadline
	BufferSize         int           // Inbound frame buffer
	BackoffSeed        uint64        // 0 = non-deterministic jitter
}

// clientConfig holds per-connection settings for the ws client.
type clientConfig struct {
	URL              string
	HeartbeatTimeout time.Duration
	WriteTimeout     time.Duration
	BufferSize       int
}

// frame is one raw inbound message with its receive timestamp.
type frame struct {
	data       []byte
	receivedAt time.Time
}

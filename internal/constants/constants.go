// Package constants holds the tunables and magic numbers shared across the
// libOS core.
package constants

import "time"

// Buffer and scatter-gather bounds.
const (
	// MaxBufferLen is the largest length a single Buffer/scatter-gather
	// segment may carry. Segment length is a 32-bit field on the wire, but
	// the libOS never hands out more than this many bytes in one segment.
	MaxBufferLen = 65535
)

// TCP passive-open defaults. These seed config.TcpConfig when the caller
// does not override a field.
const (
	// FallbackMSS is used when an inbound SYN carries no MSS option.
	FallbackMSS = 536

	// DefaultAdvertisedMSS is advertised in outgoing SYN+ACKs.
	DefaultAdvertisedMSS = 1460

	// DefaultWindowScale is the window-scale option advertised locally.
	DefaultWindowScale = 0

	// DefaultReceiveWindowSize is the advertised receive window, pre-scale.
	DefaultReceiveWindowSize = 0xFFFF

	// DefaultHandshakeRetries bounds the SYN+ACK retry loop.
	DefaultHandshakeRetries = 5

	// DefaultHandshakeTimeout is the spacing between SYN+ACK retries.
	DefaultHandshakeTimeout = 3 * time.Second

	// DefaultAckDelayTimeout is part of the recognized TcpConfig surface.
	DefaultAckDelayTimeout = 500 * time.Millisecond

	// DefaultMaxBacklog bounds inflight+ready connections per listener.
	DefaultMaxBacklog = 16

	// SOMAXCONN mirrors the POSIX constant used to truncate an oversized
	// caller-provided backlog.
	SOMAXCONN = 128
)

// Catmem ring defaults.
const (
	// RecvBufSizeMax is used by a stream-level pop when the caller passes
	// no explicit size.
	RecvBufSizeMax = 4096

	// MaxRetriesPushEOF bounds how many times try_close retries writing the
	// EOF marker into a full ring before giving up with EIO.
	MaxRetriesPushEOF = 16

	// DefaultRingCapacity is the byte capacity of a catmem ring's backing
	// shared-memory segment when the caller does not specify one.
	DefaultRingCapacity = 1 << 16
)

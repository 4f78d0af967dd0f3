// Package config holds the recognized libOS configuration surface.
package config

import (
	"time"

	"github.com/HelloKayT/demikernel-go/internal/constants"
)

// TcpConfig carries the recognized configuration options.
// Field access goes through getters, copying a flat params struct
// field-by-field rather than exposing it raw.
type TcpConfig struct {
	HandshakeRetries   int
	HandshakeTimeout   time.Duration
	ReceiveWindowSize  uint16
	WindowScale        uint8
	AdvertisedMSS      uint16
	AckDelayTimeout    time.Duration
	RxChecksumOffload  bool
	TxChecksumOffload  bool
	MaxBacklog         int
}

// DefaultTcpConfig returns the configuration a listener uses when the
// caller supplies no overrides.
func DefaultTcpConfig() TcpConfig {
	return TcpConfig{
		HandshakeRetries:  constants.DefaultHandshakeRetries,
		HandshakeTimeout:  constants.DefaultHandshakeTimeout,
		ReceiveWindowSize: constants.DefaultReceiveWindowSize,
		WindowScale:       constants.DefaultWindowScale,
		AdvertisedMSS:     constants.DefaultAdvertisedMSS,
		AckDelayTimeout:   constants.DefaultAckDelayTimeout,
		MaxBacklog:        constants.DefaultMaxBacklog,
	}
}

// Normalize clamps fields to their required bounds (e.g.
// handshake_retries >= 1, max_backlog >= 1) and truncates an oversized
// backlog to SOMAXCONN the way PassiveSocket admission requires.
func (c TcpConfig) Normalize() TcpConfig {
	if c.HandshakeRetries < 1 {
		c.HandshakeRetries = constants.DefaultHandshakeRetries
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = constants.DefaultHandshakeTimeout
	}
	if c.AdvertisedMSS == 0 {
		c.AdvertisedMSS = constants.DefaultAdvertisedMSS
	}
	if c.ReceiveWindowSize == 0 {
		c.ReceiveWindowSize = constants.DefaultReceiveWindowSize
	}
	if c.MaxBacklog < 1 {
		c.MaxBacklog = 1
	}
	if c.MaxBacklog > constants.SOMAXCONN {
		c.MaxBacklog = constants.SOMAXCONN
	}
	return c
}

func (c TcpConfig) GetHandshakeRetries() int          { return c.HandshakeRetries }
func (c TcpConfig) GetHandshakeTimeout() time.Duration { return c.HandshakeTimeout }
func (c TcpConfig) GetReceiveWindowSize() uint16       { return c.ReceiveWindowSize }
func (c TcpConfig) GetWindowScale() uint8              { return c.WindowScale }
func (c TcpConfig) GetAdvertisedMSS() uint16           { return c.AdvertisedMSS }
func (c TcpConfig) GetAckDelayTimeout() time.Duration  { return c.AckDelayTimeout }
func (c TcpConfig) GetRxChecksumOffload() bool         { return c.RxChecksumOffload }
func (c TcpConfig) GetTxChecksumOffload() bool         { return c.TxChecksumOffload }
func (c TcpConfig) GetMaxBacklog() int                 { return c.MaxBacklog }

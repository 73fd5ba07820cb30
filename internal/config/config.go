// Package config holds the server and client configuration shapes spec
// §6 delegates to "the config collaborator" and supplies defaults for the
// core's own tunables (chunk size, timeouts, retries), which the core
// specifies but configuration loading is explicitly out of scope for.
package config

import (
	"time"

	"github.com/btcmesh/relay/internal/chunker"
	"github.com/btcmesh/relay/internal/janitor"
	"github.com/btcmesh/relay/internal/ratelimit"
	"github.com/btcmesh/relay/internal/rpc"
	"github.com/btcmesh/relay/internal/validation"
)

// RelayConfig holds everything cmd/btcmesh-relay needs to start serving.
type RelayConfig struct {
	RPC rpc.Config

	MeshDevicePath string

	ReassemblyTimeout time.Duration
	JanitorInterval   time.Duration

	HealthAddr  string
	MetricsAddr string

	RateLimitPerSecond float64
	RateLimitBurst     int

	LogLevel string
}

// DefaultRelayConfig returns the defaults named in spec §4.4/§4.6 plus the
// supplemented ambient-stack defaults (§ health/metrics addresses, rate
// limiting).
func DefaultRelayConfig() *RelayConfig {
	return &RelayConfig{
		RPC:                rpc.DefaultConfig(),
		ReassemblyTimeout:  janitor.DefaultReassemblyTimeout,
		JanitorInterval:    janitor.DefaultInterval,
		HealthAddr:         "127.0.0.1:8090",
		MetricsAddr:        "127.0.0.1:9100",
		RateLimitPerSecond: 5,
		RateLimitBurst:     20,
		LogLevel:           "info",
	}
}

// Validate checks the fields the core itself cares about (a non-empty RPC
// host, well-formed listen addresses, and an RPC retry count in [0,100]);
// everything else is the config collaborator's responsibility per spec
// §1/§6.
func (c *RelayConfig) Validate() error {
	if err := validation.ValidateStringNonEmpty(c.RPC.Host); err != nil {
		return err
	}
	if err := validation.ValidateAddr(c.HealthAddr); err != nil {
		return err
	}
	if err := validation.ValidateAddr(c.MetricsAddr); err != nil {
		return err
	}
	if err := validation.ValidateRangeInt(c.RPC.MaxRetries, 0, 100); err != nil {
		return err
	}
	return nil
}

// ClientConfig holds the client CLI's tunables, mirroring spec §4.4's
// defaults and §6's CLI surface (destination, tx hex and dry-run are
// consumed directly by cmd/btcmesh-client and are not part of this struct;
// the device path is carried in MeshDevicePath).
type ClientConfig struct {
	ChunkSize       int
	AckTimeout      time.Duration
	MaxRetries      int
	TerminalTimeout time.Duration
	MeshDevicePath  string
	LogLevel        string
}

// DefaultClientConfig returns the spec §4.4 defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		ChunkSize:       chunker.DefaultChunkSize,
		AckTimeout:      30 * time.Second,
		MaxRetries:      3,
		TerminalTimeout: janitor.DefaultReassemblyTimeout,
		LogLevel:        "info",
	}
}

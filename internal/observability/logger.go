package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog for structured logging.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new structured logger.
func NewLogger(service, version string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339

	logger := zerolog.New(output).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Str("host", getHostname()).
		Logger()

	return &Logger{
		logger: logger,
	}
}

// WithSession adds session_id context to logger.
func (l *Logger) WithSession(sessionID string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("session_id", sessionID).Logger(),
	}
}

// WithPeer adds the mesh node id of the other party to the logger.
func (l *Logger) WithPeer(nodeID string) *Logger {
	return &Logger{
		logger: l.logger.With().Str("node_id", nodeID).Logger(),
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

// Info logs an info message.
func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

// Error logs an error message.
func (l *Logger) Error(err error, msg string) {
	l.logger.Error().Err(err).Msg(msg)
}

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(err error, msg string) {
	l.logger.Fatal().Err(err).Msg(msg)
}

// ChunkReceived logs a single inbound chunk's arrival on the relay.
func (l *Logger) ChunkReceived(sessionID string, n, total int, sender string) {
	l.logger.Debug().
		Str("session_id", sessionID).
		Int("chunk", n).
		Int("total", total).
		Str("sender", sender).
		Msg("chunk received")
}

// ChunkAckSent logs the relay's per-chunk ACK.
func (l *Logger) ChunkAckSent(sessionID string, acked, next int) {
	l.logger.Debug().
		Str("session_id", sessionID).
		Int("acked", acked).
		Int("next_requested", next).
		Msg("chunk ack sent")
}

// SessionEvicted logs a session leaving the active table, whether by
// completion, inconsistency, or timeout.
func (l *Logger) SessionEvicted(sessionID, reason string) {
	l.logger.Info().
		Str("session_id", sessionID).
		Str("reason", reason).
		Msg("session evicted")
}

// BroadcastResult logs the outcome of handing a reassembled transaction to
// the RPC adapter.
func (l *Logger) BroadcastResult(sessionID string, success bool, detail string, elapsed time.Duration) {
	ev := l.logger.Info()
	if !success {
		ev = l.logger.Error()
	}
	ev.Str("session_id", sessionID).
		Bool("success", success).
		Str("detail", detail).
		Float64("elapsed_seconds", elapsed.Seconds()).
		Msg("broadcast result")
}

// SendStarted logs the client engine beginning a new transaction send.
func (l *Logger) SendStarted(sessionID, destination string, totalChunks int) {
	l.logger.Info().
		Str("session_id", sessionID).
		Str("destination", destination).
		Int("total_chunks", totalChunks).
		Msg("send started")
}

// SendResult logs the client engine's terminal outcome.
func (l *Logger) SendResult(sessionID string, success bool, reason string) {
	ev := l.logger.Info()
	if !success {
		ev = l.logger.Warn()
	}
	ev.Str("session_id", sessionID).
		Bool("success", success).
		Str("reason", reason).
		Msg("send finished")
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

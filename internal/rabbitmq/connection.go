package rabbitmq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gigmarket/backbone-go/internal/reliability"
)

// Broker tunables. The broker silently drops connections negotiating a
// smaller frame size or no heartbeat, so both are always set.
const (
	minFrameSize     = 8192
	defaultHeartbeat = 10 * time.Second
)

// ConnectionManager owns the single AMQP connection of a service process
// and the one multiplexed channel everything in the process shares.
type ConnectionManager struct {
	url       string
	heartbeat time.Duration
	frameSize int
	backoff   reliability.Backoff
	logger    *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// ConnectionOption configures the ConnectionManager.
type ConnectionOption func(*ConnectionManager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.logger = logger
	}
}

// WithHeartbeat sets the heartbeat interval.
func WithHeartbeat(interval time.Duration) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.heartbeat = interval
	}
}

// WithFrameSize sets the negotiated frame size. Values below the broker
// minimum are raised to it.
func WithFrameSize(size int) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.frameSize = size
	}
}

// WithConnectBackoff overrides the dial retry policy.
func WithConnectBackoff(b reliability.Backoff) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.backoff = b
	}
}

// NewConnectionManager creates a connection manager for the given broker
// URI. No I/O happens until Connect.
func NewConnectionManager(url string, options ...ConnectionOption) *ConnectionManager {
	cm := &ConnectionManager{
		url:       url,
		heartbeat: defaultHeartbeat,
		frameSize: minFrameSize,
		backoff:   reliability.ConnectBackoff(),
		logger:    slog.Default(),
	}

	for _, opt := range options {
		opt(cm)
	}

	if cm.frameSize < minFrameSize {
		cm.frameSize = minFrameSize
	}

	return cm
}

// Connect dials the broker with the bounded backoff policy. Exhausting the
// policy returns a terminal ConnectionError wrapping ErrMaxRetriesExceeded;
// the caller is expected to log it and keep serving without messaging.
func (cm *ConnectionManager) Connect(ctx context.Context) error {
	cm.mu.Lock()
	if cm.conn != nil && !cm.conn.IsClosed() {
		cm.mu.Unlock()
		return nil
	}
	cm.mu.Unlock()

	cfg := amqp.Config{
		FrameSize: cm.frameSize,
		Heartbeat: cm.heartbeat,
		Properties: amqp.Table{
			"product": "backbone",
		},
	}

	attempts := 0
	err := reliability.Retry(ctx, cm.backoff, func() error {
		attempts++
		conn, dialErr := amqp.DialConfig(cm.url, cfg)
		if dialErr != nil {
			cm.logger.Warn("broker dial failed",
				"url", SanitizeURL(cm.url),
				"attempt", attempts,
				"error", dialErr,
			)
			return dialErr
		}

		cm.mu.Lock()
		cm.conn = conn
		cm.channel = nil
		cm.mu.Unlock()
		return nil
	})
	if err != nil {
		return &ConnectionError{
			Op:        "connect",
			URL:       SanitizeURL(cm.url),
			Err:       ErrMaxRetriesExceeded,
			Timestamp: time.Now(),
			Attempts:  attempts,
		}
	}

	cm.logger.Info("connected to broker",
		"url", SanitizeURL(cm.url),
		"attempts", attempts,
	)

	return nil
}

// Channel returns the process-wide shared channel, opening it lazily. The
// channel is safe for concurrent publishes; amqp091-go serializes frame
// writes.
func (cm *ConnectionManager) Channel() (*amqp.Channel, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.closed {
		return nil, ErrConnectionClosed
	}
	if cm.conn == nil || cm.conn.IsClosed() {
		return nil, ErrNotConnected
	}

	if cm.channel == nil || cm.channel.IsClosed() {
		ch, err := cm.conn.Channel()
		if err != nil {
			return nil, &ConnectionError{
				Op:        "open channel",
				URL:       SanitizeURL(cm.url),
				Err:       err,
				Timestamp: time.Now(),
			}
		}
		cm.channel = ch
	}

	return cm.channel, nil
}

// IsConnected reports whether the broker connection is usable.
func (cm *ConnectionManager) IsConnected() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.conn != nil && !cm.conn.IsClosed()
}

// Close shuts down the channel, then the connection, under the context's
// deadline. A broker that stops responding cannot block process exit past
// the deadline; the connection is abandoned and ErrCloseTimeout returned.
func (cm *ConnectionManager) Close(ctx context.Context) error {
	cm.mu.Lock()
	if cm.closed {
		cm.mu.Unlock()
		return nil
	}
	cm.closed = true
	channel := cm.channel
	conn := cm.conn
	cm.channel = nil
	cm.conn = nil
	cm.mu.Unlock()

	if conn == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		if channel != nil && !channel.IsClosed() {
			if err := channel.Close(); err != nil {
				cm.logger.Warn("channel close failed", "error", err)
			}
		}
		done <- conn.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return &ConnectionError{
				Op:        "close",
				URL:       SanitizeURL(cm.url),
				Err:       err,
				Timestamp: time.Now(),
			}
		}
		cm.logger.Info("broker connection closed")
		return nil
	case <-ctx.Done():
		return ErrCloseTimeout
	}
}

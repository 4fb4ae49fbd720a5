package natsclient

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/jrkphani/heybo-engine/errors"
)

// ConnectionStatus is the state of the NATS connection.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

// String returns the status as a word for logs and health messages.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

var (
	ErrNotConnected = stderrors.New("not connected to NATS")
	ErrCircuitOpen  = stderrors.New("connection circuit breaker is open")
)

// Client owns the engine's NATS connection and its JetStream context.
type Client struct {
	url    string
	logger *slog.Logger

	mu   sync.RWMutex
	conn *nats.Conn
	js   jetstream.JetStream

	status   atomic.Value // ConnectionStatus
	failures atomic.Int32

	// Circuit breaker state.
	circuitFailures  atomic.Int32
	circuitThreshold int32
	backoff          atomic.Value // time.Duration
	maxBackoff       time.Duration

	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration

	username string
	password string
	token    string

	tlsCertFile string
	tlsKeyFile  string
	tlsCAFile   string

	clientName string

	onHealthChange func(bool)

	closed atomic.Bool
}

// New creates a client for the given server URL. The connection is not
// established until Connect.
func New(url string, opts ...Option) (*Client, error) {
	c := &Client{
		url:              url,
		logger:           slog.Default(),
		maxReconnects:    -1,
		reconnectWait:    2 * time.Second,
		pingInterval:     30 * time.Second,
		timeout:          5 * time.Second,
		drainTimeout:     30 * time.Second,
		circuitThreshold: 5,
		maxBackoff:       time.Minute,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.Wrap(err, "natsclient", "New", "apply option")
		}
	}
	c.status.Store(StatusDisconnected)
	c.backoff.Store(time.Second)
	return c, nil
}

// URL returns the configured server URL.
func (c *Client) URL() string { return c.url }

// Status returns the current connection status.
func (c *Client) Status() ConnectionStatus {
	v := c.status.Load()
	if v == nil {
		return StatusDisconnected
	}
	return v.(ConnectionStatus)
}

// IsHealthy reports whether the connection is up.
func (c *Client) IsHealthy() bool { return c.Status() == StatusConnected }

// Failures returns the total connection failure count.
func (c *Client) Failures() int32 { return c.failures.Load() }

// Backoff returns the current circuit backoff duration.
func (c *Client) Backoff() time.Duration { return c.backoff.Load().(time.Duration) }

// Conn returns the underlying connection, or nil before Connect.
func (c *Client) Conn() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// JetStream returns the JetStream context, or an error when the client
// never connected.
func (c *Client) JetStream() (jetstream.JetStream, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.js == nil {
		return nil, ErrNotConnected
	}
	return c.js, nil
}

// Connect establishes the connection and initializes JetStream. When
// the circuit is open the attempt is refused outright; the circuit
// closes again after the current backoff elapses.
func (c *Client) Connect(ctx context.Context) error {
	if c.Status() == StatusCircuitOpen {
		return ErrCircuitOpen
	}

	c.status.Store(StatusConnecting)
	c.logger.Info("connecting to NATS", "url", c.url)

	done := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(c.url, c.connectionOptions()...)
		if err != nil {
			done <- err
			return
		}
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			done <- err
			return
		}
		c.mu.Lock()
		c.conn = conn
		c.js = js
		c.mu.Unlock()
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			c.recordFailure()
			if c.Status() == StatusCircuitOpen {
				return ErrCircuitOpen
			}
			c.status.Store(StatusDisconnected)
			return errors.WrapAs(errors.CategoryNetwork, err, "natsclient", "Connect", "establish connection")
		}
	case <-ctx.Done():
		c.recordFailure()
		if c.Status() != StatusCircuitOpen {
			c.status.Store(StatusDisconnected)
		}
		return errors.WrapAs(errors.CategoryNetwork, ctx.Err(), "natsclient", "Connect", "establish connection")
	}

	c.status.Store(StatusConnected)
	c.resetCircuit()
	c.logger.Info("connected to NATS", "url", c.url)
	c.notifyHealth(true)
	return nil
}

// WaitForConnection blocks until the connection is healthy or the
// context expires.
func (c *Client) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "natsclient", "WaitForConnection", "wait for healthy connection")
		case <-ticker.C:
			if c.IsHealthy() {
				return nil
			}
		}
	}
}

// Close drains and closes the connection. Safe to call more than once.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.js = nil
	c.mu.Unlock()

	c.status.Store(StatusDisconnected)
	c.notifyHealth(false)

	if conn == nil {
		return nil
	}

	drained := make(chan error, 1)
	go func() { drained <- conn.Drain() }()
	select {
	case err := <-drained:
		if err != nil {
			conn.Close()
			return errors.Wrap(err, "natsclient", "Close", "drain connection")
		}
	case <-ctx.Done():
		conn.Close()
		return errors.Wrap(ctx.Err(), "natsclient", "Close", "drain connection")
	}
	return nil
}

func (c *Client) connectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
	}

	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	if c.tlsCertFile != "" && c.tlsKeyFile != "" {
		opts = append(opts, nats.ClientCert(c.tlsCertFile, c.tlsKeyFile))
	}
	if c.tlsCAFile != "" {
		opts = append(opts, nats.RootCAs(c.tlsCAFile))
	}
	if c.clientName != "" {
		opts = append(opts, nats.Name(c.clientName))
	}
	return opts
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	if c.closed.Load() {
		return
	}
	c.status.Store(StatusReconnecting)
	c.logger.Warn("NATS disconnected", "error", err)
	c.notifyHealth(false)
}

func (c *Client) handleReconnect(_ *nats.Conn) {
	c.status.Store(StatusConnected)
	c.resetCircuit()
	c.logger.Info("NATS reconnected", "url", c.url)
	c.notifyHealth(true)
}

func (c *Client) handleClosed(_ *nats.Conn) {
	if c.closed.Load() {
		return
	}
	c.status.Store(StatusDisconnected)
	c.logger.Warn("NATS connection closed")
	c.notifyHealth(false)
}

// recordFailure counts a connection failure and opens the circuit once
// the threshold is crossed, doubling the backoff up to maxBackoff.
func (c *Client) recordFailure() {
	c.failures.Add(1)

	if c.circuitFailures.Add(1) < c.circuitThreshold {
		return
	}
	c.circuitFailures.Store(0)

	backoff := c.backoff.Load().(time.Duration)
	next := backoff * 2
	if next > c.maxBackoff {
		next = c.maxBackoff
	}
	c.backoff.Store(next)

	if c.Status() != StatusCircuitOpen {
		c.status.Store(StatusCircuitOpen)
		c.logger.Warn("connection circuit opened", "backoff", backoff)
		time.AfterFunc(backoff, c.halfOpenCircuit)
	} else {
		c.logger.Warn("connection circuit still open", "backoff", next)
	}
}

func (c *Client) resetCircuit() {
	c.circuitFailures.Store(0)
	c.backoff.Store(time.Second)
	if c.Status() == StatusCircuitOpen {
		c.status.Store(StatusDisconnected)
	}
}

// halfOpenCircuit allows the next Connect attempt through after the
// backoff period.
func (c *Client) halfOpenCircuit() {
	if c.Status() == StatusCircuitOpen {
		c.status.Store(StatusDisconnected)
	}
}

func (c *Client) notifyHealth(healthy bool) {
	if c.onHealthChange != nil {
		c.onHealthChange(healthy)
	}
}

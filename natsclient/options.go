package natsclient

import (
	stderrors "errors"
	"log/slog"
	"time"
)

// Option configures a Client at construction time.
type Option func(*Client) error

// WithLogger sets the logger for connection events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			return stderrors.New("logger is nil")
		}
		c.logger = logger
		return nil
	}
}

// WithName sets the client name reported to the server.
func WithName(name string) Option {
	return func(c *Client) error {
		c.clientName = name
		return nil
	}
}

// WithCredentials sets username and password authentication.
func WithCredentials(username, password string) Option {
	return func(c *Client) error {
		c.username = username
		c.password = password
		return nil
	}
}

// WithToken sets token authentication.
func WithToken(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithTLS sets client certificate and CA files. cert and key may be
// empty to use the CA for server verification only.
func WithTLS(certFile, keyFile, caFile string) Option {
	return func(c *Client) error {
		c.tlsCertFile = certFile
		c.tlsKeyFile = keyFile
		c.tlsCAFile = caFile
		return nil
	}
}

// WithMaxReconnects bounds the library-level reconnect attempts.
// Negative means unlimited.
func WithMaxReconnects(n int) Option {
	return func(c *Client) error {
		c.maxReconnects = n
		return nil
	}
}

// WithReconnectWait sets the wait between library reconnect attempts.
func WithReconnectWait(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return stderrors.New("reconnect wait must be positive")
		}
		c.reconnectWait = d
		return nil
	}
}

// WithTimeout sets the dial timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return stderrors.New("timeout must be positive")
		}
		c.timeout = d
		return nil
	}
}

// WithCircuitThreshold sets how many consecutive failures open the
// circuit.
func WithCircuitThreshold(n int32) Option {
	return func(c *Client) error {
		if n <= 0 {
			return stderrors.New("circuit threshold must be positive")
		}
		c.circuitThreshold = n
		return nil
	}
}

// WithHealthChange registers a callback invoked on connect, disconnect
// and reconnect with the new health state.
func WithHealthChange(fn func(healthy bool)) Option {
	return func(c *Client) error {
		c.onHealthChange = fn
		return nil
	}
}

package gateway

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/formlab/modelbridge/internal/backoff"
	"github.com/formlab/modelbridge/internal/protocol"
	"github.com/rs/zerolog/log"
)

var ErrAddressRequired = errors.New("gateway: bridge address required")

// ClientConfig configures the bridge client.
type ClientConfig struct {
	Address            string
	ConnectTimeout     time.Duration
	CallTimeout        time.Duration
	MaxConnectAttempts int
	Backoff            backoff.Config
}

// DefaultClientConfig returns client defaults for a local bridge.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout:     5 * time.Second,
		CallTimeout:        15 * time.Second,
		MaxConnectAttempts: 3,
		Backoff:            backoff.DefaultConfig(),
	}
}

// Client is a long-lived bridge connection. Round trips are serialized:
// one request is in flight at a time, and no request pipelines ahead of
// the previous response.
type Client struct {
	cfg ClientConfig
	rng *rand.Rand

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// NewClient validates config and returns an unconnected client. The first
// call dials lazily.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Address == "" {
		return nil, ErrAddressRequired
	}
	def := DefaultClientConfig()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.MaxConnectAttempts <= 0 {
		cfg.MaxConnectAttempts = def.MaxConnectAttempts
	}
	if cfg.Backoff.InitialDelay <= 0 {
		cfg.Backoff = def.Backoff
	}
	return &Client{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Call performs one synchronous round trip. A response envelope with
// status=error surfaces verbatim as a *protocol.BridgeError; transport
// failures map to ConnectivityError and the bounded wait to TimeoutError.
func (c *Client) Call(ctx context.Context, name string, params map[string]any) (any, error) {
	env := protocol.CommandEnv{Name: name, Params: params}
	if err := env.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.roundTrip(ctx, env)
	if err != nil {
		var bridgeErr *protocol.BridgeError
		if !errors.As(err, &bridgeErr) {
			return nil, err
		}
		// One transparent reconnect for a connection that went stale
		// between calls. Timeouts are not retried: the command may have
		// executed.
		if bridgeErr.Kind != protocol.KindConnectivity {
			return nil, err
		}
		c.dropConn()
		resp, err = c.roundTrip(ctx, env)
		if err != nil {
			return nil, err
		}
	}

	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// Close drops the connection. The client may be reused; the next call
// redials.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

func (c *Client) roundTrip(ctx context.Context, env protocol.CommandEnv) (protocol.ResponseEnv, error) {
	if err := c.ensureConn(ctx); err != nil {
		return protocol.ResponseEnv{}, err
	}

	deadline := time.Now().Add(c.cfg.CallTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = c.conn.SetDeadline(deadline)

	if err := protocol.WriteCommand(c.conn, env); err != nil {
		c.dropConn()
		return protocol.ResponseEnv{}, connectivityError("write command", err)
	}

	resp, err := protocol.ReadResponse(c.reader)
	if err != nil {
		c.dropConn()
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return protocol.ResponseEnv{}, &protocol.BridgeError{
				Kind:    protocol.KindTimeout,
				Message: fmt.Sprintf("no response within %s", c.cfg.CallTimeout),
			}
		}
		return protocol.ResponseEnv{}, connectivityError("read response", err)
	}
	return resp, nil
}

// ensureConn dials with bounded retries and exponential backoff.
func (c *Client) ensureConn(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxConnectAttempts; attempt++ {
		dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Address)
		if err == nil {
			c.conn = conn
			c.reader = bufio.NewReader(conn)
			log.Debug().Str("addr", c.cfg.Address).Int("attempt", attempt).Msg("bridge connected")
			return nil
		}
		lastErr = err
		log.Warn().Str("addr", c.cfg.Address).Int("attempt", attempt).Err(err).Msg("bridge dial failed")
		if attempt == c.cfg.MaxConnectAttempts {
			break
		}
		if err := c.sleepBackoff(ctx, attempt); err != nil {
			return connectivityError("dial", err)
		}
	}
	return connectivityError("dial", lastErr)
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(backoff.Next(c.cfg.Backoff, attempt, c.rng))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) dropConn() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = nil
	c.reader = nil
}

func connectivityError(op string, err error) *protocol.BridgeError {
	return &protocol.BridgeError{
		Kind:    protocol.KindConnectivity,
		Message: fmt.Sprintf("%s: %v", op, err),
	}
}

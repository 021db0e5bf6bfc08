package bridge

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/formlab/modelbridge/internal/observability"
	"github.com/formlab/modelbridge/internal/protocol"
	"github.com/formlab/modelbridge/internal/registry"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrAlreadyListening = errors.New("bridge: a bridge is already listening")
	ErrNotListening     = errors.New("bridge: not listening")
)

// listening enforces at most one active bridge per process. The host embeds
// exactly one scripting context, so a second listener is always a mistake.
var listening atomic.Bool

// Config holds bridge runtime settings.
type Config struct {
	ListenAddr string
	TickBatch  int
}

// DefaultConfig returns bridge defaults matching the documented endpoint.
func DefaultConfig() Config {
	return Config{
		ListenAddr: "localhost:9876",
		TickBatch:  DefaultTickBatch,
	}
}

// Bridge accepts client connections and funnels their commands through the
// scheduler onto the host turn. Start/Stop bound its lifecycle; a stopped
// bridge is not reusable.
type Bridge struct {
	cfg   Config
	sched *Scheduler

	// Closed by Stop. Connection goroutines waiting on a completion slot
	// select against it, since once ticks cease the slot never fills.
	shutdown chan struct{}

	mu    sync.Mutex
	ln    net.Listener
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// New creates a bridge dispatching into the given registry.
func New(cfg Config, reg *registry.Registry) *Bridge {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultConfig().ListenAddr
	}
	return &Bridge{
		cfg:      cfg,
		sched:    NewScheduler(reg),
		shutdown: make(chan struct{}),
		conns:    make(map[net.Conn]struct{}),
	}
}

// Scheduler exposes the pending-call queue shared with the HTTP transport.
func (b *Bridge) Scheduler() *Scheduler {
	return b.sched
}

// Tick drains one batch. The host installs this as a turn hook.
func (b *Bridge) Tick() {
	b.sched.Tick(b.cfg.TickBatch)
}

// Start binds the listening endpoint and spawns the accept loop. It
// refuses to run while another bridge is listening in this process.
func (b *Bridge) Start() error {
	if !listening.CompareAndSwap(false, true) {
		return ErrAlreadyListening
	}
	ln, err := net.Listen("tcp", b.cfg.ListenAddr)
	if err != nil {
		listening.Store(false)
		return err
	}
	b.mu.Lock()
	b.ln = ln
	b.mu.Unlock()

	log.Info().Str("addr", ln.Addr().String()).Msg("bridge listening")
	b.wg.Add(1)
	go b.acceptLoop(ln)
	return nil
}

// Addr returns the bound listener address.
func (b *Bridge) Addr() net.Addr {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ln == nil {
		return nil
	}
	return b.ln.Addr()
}

// Stop closes the listener and every open connection, then waits for the
// transport goroutines to exit. Queued calls still complete on later host
// turns; their responses are discarded.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	ln := b.ln
	b.ln = nil
	conns := make([]net.Conn, 0, len(b.conns))
	for conn := range b.conns {
		conns = append(conns, conn)
	}
	b.mu.Unlock()

	if ln == nil {
		return ErrNotListening
	}
	err := ln.Close()
	// Release goroutines parked on completion slots before waiting;
	// with ticks potentially ceased those slots may never fill.
	close(b.shutdown)
	for _, conn := range conns {
		_ = conn.Close()
	}
	b.wg.Wait()
	listening.Store(false)
	log.Info().Msg("bridge stopped")
	return err
}

func (b *Bridge) acceptLoop(ln net.Listener) {
	defer b.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn().Err(err).Msg("accept failed")
			return
		}
		b.trackConn(conn)
		b.wg.Add(1)
		go b.handleConn(conn)
	}
}

func (b *Bridge) trackConn(conn net.Conn) {
	b.mu.Lock()
	b.conns[conn] = struct{}{}
	b.mu.Unlock()
	observability.ConnOpened()
}

func (b *Bridge) untrackConn(conn net.Conn) {
	b.mu.Lock()
	delete(b.conns, conn)
	b.mu.Unlock()
	observability.ConnClosed()
}

// handleConn reads one command at a time, hands it to the scheduler, and
// writes back the completed response. The connection stays open across
// request/response cycles; it closes on client disconnect, a protocol
// violation, or bridge shutdown.
func (b *Bridge) handleConn(conn net.Conn) {
	defer b.wg.Done()
	defer conn.Close()
	defer b.untrackConn(conn)

	connID := uuid.NewString()
	logger := log.With().Str("conn", connID).Str("remote", conn.RemoteAddr().String()).Logger()
	logger.Info().Msg("client connected")
	defer logger.Info().Msg("client disconnected")

	reader := bufio.NewReader(conn)
	for {
		env, err := protocol.ReadCommand(reader)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			if errors.Is(err, protocol.ErrDecode) || errors.Is(err, protocol.ErrMessageTooLarge) {
				// Malformed input never engages the scheduler; the client
				// gets a decode error and loses the connection.
				resp := protocol.ErrorResponse(protocol.KindDecode, err.Error())
				if werr := protocol.WriteResponse(conn, resp); werr != nil {
					logger.Warn().Err(werr).Msg("decode error response dropped")
				}
				logger.Warn().Err(err).Msg("protocol violation")
				return
			}
			logger.Warn().Err(err).Msg("read failed")
			return
		}

		call := b.sched.Enqueue(env)
		logger.Debug().Str("command", env.Name).Msg("command queued")

		select {
		case resp := <-call.Done():
			if err := protocol.WriteResponse(conn, resp); err != nil {
				// Client went away while the call was queued or executing;
				// the completed result has nowhere to go.
				logger.Warn().Str("command", env.Name).Err(err).Msg("response discarded")
				return
			}
		case <-b.shutdown:
			logger.Info().Str("command", env.Name).Msg("shutdown before completion, response discarded")
			return
		}
	}
}

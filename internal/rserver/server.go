// Package rserver implements the TCP acceptor, per-connection handler,
// and subscribe-session state machine of §4.E-§4.G.
package rserver

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/time/rate"

	"github.com/adred-codev/miniredis/internal/shutdown"
	"github.com/adred-codev/miniredis/internal/store"
)

// Config configures a Server's acceptor behavior (§4.G, §6).
type Config struct {
	Addr           string
	MaxConnections int
	BackoffStart   time.Duration
	BackoffCeiling time.Duration
	CommandRateRPS float64
	CommandBurst   int
}

// Server owns the listener, the shared store, the connection permit
// pool, and the shutdown broadcast (§4.G).
type Server struct {
	cfg Config
	log zerolog.Logger

	st      *store.Store
	metrics *metrics

	listener net.Listener
	permits  chan struct{}

	shutdownSig *shutdown.Signal

	nextConnID atomic.Uint64 // monotonic id for log correlation, assigned per accepted connection

	wg    sync.WaitGroup // the drain sentinel: Wait returns once every handler has dropped its permit
	ready chan struct{}  // closed once the listener is bound, for callers/tests that need the chosen address
}

// New constructs a Server. The store is owned by the server and its
// purger is stopped on Shutdown, per §9's "cyclic state between
// server and store" note.
func New(cfg Config, log zerolog.Logger, reg prometheus.Registerer) *Server {
	return &Server{
		cfg:         cfg,
		log:         log,
		st:          store.New(),
		metrics:     newMetrics(reg, cfg.MaxConnections),
		permits:     make(chan struct{}, cfg.MaxConnections),
		shutdownSig: shutdown.NewSignal(),
		ready:       make(chan struct{}),
	}
}

// Addr blocks until the listener is bound, then returns its address.
// Intended for callers (and tests) that started Run in a goroutine
// with an ephemeral ":0" port and need to know what was chosen.
func (s *Server) Addr() net.Addr {
	<-s.ready
	return s.listener.Addr()
}

// Run binds the listener and accepts connections until either the
// accept loop fails fatally or stop fires, then performs a graceful
// drain (§4.G's Shutdown). It returns once every spawned handler has
// finished.
func (s *Server) Run(stop <-chan struct{}) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	close(s.ready)
	s.log.Info().Str("addr", ln.Addr().String()).Msg("server listening")

	proc, procErr := process.NewProcess(int32(os.Getpid()))
	if procErr != nil {
		s.log.Warn().Err(procErr).Msg("process metrics unavailable")
		proc = nil
	}
	sampleDone := make(chan struct{})
	go s.sampleMetricsLoop(proc, sampleDone)

	acceptErr := make(chan error, 1)
	go func() { acceptErr <- s.acceptLoop() }()

	var runErr error
	select {
	case <-stop:
		s.log.Info().Msg("shutdown requested")
	case runErr = <-acceptErr:
		s.log.Error().Err(runErr).Msg("accept loop failed fatally")
	}

	close(sampleDone)
	s.listener.Close()
	s.shutdownSig.Trigger()
	s.wg.Wait()
	s.st.Close()

	s.log.Info().Msg("graceful drain complete")
	return runErr
}

// acceptLoop implements §4.G's accept loop: acquire a permit, accept a
// connection, apply exponential backoff on error, and spawn a handler
// per accepted connection.
func (s *Server) acceptLoop() error {
	backoff := s.cfg.BackoffStart

	for {
		s.permits <- struct{}{} // acquire a permit, blocking if the pool is exhausted

		conn, err := s.listener.Accept()
		if err != nil {
			<-s.permits // didn't use the permit, release it

			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			s.metrics.acceptErrors.Inc()
			s.log.Warn().Err(err).Dur("backoff", backoff).Msg("accept error, retrying")

			if backoff > s.cfg.BackoffCeiling {
				return fmt.Errorf("accept backoff exceeded ceiling: %w", err)
			}
			time.Sleep(backoff)
			backoff *= 2
			continue
		}

		backoff = s.cfg.BackoffStart
		s.metrics.connectionsTotal.Inc()
		s.metrics.connectionsActive.Inc()

		s.wg.Add(1)
		connID := s.nextConnID.Add(1)
		go s.runHandler(conn, connID)
	}
}

func (s *Server) runHandler(conn net.Conn, connID uint64) {
	defer func() {
		<-s.permits
		s.metrics.connectionsActive.Dec()
		s.wg.Done()
	}()

	log := s.log.With().Uint64("conn_id", connID).Logger()
	limiter := rate.NewLimiter(rate.Limit(s.cfg.CommandRateRPS), s.cfg.CommandBurst)
	h := newHandler(conn, s.st, s.shutdownSig.Receiver(), limiter, s.metrics, log)
	h.serve()
}

func (s *Server) sampleMetricsLoop(proc *process.Process, done <-chan struct{}) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.metrics.sampleProcess(proc)
		case <-done:
			return
		}
	}
}

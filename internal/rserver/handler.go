package rserver

import (
	"context"
	"net"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/adred-codev/miniredis/internal/command"
	"github.com/adred-codev/miniredis/internal/resp"
	"github.com/adred-codev/miniredis/internal/shutdown"
	"github.com/adred-codev/miniredis/internal/store"
)

type readResult struct {
	frame resp.Frame
	err   error
}

// handler owns one accepted connection's lifecycle (§4.E).
type handler struct {
	conn     net.Conn
	codec    *resp.Codec
	st       *store.Store
	shutdown *shutdown.Receiver
	limiter  *rate.Limiter
	metrics  *metrics
	log      zerolog.Logger

	reads chan readResult
}

func newHandler(conn net.Conn, st *store.Store, sh *shutdown.Receiver, limiter *rate.Limiter, m *metrics, log zerolog.Logger) *handler {
	return &handler{
		conn:     conn,
		codec:    resp.NewCodec(conn),
		st:       st,
		shutdown: sh,
		limiter:  limiter,
		metrics:  m,
		log:      log,
		reads:    make(chan readResult, 1),
	}
}

// readLoop continuously decodes client frames into h.reads so the
// handler's select loop can race a blocking socket read against
// shutdown (§4.E). It exits on the first error, including the clean
// EOF that follows the connection closing.
func (h *handler) readLoop() {
	for {
		f, err := h.codec.ReadFrame()
		h.reads <- readResult{f, err}
		if err != nil {
			return
		}
	}
}

// serve runs the connection until shutdown, clean EOF, or an
// unrecoverable error, per §4.E's loop. Errors are logged here; the
// caller is responsible only for releasing the connection's permit.
func (h *handler) serve() {
	defer h.conn.Close()

	go h.readLoop()

	if err := h.loop(); err != nil {
		h.log.Debug().Err(err).Str("remote", h.conn.RemoteAddr().String()).Msg("connection terminated")
	}
}

func (h *handler) loop() error {
	for {
		select {
		case <-h.shutdown.Done():
			return nil
		case r := <-h.reads:
			if r.err != nil {
				if r.err == resp.ErrConnectionClosed {
					return nil
				}
				return r.err
			}

			if err := h.limiter.Wait(context.Background()); err != nil {
				return err
			}

			exit, err := h.applyFrame(r.frame)
			if exit {
				return err
			}
		}
	}
}

// applyFrame decodes one client frame and dispatches it. A SUBSCRIBE
// command hands the connection entirely to the subscribe session,
// whose own Exit ends the connection; every other command is applied
// in place and the outer loop continues.
func (h *handler) applyFrame(frame resp.Frame) (exit bool, err error) {
	cmd, decodeErr := command.Decode(frame)
	if decodeErr != nil {
		_ = h.codec.WriteFrame(resp.Err("ERR " + decodeErr.Error()))
		return true, decodeErr
	}

	if cmd.Kind == command.KindSubscribe {
		sess := newSession(h.codec, h.st, h.shutdown, h.metrics, h.reads)
		return true, sess.run(cmd.Channels)
	}

	response := applyNonSubscribe(h.st, h.metrics, cmd)
	if werr := h.codec.WriteFrame(response); werr != nil {
		return true, werr
	}
	return false, nil
}

package rserver

import (
	"reflect"

	"github.com/adred-codev/miniredis/internal/command"
	"github.com/adred-codev/miniredis/internal/resp"
	"github.com/adred-codev/miniredis/internal/shutdown"
	"github.com/adred-codev/miniredis/internal/store"
)

// session runs the subscribe-mode state machine of §4.F for one
// connection. Once entered, it owns the connection until Exit; the
// connection handler never resumes its own command loop afterward. It
// reuses the handler's single background reader rather than starting
// a second one, since two goroutines calling codec.ReadFrame
// concurrently would race on the shared buffer.
type session struct {
	codec    *resp.Codec
	st       *store.Store
	shutdown *shutdown.Receiver
	metrics  *metrics

	subs     map[string]uint64        // channel -> subscription id
	messages map[string]<-chan []byte // channel -> message stream
	order    []string                 // subscription order, for stable SelectCase indexing

	reads <-chan readResult
}

func newSession(codec *resp.Codec, st *store.Store, sh *shutdown.Receiver, m *metrics, reads <-chan readResult) *session {
	return &session{
		codec:    codec,
		st:       st,
		shutdown: sh,
		metrics:  m,
		subs:     make(map[string]uint64),
		messages: make(map[string]<-chan []byte),
		reads:    reads,
	}
}

// run drives the S0/S1/Exit state machine starting from an initial
// pending subscription list (the channels named by the SUBSCRIBE
// command that entered subscribe mode).
func (s *session) run(pending []string) error {
	for {
		if len(pending) > 0 {
			if err := s.enterS0(pending); err != nil {
				return err
			}
			pending = nil
			continue
		}

		exit, err := s.stepS1()
		if exit || err != nil {
			return err
		}
	}
}

// enterS0 subscribes to each pending channel and emits its
// confirmation, per §4.F's S0 → S1 transition.
func (s *session) enterS0(pending []string) error {
	for _, ch := range pending {
		id, msgs := s.st.Subscribe(ch)
		s.subs[ch] = id
		s.messages[ch] = msgs
		s.order = append(s.order, ch)
		s.metrics.subscribers.Inc()

		confirm := resp.ArrayOf(resp.Simple("subscribe"), resp.BulkString(ch), resp.Int64(uint64(len(s.subs))))
		if err := s.codec.WriteFrame(confirm); err != nil {
			return err
		}
	}
	return nil
}

// stepS1 runs one iteration of §4.F's S1 race between a subscribed
// channel's next message, the next client frame, and shutdown. It
// returns exit=true once the session should terminate.
func (s *session) stepS1() (exit bool, err error) {
	cases := make([]reflect.SelectCase, 0, len(s.order)+2)
	channels := make([]string, 0, len(s.order))

	for _, ch := range s.order {
		msgs, ok := s.messages[ch]
		if !ok {
			continue
		}
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(msgs)})
		channels = append(channels, ch)
	}
	frameIdx := len(cases)
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(s.reads)})
	shutdownIdx := len(cases)
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(s.shutdown.Done())})

	chosen, recv, recvOK := reflect.Select(cases)

	switch {
	case chosen == shutdownIdx:
		return true, nil

	case chosen == frameIdx:
		fr := recv.Interface().(readResult)
		if fr.err != nil {
			if fr.err == resp.ErrConnectionClosed {
				return true, nil
			}
			return true, fr.err
		}
		return s.handleClientFrame(fr.frame)

	default:
		if !recvOK {
			// the hub never closes a mailbox (a lagging subscriber loses
			// messages at publish time instead); a closed receive is
			// skipped silently and the receiver is kept.
			return false, nil
		}
		payload := recv.Interface().([]byte)
		channel := channels[chosen]
		msg := resp.ArrayOf(resp.BulkString("message"), resp.BulkString(channel), resp.BulkBytes(payload))
		if err := s.codec.WriteFrame(msg); err != nil {
			return true, err
		}
		return false, nil
	}
}

// handleClientFrame decodes one client frame received while
// multiplexing and applies the SUBSCRIBE/UNSUBSCRIBE/other-command
// branches of §4.F.
func (s *session) handleClientFrame(frame resp.Frame) (exit bool, err error) {
	cmd, decodeErr := command.Decode(frame)
	if decodeErr != nil {
		return true, decodeErr
	}

	switch cmd.Kind {
	case command.KindSubscribe:
		return false, s.enterS0(cmd.Channels)

	case command.KindUnsubscribe:
		return false, s.unsubscribe(cmd.Channels)

	default:
		s.metrics.unknownCommands.Inc()
		if werr := s.codec.WriteFrame(unknownCommandErr(cmd.Name)); werr != nil {
			return true, werr
		}
		return false, nil
	}
}

// unsubscribe removes each named channel (or every current
// subscription, if the list is empty) and emits one confirmation per
// channel, always — §9 flags the source's nested empty-list check as
// a bug and directs implementers toward this single-level behavior.
func (s *session) unsubscribe(channels []string) error {
	if len(channels) == 0 {
		channels = append([]string(nil), s.order...)
	}

	for _, ch := range channels {
		if id, ok := s.subs[ch]; ok {
			s.st.Unsubscribe(ch, id)
			delete(s.subs, ch)
			delete(s.messages, ch)
			s.removeFromOrder(ch)
			s.metrics.subscribers.Dec()
		}

		confirm := resp.ArrayOf(resp.Simple("unsubscribe"), resp.BulkString(ch), resp.Int64(uint64(len(s.subs))))
		if err := s.codec.WriteFrame(confirm); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) removeFromOrder(ch string) {
	for i, c := range s.order {
		if c == ch {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

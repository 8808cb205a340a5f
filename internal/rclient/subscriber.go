package rclient

import (
	"fmt"

	"github.com/adred-codev/miniredis/internal/command"
	"github.com/adred-codev/miniredis/internal/resp"
)

// Subscriber holds a connection that has entered subscribe mode and
// the channel names it currently holds (§4.H).
type Subscriber struct {
	client   *Client
	channels []string
}

// Channels returns the subscriber's current channel list.
func (s *Subscriber) Channels() []string {
	return append([]string(nil), s.channels...)
}

// NextMessage reads one frame and accepts only a message frame,
// returning its channel and payload.
func (s *Subscriber) NextMessage() (channel string, payload []byte, err error) {
	f, err := s.client.codec.ReadFrame()
	if err != nil {
		return "", nil, err
	}
	if f.Kind != resp.KindArray || len(f.Array) != 3 {
		return "", nil, fmt.Errorf("rclient: expected message frame, got %v", f)
	}
	kind, ch, payloadFrame := f.Array[0], f.Array[1], f.Array[2]
	if kind.Kind != resp.KindBulk || string(kind.Bulk) != "message" {
		return "", nil, fmt.Errorf("rclient: expected message frame, got %v", f)
	}
	if ch.Kind != resp.KindBulk || payloadFrame.Kind != resp.KindBulk {
		return "", nil, fmt.Errorf("rclient: malformed message frame %v", f)
	}
	return string(ch.Bulk), payloadFrame.Bulk, nil
}

// Messages returns a channel fed by repeated NextMessage calls, lazily
// pulling one message at a time — the Go analogue of a pull-style
// infinite sequence. The returned channel closes once NextMessage
// returns an error; callers should stop reading at that point.
func (s *Subscriber) Messages() <-chan Message {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			ch, payload, err := s.NextMessage()
			if err != nil {
				return
			}
			out <- Message{Channel: ch, Payload: payload}
		}
	}()
	return out
}

// Message is one delivered publish, as seen by a Subscriber.
type Message struct {
	Channel string
	Payload []byte
}

// Subscribe appends channels to this subscriber's list, sending a new
// SUBSCRIBE frame and reading one confirmation per added channel.
func (s *Subscriber) Subscribe(channels ...string) error {
	if err := s.client.codec.WriteFrame(command.Encode(command.Command{Kind: command.KindSubscribe, Channels: channels})); err != nil {
		return err
	}
	for _, ch := range channels {
		f, err := s.client.codec.ReadFrame()
		if err != nil {
			return err
		}
		if err := validateSubscribeConfirm(f, ch); err != nil {
			return err
		}
	}
	s.channels = append(s.channels, channels...)
	return nil
}

// Unsubscribe removes channels from this subscriber's list, sending an
// UNSUBSCRIBE frame and reading one confirmation per removed channel.
// An empty argument list unsubscribes from every currently held
// channel, mirroring the server session's own empty-list behavior.
func (s *Subscriber) Unsubscribe(channels ...string) error {
	if len(channels) == 0 {
		channels = s.Channels()
	}
	if err := s.client.codec.WriteFrame(command.Encode(command.Command{Kind: command.KindUnsubscribe, Channels: channels})); err != nil {
		return err
	}
	for range channels {
		if _, err := s.client.codec.ReadFrame(); err != nil {
			return err
		}
	}
	s.removeChannels(channels)
	return nil
}

func (s *Subscriber) removeChannels(removed []string) {
	gone := make(map[string]bool, len(removed))
	for _, ch := range removed {
		gone[ch] = true
	}
	kept := s.channels[:0]
	for _, ch := range s.channels {
		if !gone[ch] {
			kept = append(kept, ch)
		}
	}
	s.channels = kept
}

// Package rclient provides an async-style client mirroring the server
// connection handler of §4.E, per §4.H: connect, get, set, ping,
// publish, and subscribe, each serializing a command via the command
// package and reading back a typed response.
package rclient

import (
	"fmt"
	"net"
	"time"

	"github.com/adred-codev/miniredis/internal/command"
	"github.com/adred-codev/miniredis/internal/resp"
)

// Client is a single connection to a server, speaking the same wire
// protocol the server's handler decodes (§4.A/§4.C).
type Client struct {
	conn  net.Conn
	codec *resp.Codec
}

// Connect dials addr and wraps the connection in a codec.
func Connect(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return &Client{conn: conn, codec: resp.NewCodec(conn)}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(cmd command.Command) (resp.Frame, error) {
	if err := c.codec.WriteFrame(command.Encode(cmd)); err != nil {
		return resp.Frame{}, err
	}
	return c.codec.ReadFrame()
}

// Get fetches key. ok is false if the server replied with a null
// bulk; a bulk or simple-string reply is returned as the value, and
// any other frame kind is a protocol-level error per §4.H.
func (c *Client) Get(key string) (value []byte, ok bool, err error) {
	f, err := c.call(command.Command{Kind: command.KindGet, Key: key})
	if err != nil {
		return nil, false, err
	}
	switch f.Kind {
	case resp.KindBulk:
		if f.Null {
			return nil, false, nil
		}
		return f.Bulk, true, nil
	case resp.KindSimple:
		return []byte(f.Str), true, nil
	default:
		return nil, false, fmt.Errorf("rclient: GET: unexpected reply %v", f)
	}
}

// Set stores value for key. ttl of zero means no expiry.
func (c *Client) Set(key string, value []byte, ttl time.Duration) error {
	cmd := command.Command{Kind: command.KindSet, Key: key, Value: value}
	if ttl > 0 {
		cmd.HasExpire = true
		cmd.Expire = ttl
	}
	f, err := c.call(cmd)
	if err != nil {
		return err
	}
	if f.Kind == resp.KindError {
		return fmt.Errorf("rclient: SET: %s", f.Str)
	}
	return nil
}

// Ping sends PING, optionally with a payload, and returns the
// server's reply text.
func (c *Client) Ping(msg []byte) (string, error) {
	cmd := command.Command{Kind: command.KindPing}
	if msg != nil {
		cmd.HasMsg = true
		cmd.Msg = msg
	}
	f, err := c.call(cmd)
	if err != nil {
		return "", err
	}
	switch f.Kind {
	case resp.KindSimple:
		return f.Str, nil
	case resp.KindBulk:
		return string(f.Bulk), nil
	default:
		return "", fmt.Errorf("rclient: PING: unexpected reply %v", f)
	}
}

// Publish sends msg to channel and returns the subscriber count the
// server reported.
func (c *Client) Publish(channel string, msg []byte) (int64, error) {
	f, err := c.call(command.Command{Kind: command.KindPublish, Channel: channel, Message: msg})
	if err != nil {
		return 0, err
	}
	if f.Kind != resp.KindInt {
		return 0, fmt.Errorf("rclient: PUBLISH: unexpected reply %v", f)
	}
	return int64(f.Int), nil
}

// Subscribe sends one SUBSCRIBE frame for channels and reads one
// confirmation per channel, in order, per §4.H. It returns a
// Subscriber that owns the connection from this point forward.
func (c *Client) Subscribe(channels ...string) (*Subscriber, error) {
	if err := c.codec.WriteFrame(command.Encode(command.Command{Kind: command.KindSubscribe, Channels: channels})); err != nil {
		return nil, err
	}

	for _, ch := range channels {
		f, err := c.codec.ReadFrame()
		if err != nil {
			return nil, err
		}
		if err := validateSubscribeConfirm(f, ch); err != nil {
			return nil, err
		}
	}

	return &Subscriber{client: c, channels: append([]string(nil), channels...)}, nil
}

func validateSubscribeConfirm(f resp.Frame, wantChannel string) error {
	if f.Kind != resp.KindArray || len(f.Array) < 2 {
		return fmt.Errorf("rclient: SUBSCRIBE: malformed confirmation %v", f)
	}
	kind := f.Array[0]
	if kind.Kind != resp.KindSimple || kind.Str != "subscribe" {
		return fmt.Errorf("rclient: SUBSCRIBE: expected subscribe confirmation, got %v", f)
	}
	channel := f.Array[1]
	if channel.Kind != resp.KindBulk || string(channel.Bulk) != wantChannel {
		return fmt.Errorf("rclient: SUBSCRIBE: confirmation for %q, expected %q", channel.Bulk, wantChannel)
	}
	return nil
}

// Package command implements the typed command model of §4.C: decoding
// a RESP array frame into a Command, and re-encoding a Command back
// into a frame.
package command

import (
	"strconv"
	"strings"
	"time"

	"github.com/adred-codev/miniredis/internal/resp"
)

// Kind identifies which command variant a Command holds.
type Kind int

const (
	KindGet Kind = iota
	KindSet
	KindPublish
	KindSubscribe
	KindUnsubscribe
	KindPing
	KindUnknown
)

// Command is the decoded, typed form of one client request.
type Command struct {
	Kind Kind

	// GET, SET
	Key string

	// SET
	Value     []byte
	Expire    time.Duration
	HasExpire bool

	// PUBLISH
	Channel string
	Message []byte

	// SUBSCRIBE, UNSUBSCRIBE
	Channels []string

	// PING
	Msg    []byte
	HasMsg bool

	// unrecognized command
	Name string
}

// Decode parses a command out of an array frame, per the table in
// §4.C. The outer frame's first element names the command
// (case-insensitive); an unrecognized name decodes successfully as
// KindUnknown rather than failing — §4.C defers it to an error
// response at apply time, not at decode time.
func Decode(frame resp.Frame) (Command, error) {
	p, err := NewParse(frame)
	if err != nil {
		return Command{}, err
	}

	name, err := p.NextString()
	if err != nil {
		return Command{}, decodeErr("missing command name: %v", err)
	}
	lower := strings.ToLower(name)

	switch lower {
	case "get":
		return decodeGet(p)
	case "set":
		return decodeSet(p)
	case "publish":
		return decodePublish(p)
	case "subscribe":
		return decodeSubscribe(p)
	case "unsubscribe":
		return decodeUnsubscribe(p)
	case "ping":
		return decodePing(p)
	default:
		return Command{Kind: KindUnknown, Name: lower}, nil
	}
}

func decodeGet(p *Parse) (Command, error) {
	key, err := p.NextString()
	if err != nil {
		return Command{}, decodeErr("GET requires a key: %v", err)
	}
	if err := p.Finish(); err != nil {
		return Command{}, err
	}
	return Command{Kind: KindGet, Key: key}, nil
}

func decodeSet(p *Parse) (Command, error) {
	key, err := p.NextString()
	if err != nil {
		return Command{}, decodeErr("SET requires a key: %v", err)
	}
	value, err := p.NextBytes()
	if err != nil {
		return Command{}, decodeErr("SET requires a value: %v", err)
	}

	cmd := Command{Kind: KindSet, Key: key, Value: value}

	flag, err := p.NextString()
	if err == ErrEndOfStream {
		if err := p.Finish(); err != nil {
			return Command{}, err
		}
		return cmd, nil
	}
	if err != nil {
		return Command{}, err
	}

	amount, err := p.NextInt()
	if err != nil {
		return Command{}, decodeErr("%s requires a numeric argument: %v", flag, err)
	}

	switch strings.ToUpper(flag) {
	case "EX":
		cmd.Expire = time.Duration(amount) * time.Second
		cmd.HasExpire = true
	case "PX":
		cmd.Expire = time.Duration(amount) * time.Millisecond
		cmd.HasExpire = true
	default:
		return Command{}, decodeErr("unsupported SET option %q", flag)
	}

	if err := p.Finish(); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

func decodePublish(p *Parse) (Command, error) {
	channel, err := p.NextString()
	if err != nil {
		return Command{}, decodeErr("PUBLISH requires a channel: %v", err)
	}
	message, err := p.NextBytes()
	if err != nil {
		return Command{}, decodeErr("PUBLISH requires a message: %v", err)
	}
	if err := p.Finish(); err != nil {
		return Command{}, err
	}
	return Command{Kind: KindPublish, Channel: channel, Message: message}, nil
}

func decodeSubscribe(p *Parse) (Command, error) {
	var channels []string
	for {
		ch, err := p.NextString()
		if err == ErrEndOfStream {
			break
		}
		if err != nil {
			return Command{}, err
		}
		channels = append(channels, ch)
	}
	if len(channels) == 0 {
		return Command{}, decodeErr("SUBSCRIBE requires at least one channel")
	}
	return Command{Kind: KindSubscribe, Channels: channels}, nil
}

func decodeUnsubscribe(p *Parse) (Command, error) {
	var channels []string
	for {
		ch, err := p.NextString()
		if err == ErrEndOfStream {
			break
		}
		if err != nil {
			return Command{}, err
		}
		channels = append(channels, ch)
	}
	return Command{Kind: KindUnsubscribe, Channels: channels}, nil
}

func decodePing(p *Parse) (Command, error) {
	msg, err := p.NextBytes()
	if err == ErrEndOfStream {
		return Command{Kind: KindPing}, nil
	}
	if err != nil {
		return Command{}, err
	}
	if err := p.Finish(); err != nil {
		return Command{}, err
	}
	return Command{Kind: KindPing, Msg: msg, HasMsg: true}, nil
}

// Encode re-emits cmd as the array-of-bulks frame a client would send.
func Encode(cmd Command) resp.Frame {
	switch cmd.Kind {
	case KindGet:
		return resp.ArrayOf(resp.BulkString("GET"), resp.BulkString(cmd.Key))
	case KindSet:
		elems := []resp.Frame{resp.BulkString("SET"), resp.BulkString(cmd.Key), resp.BulkBytes(cmd.Value)}
		if cmd.HasExpire {
			millis := cmd.Expire / time.Millisecond
			elems = append(elems, resp.BulkString("PX"), resp.BulkString(strconv.FormatInt(int64(millis), 10)))
		}
		return resp.ArrayOf(elems...)
	case KindPublish:
		return resp.ArrayOf(resp.BulkString("PUBLISH"), resp.BulkString(cmd.Channel), resp.BulkBytes(cmd.Message))
	case KindSubscribe:
		elems := make([]resp.Frame, 0, len(cmd.Channels)+1)
		elems = append(elems, resp.BulkString("SUBSCRIBE"))
		for _, ch := range cmd.Channels {
			elems = append(elems, resp.BulkString(ch))
		}
		return resp.ArrayOf(elems...)
	case KindUnsubscribe:
		elems := make([]resp.Frame, 0, len(cmd.Channels)+1)
		elems = append(elems, resp.BulkString("UNSUBSCRIBE"))
		for _, ch := range cmd.Channels {
			elems = append(elems, resp.BulkString(ch))
		}
		return resp.ArrayOf(elems...)
	case KindPing:
		elems := []resp.Frame{resp.BulkString("PING")}
		if cmd.HasMsg {
			elems = append(elems, resp.BulkBytes(cmd.Msg))
		}
		return resp.ArrayOf(elems...)
	default:
		return resp.ArrayOf(resp.BulkString(cmd.Name))
	}
}

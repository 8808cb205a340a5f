package command

import (
	"testing"
	"time"

	"github.com/adred-codev/miniredis/internal/resp"
)

func frameFromWire(t *testing.T, wire string) resp.Frame {
	t.Helper()
	f, err := resp.Decode([]byte(wire))
	if err != nil {
		t.Fatalf("decode wire: %v", err)
	}
	return f
}

func TestDecodeGet(t *testing.T) {
	f := frameFromWire(t, "*2\r\n$3\r\nGET\r\n$5\r\nhello\r\n")
	cmd, err := Decode(f)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cmd.Kind != KindGet || cmd.Key != "hello" {
		t.Fatalf("got %+v", cmd)
	}
}

func TestDecodeSetWithPX(t *testing.T) {
	f := frameFromWire(t, "*5\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n$2\r\nPX\r\n$3\r\n100\r\n")
	cmd, err := Decode(f)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cmd.Kind != KindSet || cmd.Key != "k" || string(cmd.Value) != "v" {
		t.Fatalf("got %+v", cmd)
	}
	if !cmd.HasExpire || cmd.Expire != 100*time.Millisecond {
		t.Fatalf("expected 100ms expiry, got %+v", cmd)
	}
}

func TestDecodeSetWithEX(t *testing.T) {
	f := frameFromWire(t, "*5\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n$2\r\nEX\r\n$1\r\n5\r\n")
	cmd, err := Decode(f)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cmd.Expire != 5*time.Second {
		t.Fatalf("expected 5s expiry, got %v", cmd.Expire)
	}
}

func TestDecodeSetRejectsUnknownOption(t *testing.T) {
	f := frameFromWire(t, "*5\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n$2\r\nNX\r\n$1\r\n5\r\n")
	if _, err := Decode(f); err == nil {
		t.Fatal("expected error for NX option")
	}
}

func TestDecodeSetRejectsTrailingArgs(t *testing.T) {
	f := frameFromWire(t, "*4\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n$4\r\njunk\r\n")
	if _, err := Decode(f); err == nil {
		t.Fatal("expected error for trailing argument")
	}
}

func TestDecodePublish(t *testing.T) {
	f := frameFromWire(t, "*3\r\n$7\r\nPUBLISH\r\n$5\r\nhello\r\n$5\r\nworld\r\n")
	cmd, err := Decode(f)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cmd.Kind != KindPublish || cmd.Channel != "hello" || string(cmd.Message) != "world" {
		t.Fatalf("got %+v", cmd)
	}
}

func TestDecodeSubscribeRequiresChannel(t *testing.T) {
	f := frameFromWire(t, "*1\r\n$9\r\nSUBSCRIBE\r\n")
	if _, err := Decode(f); err == nil {
		t.Fatal("expected error for SUBSCRIBE with no channels")
	}
}

func TestDecodeUnsubscribeAllowsEmpty(t *testing.T) {
	f := frameFromWire(t, "*1\r\n$11\r\nUNSUBSCRIBE\r\n")
	cmd, err := Decode(f)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cmd.Kind != KindUnsubscribe || len(cmd.Channels) != 0 {
		t.Fatalf("got %+v", cmd)
	}
}

func TestDecodePingNoArg(t *testing.T) {
	f := frameFromWire(t, "*1\r\n$4\r\nPING\r\n")
	cmd, err := Decode(f)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cmd.Kind != KindPing || cmd.HasMsg {
		t.Fatalf("got %+v", cmd)
	}
}

func TestDecodeUnknownCommand(t *testing.T) {
	f := frameFromWire(t, "*2\r\n$3\r\nFOO\r\n$5\r\nhello\r\n")
	cmd, err := Decode(f)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cmd.Kind != KindUnknown || cmd.Name != "foo" {
		t.Fatalf("got %+v", cmd)
	}
}

func TestEncodeDecodeCommandRoundTrip(t *testing.T) {
	cmds := []Command{
		{Kind: KindGet, Key: "hello"},
		{Kind: KindSet, Key: "k", Value: []byte("v")},
		{Kind: KindSet, Key: "k", Value: []byte("v"), HasExpire: true, Expire: 250 * time.Millisecond},
		{Kind: KindPublish, Channel: "c", Message: []byte("m")},
		{Kind: KindSubscribe, Channels: []string{"a", "b"}},
		{Kind: KindUnsubscribe, Channels: []string{"a"}},
		{Kind: KindPing},
		{Kind: KindPing, Msg: []byte("hi"), HasMsg: true},
	}
	for _, cmd := range cmds {
		frame := Encode(cmd)
		got, err := Decode(frame)
		if err != nil {
			t.Fatalf("round trip decode of %+v failed: %v", cmd, err)
		}
		if got.Kind != cmd.Kind {
			t.Fatalf("kind mismatch: got %v want %v", got.Kind, cmd.Kind)
		}
	}
}

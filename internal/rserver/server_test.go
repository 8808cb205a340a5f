package rserver

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func testConfig() Config {
	return Config{
		Addr:           "127.0.0.1:0",
		MaxConnections: 8,
		BackoffStart:   10 * time.Millisecond,
		BackoffCeiling: 100 * time.Millisecond,
		CommandRateRPS: 1000,
		CommandBurst:   1000,
	}
}

// startTestServer runs a Server in the background and returns it along
// with a stop channel and its bound address. The caller must close
// stop and wait on done to ensure clean shutdown.
func startTestServer(t *testing.T) (srv *Server, addr string, stop chan struct{}, done chan error) {
	t.Helper()
	srv = New(testConfig(), zerolog.Nop(), prometheus.NewRegistry())
	stop = make(chan struct{})
	done = make(chan error, 1)
	go func() { done <- srv.Run(stop) }()
	addr = srv.Addr().String()
	return srv, addr, stop, done
}

func stopTestServer(t *testing.T, stop chan struct{}, done chan error) {
	t.Helper()
	close(stop)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not drain in time")
	}
}

// testConn pairs a connection with a reader that persists across
// expect() calls, so bytes buffered ahead of what one call consumed
// aren't discarded before the next call looks for them.
type testConn struct {
	net.Conn
	r *bufio.Reader
}

func TestGetNothing(t *testing.T) {
	_, addr, stop, done := startTestServer(t)
	defer stopTestServer(t, stop, done)

	conn := dial(t, addr)
	defer conn.Close()

	write(t, conn, "*2\r\n$3\r\nGET\r\n$5\r\nhello\r\n")
	expect(t, conn, "$-1\r\n")
}

func TestSetThenGet(t *testing.T) {
	_, addr, stop, done := startTestServer(t)
	defer stopTestServer(t, stop, done)

	conn := dial(t, addr)
	defer conn.Close()

	write(t, conn, "*3\r\n$3\r\nSET\r\n$5\r\nhello\r\n$5\r\nworld\r\n")
	expect(t, conn, "+OK\r\n")

	write(t, conn, "*2\r\n$3\r\nGET\r\n$5\r\nhello\r\n")
	expect(t, conn, "$5\r\nworld\r\n")
}

func TestPingNoArg(t *testing.T) {
	_, addr, stop, done := startTestServer(t)
	defer stopTestServer(t, stop, done)

	conn := dial(t, addr)
	defer conn.Close()

	write(t, conn, "*1\r\n$4\r\nPING\r\n")
	expect(t, conn, "+PONG\r\n")
}

func TestUnknownCommandThenContinues(t *testing.T) {
	_, addr, stop, done := startTestServer(t)
	defer stopTestServer(t, stop, done)

	conn := dial(t, addr)
	defer conn.Close()

	write(t, conn, "*2\r\n$3\r\nFOO\r\n$5\r\nhello\r\n")
	expect(t, conn, "-ERR unknown command foo\r\n")

	write(t, conn, "*1\r\n$4\r\nPING\r\n")
	expect(t, conn, "+PONG\r\n")
}

func TestTTLExpiry(t *testing.T) {
	_, addr, stop, done := startTestServer(t)
	defer stopTestServer(t, stop, done)

	conn := dial(t, addr)
	defer conn.Close()

	write(t, conn, "*5\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n$2\r\nPX\r\n$2\r\n50\r\n")
	expect(t, conn, "+OK\r\n")

	time.Sleep(200 * time.Millisecond)

	write(t, conn, "*2\r\n$3\r\nGET\r\n$1\r\nk\r\n")
	expect(t, conn, "$-1\r\n")
}

func TestPubSub(t *testing.T) {
	_, addr, stop, done := startTestServer(t)
	defer stopTestServer(t, stop, done)

	sub := dial(t, addr)
	defer sub.Close()
	write(t, sub, "*2\r\n$9\r\nSUBSCRIBE\r\n$5\r\nhello\r\n")
	expect(t, sub, "*3\r\n+subscribe\r\n$5\r\nhello\r\n:1\r\n")

	pub := dial(t, addr)
	defer pub.Close()
	write(t, pub, "*3\r\n$7\r\nPUBLISH\r\n$5\r\nhello\r\n$5\r\nworld\r\n")
	expect(t, pub, ":1\r\n")

	expect(t, sub, "*3\r\n$7\r\nmessage\r\n$5\r\nhello\r\n$5\r\nworld\r\n")
}

func dial(t *testing.T, addr string) *testConn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return &testConn{Conn: conn, r: bufio.NewReader(conn)}
}

func write(t *testing.T, conn *testConn, wire string) {
	t.Helper()
	if _, err := conn.Write([]byte(wire)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func expect(t *testing.T, conn *testConn, want string) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, len(want))
	if _, err := readFull(conn.r, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != want {
		t.Fatalf("got %q, want %q", buf, want)
	}
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

package remote

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/variant"
)

// serveScript accepts one connection and answers every request through
// handle, which returns the full response payload.
func serveScript(t *testing.T, l net.Listener, handle func(id uint64, target, method, args string) string) {
	t.Helper()
	conn, err := l.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	br := bufio.NewReader(conn)
	for {
		payload, err := readFrame(br)
		if err != nil {
			return
		}
		id, target, method, args, err := parseRequest(string(payload))
		if err != nil {
			t.Errorf("server got malformed request: %v", err)
			return
		}
		if err := writeFrame(conn, []byte(handle(id, target, method, args))); err != nil {
			return
		}
	}
}

func TestConnInvoke_RoundTrip(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	go serveScript(t, l, func(id uint64, target, method, args string) string {
		switch method {
		case "Echo":
			return fmt.Sprintf("%d ok %s", id, args)
		default:
			return fmt.Sprintf("%d err unknown-method no method %q on %s", id, method, target)
		}
	})

	c, err := DialTimeout(l.Addr().String(), time.Second, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	args := variant.Block("Test", variant.Str("X:="), variant.Int(42))
	got, err := c.Invoke(context.Background(), TargetEditor, "Echo", args)
	if err != nil {
		t.Fatalf("Invoke(Echo) failed: %v", err)
	}
	if !got.Equal(args) {
		t.Errorf("echoed args = %v, want the sent arrays back", got)
	}

	_, err = c.Invoke(context.Background(), TargetEditor, "Nope", nil)
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("Invoke(Nope) error = %v, want *CallError", err)
	}
	if callErr.Code != "unknown-method" {
		t.Errorf("Code = %q, want unknown-method", callErr.Code)
	}
	if callErr.Target != TargetEditor || callErr.Method != "Nope" {
		t.Errorf("CallError identifies %s.%s, want editor.Nope", callErr.Target, callErr.Method)
	}
}

func TestConnInvoke_OutOfOrderResponse(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	go serveScript(t, l, func(id uint64, target, method, args string) string {
		return fmt.Sprintf("%d ok Array()", id+7)
	})

	c, err := DialTimeout(l.Addr().String(), time.Second, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	_, err = c.Invoke(context.Background(), TargetDesktop, "GetVersion", nil)
	if err == nil {
		t.Fatal("Invoke succeeded on a desynchronized stream")
	}

	// The stream is poisoned; the connection must refuse further calls.
	_, err = c.Invoke(context.Background(), TargetDesktop, "GetVersion", nil)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("second Invoke error = %v, want ErrNotConnected", err)
	}
}

func TestConnInvoke_Closed(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	go serveScript(t, l, func(id uint64, target, method, args string) string {
		return fmt.Sprintf("%d ok Array()", id)
	})

	c, err := DialTimeout(l.Addr().String(), time.Second, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}

	_, err = c.Invoke(context.Background(), TargetDesktop, "GetVersion", nil)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Invoke after close = %v, want ErrNotConnected", err)
	}
}

func TestConnInvoke_CanceledContext(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	go serveScript(t, l, func(id uint64, target, method, args string) string {
		return fmt.Sprintf("%d ok Array()", id)
	})

	c, err := DialTimeout(l.Addr().String(), time.Second, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Invoke(ctx, TargetDesktop, "GetVersion", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Invoke with canceled context = %v, want context.Canceled", err)
	}
}

func TestConnInvoke_BadTokens(t *testing.T) {
	c := &Conn{}
	if _, err := c.Invoke(context.Background(), "", "GetVersion", nil); err == nil {
		t.Error("empty target accepted")
	}
	if _, err := c.Invoke(context.Background(), TargetDesktop, "Get Version", nil); err == nil {
		t.Error("method with whitespace accepted")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, []byte("17 ok Array()")); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	got, err := readFrame(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if string(got) != "17 ok Array()" {
		t.Errorf("payload = %q", got)
	}

	// Oversized length prefix is rejected before allocation.
	var huge bytes.Buffer
	huge.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if _, err := readFrame(bufio.NewReader(&huge)); err == nil {
		t.Error("oversized frame accepted")
	}
}

func TestParsePayloads(t *testing.T) {
	id, target, method, args, err := parseRequest(`3 editor CreateBox Array("NAME:BoxParameters")`)
	if err != nil {
		t.Fatalf("parseRequest: %v", err)
	}
	if id != 3 || target != "editor" || method != "CreateBox" || args != `Array("NAME:BoxParameters")` {
		t.Errorf("parseRequest = (%d, %q, %q, %q)", id, target, method, args)
	}

	for _, bad := range []string{"", "1 editor", "x editor CreateBox Array()"} {
		if _, _, _, _, err := parseRequest(bad); err == nil {
			t.Errorf("parseRequest(%q) accepted", bad)
		}
	}

	id, status, rest, err := parseResponse("9 err bad-args expected 2 arguments")
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	if id != 9 || status != "err" || rest != "bad-args expected 2 arguments" {
		t.Errorf("parseResponse = (%d, %q, %q)", id, status, rest)
	}
}

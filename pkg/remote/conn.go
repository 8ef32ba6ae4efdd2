package remote

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/OpenTraceLab/OpenTraceEM/pkg/variant"
)

const (
	DefaultDialTimeout = 5 * time.Second
	DefaultCallTimeout = 30 * time.Second

	// maxFrameSize caps a single request or response frame. The host never
	// ships geometry bulk data through the automation socket, so anything
	// beyond this is a corrupt stream.
	maxFrameSize = 16 << 20
)

// Conn is a client for the desktop's automation socket. Frames are a
// 4-byte big-endian length followed by a text payload:
//
//	request:  <id> <target> <method> <args as Array(...)>
//	response: <id> ok <result as Array(...)>
//	          <id> err <code> <reason>
//
// The host answers strictly in order, one call at a time; Conn serializes
// callers accordingly.
type Conn struct {
	addr        string
	callTimeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	br     *bufio.Reader
	nextID uint64
}

// Dial connects with the default timeouts.
func Dial(addr string) (*Conn, error) {
	return DialTimeout(addr, DefaultDialTimeout, DefaultCallTimeout)
}

// DialTimeout connects to the automation socket with explicit dial and
// per-call timeouts. Non-positive values fall back to the defaults.
func DialTimeout(addr string, dialTimeout, callTimeout time.Duration) (*Conn, error) {
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	nc, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("remote: dial %s: %w", addr, err)
	}
	return &Conn{
		addr:        addr,
		callTimeout: callTimeout,
		conn:        nc,
		br:          bufio.NewReader(nc),
	}, nil
}

// Addr reports the dialed address.
func (c *Conn) Addr() string {
	return c.addr
}

// Invoke sends one call and waits for its response. A nil args value is
// sent as an empty array. Context cancellation interrupts the wait by
// expiring the socket deadline.
func (c *Conn) Invoke(ctx context.Context, target, method string, args *variant.Value) (*variant.Value, error) {
	if err := validateToken("target", target); err != nil {
		return nil, err
	}
	if err := validateToken("method", method); err != nil {
		return nil, err
	}
	if args == nil {
		args = variant.List()
	}
	encoded, err := variant.EncodeString(args)
	if err != nil {
		return nil, fmt.Errorf("remote: encode %s.%s args: %w", target, method, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.nextID++
	id := c.nextID

	deadline := time.Now().Add(c.callTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("remote: set deadline: %w", err)
	}
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.conn.SetDeadline(time.Unix(1, 0))
		case <-watchDone:
		}
	}()
	defer close(watchDone)

	payload := fmt.Sprintf("%d %s %s %s", id, target, method, encoded)
	if err := writeFrame(c.conn, []byte(payload)); err != nil {
		c.closeLocked()
		return nil, fmt.Errorf("remote: send %s.%s: %w", target, method, err)
	}

	resp, err := readFrame(c.br)
	if err != nil {
		c.closeLocked()
		return nil, fmt.Errorf("remote: receive %s.%s: %w", target, method, err)
	}
	respID, status, rest, err := parseResponse(string(resp))
	if err != nil {
		c.closeLocked()
		return nil, err
	}
	if respID != id {
		// The host is synchronous; an id mismatch means the stream is
		// desynchronized and nothing further on it can be trusted.
		c.closeLocked()
		return nil, fmt.Errorf("remote: out-of-order response: got id %d, want %d", respID, id)
	}

	switch status {
	case "ok":
		result, err := variant.DecodeString(rest)
		if err != nil {
			return nil, fmt.Errorf("remote: decode %s.%s result: %w", target, method, err)
		}
		return result, nil
	case "err":
		code, reason, _ := strings.Cut(rest, " ")
		return nil, &CallError{Target: target, Method: method, Code: code, Reason: reason}
	default:
		c.closeLocked()
		return nil, fmt.Errorf("remote: unknown response status %q", status)
	}
}

// Close shuts the socket down. Further calls return ErrNotConnected.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Conn) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.br = nil
	return err
}

func validateToken(what, s string) error {
	if s == "" {
		return fmt.Errorf("remote: empty %s", what)
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return fmt.Errorf("remote: %s %q contains whitespace", what, s)
	}
	return nil
}

func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) > maxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", len(payload))
	}
	var head [4]byte
	binary.BigEndian.PutUint32(head[:], uint32(len(payload)))
	if _, err := w.Write(head[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(head[:])
	if n > maxFrameSize {
		return nil, fmt.Errorf("frame too large: %d bytes", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// parseRequest splits a request payload. The args text is returned as-is
// for the receiver to decode.
func parseRequest(s string) (id uint64, target, method, args string, err error) {
	parts := strings.SplitN(s, " ", 4)
	if len(parts) != 4 {
		return 0, "", "", "", fmt.Errorf("remote: malformed request %q", s)
	}
	id, err = strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, "", "", "", fmt.Errorf("remote: bad request id %q", parts[0])
	}
	return id, parts[1], parts[2], parts[3], nil
}

func parseResponse(s string) (id uint64, status, rest string, err error) {
	parts := strings.SplitN(s, " ", 3)
	if len(parts) != 3 {
		return 0, "", "", fmt.Errorf("remote: malformed response %q", s)
	}
	id, err = strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, "", "", fmt.Errorf("remote: bad response id %q", parts[0])
	}
	return id, parts[1], parts[2], nil
}

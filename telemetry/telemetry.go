package telemetry

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultAddress is where the ESP TcpInputStream listens
const DefaultAddress = "127.0.0.1:8001"

// ErrMalformedLine is returned by ParseLine for anything but two integers
var ErrMalformedLine = errors.New("malformed telemetry line")

// Recorder counts delivery outcomes
type Recorder interface {
	LineSent()
	WriteError()
}

// Client streams centroids to a single TCP consumer. The connection is
// opened once and never re-established.
type Client struct {
	conn     net.Conn
	recorder Recorder

	mu        sync.Mutex
	lastError error
}

// Dial connects to addr. timeout bounds the connect only; writes are not
// deadlined.
func Dial(ctx context.Context, addr string, timeout time.Duration, recorder Recorder) (*Client, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("telemetry sink %s is not reachable: %w", addr, err)
	}
	return NewClient(conn, recorder), nil
}

// NewClient wraps an established connection. recorder may be nil.
func NewClient(conn net.Conn, recorder Recorder) *Client {
	return &Client{conn: conn, recorder: recorder}
}

// FormatLine renders p in the consumer's format: "<x> <y> \n"
func FormatLine(p image.Point) string {
	return strconv.Itoa(p.X) + " " + strconv.Itoa(p.Y) + " \n"
}

// ParseLine parses one whitespace-delimited "x y" line
func ParseLine(line string) (image.Point, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return image.Point{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}
	x, err := strconv.Atoi(fields[0])
	if err != nil {
		return image.Point{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}
	y, err := strconv.Atoi(fields[1])
	if err != nil {
		return image.Point{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}
	return image.Pt(x, y), nil
}

// Send writes one line. Errors are recorded and returned; callers may drop
// them.
func (c *Client) Send(p image.Point) error {
	_, err := io.WriteString(c.conn, FormatLine(p))

	c.mu.Lock()
	c.lastError = err
	c.mu.Unlock()

	if c.recorder != nil {
		if err != nil {
			c.recorder.WriteError()
		} else {
			c.recorder.LineSent()
		}
	}
	return err
}

// LastError returns the result of the most recent Send
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// RemoteAddr returns the consumer address
func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Listen accepts consumers on addr and hands every parsed line to handler
// until ctx is cancelled. Malformed lines are skipped. ready, if non-nil,
// receives the bound address once listening.
func Listen(ctx context.Context, addr string, ready chan<- net.Addr, handler func(image.Point)) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if ready != nil {
		ready <- ln.Addr()
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			stop := context.AfterFunc(ctx, func() { conn.Close() })
			defer stop()

			scanner := bufio.NewScanner(conn)
			for scanner.Scan() {
				p, err := ParseLine(scanner.Text())
				if err != nil {
					continue
				}
				handler(p)
			}
		}()
	}
}

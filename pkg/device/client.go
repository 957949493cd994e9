package device

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"golang.org/x/net/websocket"

	"github.com/itohio/goadjuster/pkg/adc"
	"github.com/itohio/goadjuster/pkg/curve"
	"github.com/itohio/goadjuster/pkg/dispatch"
	"github.com/itohio/goadjuster/pkg/transport"
)

const (
	// DefaultBaudRate is the standard baud rate of the USB CDC port.
	DefaultBaudRate = 115200
	// DefaultTimeout bounds the wait for a reply.
	DefaultTimeout = 3 * time.Second
	// DefaultBufferSize is the size of the reply line buffer.
	DefaultBufferSize = 16
)

var (
	ErrTimeout = errors.New("timed out waiting for reply")
	ErrClosed  = errors.New("connection closed")
)

// ReplyError is returned when the device answers with something other than
// the expected reply.
type ReplyError struct {
	Command string
	Reply   string
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("unexpected reply to %q: %q", e.Command, e.Reply)
}

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}
	return result, nil
}

// Client talks to a device over a line oriented stream. Requests are
// serialized; each one waits for exactly one reply line.
type Client struct {
	rwc     io.ReadWriteCloser
	timeout time.Duration

	mu        sync.Mutex
	lines     chan string
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

// NewClient starts reading replies from rwc. A zero timeout selects
// DefaultTimeout.
func NewClient(rwc io.ReadWriteCloser, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		rwc:     rwc,
		timeout: timeout,
		lines:   make(chan string, DefaultBufferSize),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go c.readLines()

	return c
}

// Dial opens a serial port and returns a client for it.
func Dial(port string, baudRate int, timeout time.Duration) (*Client, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}

	conn, err := serial.Open(port, &serial.Mode{
		BaudRate: baudRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", port, err)
	}

	return NewClient(conn, timeout), nil
}

// DialWebsocket connects to a device served over websocket.
func DialWebsocket(url string, timeout time.Duration) (*Client, error) {
	origin := "http://localhost/"
	if i := strings.Index(url, "://"); i >= 0 {
		origin = "http" + strings.TrimPrefix(url[:i], "ws") + url[i:]
	}

	ws, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	return NewClient(&wsStream{ws: ws}, timeout), nil
}

// NewLoopback serves a dispatcher built from opts in process and returns a
// client connected to it.
func NewLoopback(timeout time.Duration, opts ...dispatch.Option) (*Client, error) {
	host, dev := net.Pipe()

	conn := transport.NewConn(dev)
	d, err := dispatch.New(conn, opts...)
	if err != nil {
		host.Close()
		dev.Close()
		return nil, err
	}

	go func() {
		defer conn.Close()
		if err := conn.Serve(context.Background(), d); err != nil {
			log.Printf("Loopback device stopped: %v", err)
		}
	}()

	return NewClient(host, timeout), nil
}

// Close closes the connection and stops the reader.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.rwc.Close()
		<-c.done
	})
	return err
}

// Handshake implements Device.
func (c *Client) Handshake() (Info, error) {
	reply, err := c.request(dispatch.PrefixConnect)
	if err != nil {
		return Info{}, err
	}
	return parseHandshake(reply)
}

// Points implements Device.
func (c *Client) Points(name string) (curve.Points, error) {
	cmd := dispatch.PrefixPoints + name
	reply, err := c.request(cmd)
	if err != nil {
		return curve.Points{}, err
	}

	points, err := parsePoints(reply)
	if err != nil {
		return curve.Points{}, &ReplyError{Command: cmd, Reply: reply}
	}
	return points, nil
}

// SetPoints implements Device.
func (c *Client) SetPoints(name string, points curve.Points) error {
	cmd := formatUpdate(name, points)
	reply, err := c.request(cmd)
	if err != nil {
		return err
	}
	if reply != dispatch.ReplyUpdated {
		return &ReplyError{Command: cmd, Reply: reply}
	}
	return nil
}

// Channels implements Device.
func (c *Client) Channels() (adc.Snapshot, error) {
	reply, err := c.request(dispatch.PrefixData)
	if err != nil {
		return adc.Snapshot{}, err
	}

	snap, err := parseChannels(reply)
	if err != nil {
		return adc.Snapshot{}, &ReplyError{Command: dispatch.PrefixData, Reply: reply}
	}
	return snap, nil
}

// request sends one command and waits for its reply.
func (c *Client) request(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Drop replies nobody waited for.
	for drained := false; !drained; {
		select {
		case _, ok := <-c.lines:
			if !ok {
				return "", ErrClosed
			}
		default:
			drained = true
		}
	}

	if _, err := c.rwc.Write([]byte(cmd + "\n")); err != nil {
		return "", fmt.Errorf("failed to send command: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case line, ok := <-c.lines:
		if !ok {
			return "", ErrClosed
		}
		return line, nil
	case <-timer.C:
		return "", fmt.Errorf("%s: %w", cmd, ErrTimeout)
	case <-c.ctx.Done():
		return "", ErrClosed
	}
}

// readLines reads reply lines until the stream ends.
func (c *Client) readLines() {
	defer close(c.done)
	defer close(c.lines)

	scanner := bufio.NewScanner(c.rwc)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		select {
		case c.lines <- line:
		case <-c.ctx.Done():
			return
		default:
			log.Printf("Reply buffer full, dropping line %q", line)
		}
	}

	if err := scanner.Err(); err != nil && c.ctx.Err() == nil {
		log.Printf("Error reading from device: %v", err)
	}
}

// formatUpdate builds the curve update command, using '/' after the name as
// the desktop tool does.
func formatUpdate(name string, points curve.Points) string {
	var b strings.Builder
	b.WriteString(dispatch.PrefixUpdate)
	b.WriteString(name)
	b.WriteByte('/')
	for i, v := range points {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	return b.String()
}

// wsStream presents a websocket as a line stream: every received message
// becomes one line and every written line is sent as one message.
type wsStream struct {
	ws  *websocket.Conn
	buf []byte
}

func (s *wsStream) Read(p []byte) (int, error) {
	if len(s.buf) == 0 {
		var msg string
		if err := websocket.Message.Receive(s.ws, &msg); err != nil {
			return 0, err
		}
		if !strings.HasSuffix(msg, "\n") {
			msg += "\n"
		}
		s.buf = []byte(msg)
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

func (s *wsStream) Write(p []byte) (int, error) {
	if err := websocket.Message.Send(s.ws, strings.TrimRight(string(p), "\r\n")); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *wsStream) Close() error {
	return s.ws.Close()
}

package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"go.bug.st/serial"
)

// Conn carries line framed commands over a byte stream such as a USB CDC
// serial port. Commands end at '\n', '\r' or NUL; replies are written as one
// line each.
type Conn struct {
	rwc io.ReadWriteCloser

	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

var _ Transmitter = (*Conn)(nil)

// NewConn wraps a byte stream.
func NewConn(rwc io.ReadWriteCloser) *Conn {
	return &Conn{rwc: rwc}
}

// OpenSerial opens a serial port for serving commands.
func OpenSerial(name string, baudRate int) (*Conn, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return NewConn(port), nil
}

// Transmit implements Transmitter.
func (c *Conn) Transmit(p []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if _, err := c.rwc.Write(frame(p)); err != nil {
		return fmt.Errorf("failed to transmit reply: %w", err)
	}
	return nil
}

// Serve reads commands and hands each one to r until the stream ends or ctx
// is cancelled. Commands are processed one at a time in arrival order.
func (c *Conn) Serve(ctx context.Context, r Receiver) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-stop:
		}
	}()

	scanner := bufio.NewScanner(c.rwc)
	scanner.Buffer(make([]byte, 0, 64), MaxCommandLen)
	scanner.Split(splitCommand)

	for scanner.Scan() {
		cmd := scanner.Bytes()
		if len(bytes.TrimSpace(cmd)) == 0 {
			continue
		}
		r.Deliver(terminate(cmd))
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		log.Printf("Error reading commands: %v", err)
		return err
	}
	return nil
}

// Close closes the underlying stream.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.rwc.Close()
	})
	return c.closeErr
}

// splitCommand is a bufio.SplitFunc cutting at '\n', '\r' or NUL. Input with
// no terminator is cut at MaxCommandLen.
func splitCommand(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n\x00"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if len(data) >= MaxCommandLen {
		return MaxCommandLen, data[:MaxCommandLen], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Package transport connects the command dispatcher to the host: inbound
// byte streams are reassembled into complete commands and replies are
// written back.
package transport

import (
	"strings"
	"sync"
)

// MaxCommandLen bounds a single inbound command. Longer input is cut into
// pieces of this size.
const MaxCommandLen = 512

// Transmitter sends one reply to the host. Callers do not depend on the
// outcome beyond logging it.
type Transmitter interface {
	Transmit(p []byte) error
}

// Receiver accepts one complete NUL terminated command.
type Receiver interface {
	Deliver(p []byte)
}

// TransmitterFunc adapts a function to Transmitter.
type TransmitterFunc func(p []byte) error

// Transmit implements Transmitter.
func (f TransmitterFunc) Transmit(p []byte) error {
	return f(p)
}

// Recorder is a Transmitter that keeps every reply in memory.
type Recorder struct {
	mu   sync.Mutex
	msgs []string
}

var _ Transmitter = (*Recorder)(nil)

// Transmit implements Transmitter.
func (r *Recorder) Transmit(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, string(p))
	return nil
}

// Messages returns all recorded replies.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.msgs))
	copy(out, r.msgs)
	return out
}

// Last returns the most recent reply or "".
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return ""
	}
	return r.msgs[len(r.msgs)-1]
}

// Reset drops all recorded replies.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = nil
}

// terminate returns cmd with a trailing NUL, the form Receiver expects.
func terminate(cmd []byte) []byte {
	out := make([]byte, len(cmd)+1)
	copy(out, cmd)
	return out
}

// frame appends a line terminator unless reply already ends with one.
func frame(reply []byte) []byte {
	if strings.HasSuffix(string(reply), "\n") {
		return reply
	}
	out := make([]byte, len(reply)+1)
	copy(out, reply)
	out[len(reply)] = '\n'
	return out
}

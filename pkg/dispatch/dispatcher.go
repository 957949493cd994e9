// Package dispatch parses text commands received from the host, routes them
// to the curve store or the ADC buffer and formats the replies.
package dispatch

import (
	"bytes"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/itohio/goadjuster/pkg/adc"
	"github.com/itohio/goadjuster/pkg/config"
	"github.com/itohio/goadjuster/pkg/curve"
	"github.com/itohio/goadjuster/pkg/transport"
)

// Command prefixes.
const (
	PrefixConnect = "FS connect"
	PrefixData    = "data request"
	PrefixPoints  = "FS request points:"
	PrefixUpdate  = "FS:"
)

// Replies.
const (
	ReplyConnect         = "connect success:"
	ReplyConnectPlain    = "connect success2222"
	ReplyPoints          = "Controller send points:"
	ReplyUpdated         = "data send success"
	ReplyInvalidType     = "Invalid type request"
	ReplyWrongType       = "wrong type"
	ReplyUnknown         = "Unknown command"
	ReplyReadFailed      = "Read failed"
	ReplyStagingOverflow = "data buf overflow"
	ReplyMisaligned      = "No address"
	ReplyEraseFailed     = "Erase failed"
	ReplyWriteFailed     = "Write failed"
	ReplySectorErased    = "Write failed: sector erased"
	ReplyUpdateFailed    = "Update failed"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithVariant selects the command set. The default is config.VariantCurve.
func WithVariant(v config.Variant) Option {
	return func(d *Dispatcher) {
		d.variant = v
	}
}

// WithCurves attaches the curve store used by the curve variant.
func WithCurves(store *curve.Store) Option {
	return func(d *Dispatcher) {
		d.store = store
	}
}

// WithSampler attaches the ADC buffer used by the plain variant. Readings
// below threshold are reported as 0.
func WithSampler(s *adc.Sampler, threshold uint16) Option {
	return func(d *Dispatcher) {
		d.sampler = s
		d.threshold = threshold
	}
}

type handler func(d *Dispatcher, w *replyWriter, arg string)

type route struct {
	prefix string
	handle handler
}

// Dispatcher handles one command at a time and transmits exactly one reply
// per command.
type Dispatcher struct {
	tx      transport.Transmitter
	variant config.Variant
	store   *curve.Store
	sampler *adc.Sampler

	threshold uint16
	routes    []route
}

var _ transport.Receiver = (*Dispatcher)(nil)

// New creates a dispatcher replying through tx.
func New(tx transport.Transmitter, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		tx:        tx,
		variant:   config.VariantCurve,
		threshold: adc.DefaultNoiseThreshold,
	}
	for _, opt := range opts {
		opt(d)
	}

	switch d.variant {
	case config.VariantCurve:
		if d.store == nil {
			return nil, fmt.Errorf("curve variant requires a curve store")
		}
		d.routes = []route{
			{PrefixConnect, (*Dispatcher).connectCurves},
			{PrefixPoints, (*Dispatcher).sendPoints},
			{PrefixUpdate, (*Dispatcher).updatePoints},
		}
	case config.VariantPlain:
		if d.sampler == nil {
			return nil, fmt.Errorf("plain variant requires a sampler")
		}
		d.routes = []route{
			{PrefixConnect, (*Dispatcher).connectPlain},
			{PrefixData, (*Dispatcher).sendChannels},
		}
	default:
		return nil, fmt.Errorf("unknown variant %q", d.variant)
	}

	// Longest prefix wins when prefixes overlap.
	sort.SliceStable(d.routes, func(i, j int) bool {
		return len(d.routes[i].prefix) > len(d.routes[j].prefix)
	})

	return d, nil
}

// Deliver implements transport.Receiver. p is a NUL terminated command; bytes
// after the first NUL are ignored.
func (d *Dispatcher) Deliver(p []byte) {
	if i := bytes.IndexByte(p, 0); i >= 0 {
		p = p[:i]
	}
	if err := d.tx.Transmit([]byte(d.Handle(string(p)))); err != nil {
		log.Printf("Failed to send reply: %v", err)
	}
}

// Handle processes one command and returns the reply.
func (d *Dispatcher) Handle(cmd string) string {
	cmd = strings.TrimRight(cmd, "\r\n")

	var w replyWriter
	for _, r := range d.routes {
		if strings.HasPrefix(cmd, r.prefix) {
			r.handle(d, &w, cmd[len(r.prefix):])
			return w.String()
		}
	}
	w.WriteString(ReplyUnknown)
	return w.String()
}

func (d *Dispatcher) connectCurves(w *replyWriter, _ string) {
	w.WriteString(ReplyConnect)
	w.WriteString(strings.Join(curve.Names(), ","))
}

func (d *Dispatcher) connectPlain(w *replyWriter, _ string) {
	w.WriteString(ReplyConnectPlain)
}

func (d *Dispatcher) sendChannels(w *replyWriter, _ string) {
	snap := adc.Filter(d.sampler.Snapshot(), d.threshold)
	w.Printf("CH0: %d | CH1: %d | CH2: %d | CH3: %d | CH4: %d\r\n",
		snap[0], snap[1], snap[2], snap[3], snap[4])
}

func (d *Dispatcher) sendPoints(w *replyWriter, name string) {
	id, ok := curve.Lookup(name)
	if !ok {
		w.WriteString(ReplyInvalidType)
		return
	}

	table, err := d.store.ReadAll()
	if err != nil {
		log.Printf("Failed to read curves: %v", err)
		w.WriteString(ReplyReadFailed)
		return
	}

	w.WriteString(ReplyPoints)
	for i, v := range table[id] {
		if i > 0 {
			w.WriteString(",")
		}
		w.Printf("%.2f", v)
	}
}

func (d *Dispatcher) updatePoints(w *replyWriter, arg string) {
	id, ok := curve.Lookup(arg)
	if !ok {
		w.WriteString(ReplyWrongType)
		return
	}

	values, err := parseUpdate(arg[len(id.String()):])
	if err == nil {
		err = d.store.UpdateCurve(id, values)
	}
	if err != nil {
		if !isValidation(err) {
			log.Printf("Failed to update curve %s: %v", id, err)
		}
		describe(w, err)
		return
	}
	w.WriteString(ReplyUpdated)
}

// parseUpdate parses what follows the curve name: one separator byte, ':' or
// '/', and the values.
func parseUpdate(rest string) ([]float32, error) {
	if rest == "" || (rest[0] != ':' && rest[0] != '/') {
		tok, _, _ := strings.Cut(rest, ",")
		return nil, &ParseError{Index: 0, Token: tok, Err: ErrMissingSeparator}
	}
	return parseValues(rest[1:])
}

// parseValues splits a comma separated list of numbers. Empty tokens are
// skipped; a malformed token rejects the whole list.
func parseValues(payload string) ([]float32, error) {
	values := make([]float32, 0, curve.NumPoints)
	for _, tok := range strings.Split(payload, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		v, err := strconv.ParseFloat(tok, 32)
		if err != nil {
			return nil, &ParseError{Index: len(values), Token: tok, Err: err}
		}
		values = append(values, float32(v))
	}
	return values, nil
}

package device

import (
	"context"
	"io"
	"net"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/goadjuster/pkg/adc"
	"github.com/itohio/goadjuster/pkg/config"
	"github.com/itohio/goadjuster/pkg/curve"
	"github.com/itohio/goadjuster/pkg/dispatch"
	"github.com/itohio/goadjuster/pkg/flash"
	"github.com/itohio/goadjuster/pkg/transport"
)

func newStore(t *testing.T) *curve.Store {
	t.Helper()
	geom := curve.DefaultGeometry()
	store, err := curve.NewStore(flash.NewAccessor(flash.NewMemory(geom), geom), curve.DefaultLayout())
	require.NoError(t, err)
	require.NoError(t, store.Load())
	return store
}

func TestParseHandshake(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    Info
		wantErr bool
	}{
		{
			name:  "curve device",
			reply: "connect success:F-H,L-R,ZBL1,ZBL2",
			want:  Info{Curves: []string{"F-H", "L-R", "ZBL1", "ZBL2"}},
		},
		{
			name:  "plain device",
			reply: "connect success2222",
			want:  Info{Plain: true},
		},
		{
			name:  "curve device without curves",
			reply: "connect success:",
			want:  Info{},
		},
		{
			name:    "unknown reply",
			reply:   "Unknown command",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseHandshake(tt.reply)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePoints(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    curve.Points
		wantErr bool
	}{
		{
			name:  "valid",
			reply: "Controller send points:0.00,0.00,25.00,25.00,50.00,50.00,75.00,75.00,100.00,100.00",
			want:  curve.Points{0, 0, 25, 25, 50, 50, 75, 75, 100, 100},
		},
		{
			name:  "fractions",
			reply: "Controller send points:0.00,0.00,25.00,12.50,50.00,33.33,75.00,80.00,100.00,100.00",
			want:  curve.Points{0, 0, 25, 12.5, 50, 33.33, 75, 80, 100, 100},
		},
		{
			name:    "invalid type",
			reply:   "Invalid type request",
			wantErr: true,
		},
		{
			name:    "too few values",
			reply:   "Controller send points:0.00,0.00",
			wantErr: true,
		},
		{
			name:    "non-numeric value",
			reply:   "Controller send points:0.00,0.00,25.00,x,50.00,50.00,75.00,75.00,100.00,100.00",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePoints(tt.reply)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseChannels(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    adc.Snapshot
		wantErr bool
	}{
		{
			name:  "valid",
			reply: "CH0: 1304 | CH1: 0 | CH2: 1319 | CH3: 100 | CH4: 4095",
			want:  adc.Snapshot{1304, 0, 1319, 100, 4095},
		},
		{
			name:  "trailing crlf",
			reply: "CH0: 1 | CH1: 2 | CH2: 3 | CH3: 4 | CH4: 5\r\n",
			want:  adc.Snapshot{1, 2, 3, 4, 5},
		},
		{
			name:    "missing channel",
			reply:   "CH0: 1 | CH1: 2 | CH2: 3 | CH3: 4",
			wantErr: true,
		},
		{
			name:    "channels out of order",
			reply:   "CH1: 1 | CH0: 2 | CH2: 3 | CH3: 4 | CH4: 5",
			wantErr: true,
		},
		{
			name:    "out of range",
			reply:   "CH0: 5000 | CH1: 2 | CH2: 3 | CH3: 4 | CH4: 5",
			wantErr: true,
		},
		{
			name:    "non-numeric",
			reply:   "CH0: abc | CH1: 2 | CH2: 3 | CH3: 4 | CH4: 5",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseChannels(tt.reply)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatUpdate(t *testing.T) {
	got := formatUpdate("F-H", curve.Points{0, 0, 25, 12.5, 50, 33.33, 75, 80, 100, 100})
	assert.Equal(t, "FS:F-H/0,0,25,12.5,50,33.33,75,80,100,100", got)
}

func TestLoopback_Curves(t *testing.T) {
	client, err := NewLoopback(time.Second, dispatch.WithCurves(newStore(t)))
	require.NoError(t, err)
	defer client.Close()

	info, err := client.Handshake()
	require.NoError(t, err)
	assert.False(t, info.Plain)
	assert.Equal(t, curve.Names(), info.Curves)

	points, err := client.Points("F-H")
	require.NoError(t, err)
	assert.Equal(t, curve.Defaults()[curve.FrontBack], points)

	want := curve.Points{0, 0, 25, 12.5, 50, 33.33, 75, 80, 100, 100}
	require.NoError(t, client.SetPoints("ZBL1", want))

	points, err = client.Points("ZBL1")
	require.NoError(t, err)
	assert.Equal(t, want, points)
}

func TestLoopback_Errors(t *testing.T) {
	client, err := NewLoopback(time.Second, dispatch.WithCurves(newStore(t)))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Points("BOGUS")
	var replyErr *ReplyError
	require.ErrorAs(t, err, &replyErr)
	assert.Equal(t, dispatch.ReplyInvalidType, replyErr.Reply)

	err = client.SetPoints("F-H", curve.Points{0, 0, 25, 25, 50, 150, 75, 75, 100, 100})
	require.ErrorAs(t, err, &replyErr)
	assert.Equal(t, "Invalid value: 150.000000 at index: 5", replyErr.Reply)

	_, err = client.Channels()
	require.ErrorAs(t, err, &replyErr)
	assert.Equal(t, dispatch.ReplyUnknown, replyErr.Reply)
}

func TestLoopback_Plain(t *testing.T) {
	sampler := adc.NewSampler()
	for ch, v := range []uint16{900, 50, 1300, 1260, 1320} {
		sampler.Write(ch, v)
	}

	client, err := NewLoopback(time.Second,
		dispatch.WithVariant(config.VariantPlain),
		dispatch.WithSampler(sampler, adc.DefaultNoiseThreshold))
	require.NoError(t, err)
	defer client.Close()

	info, err := client.Handshake()
	require.NoError(t, err)
	assert.True(t, info.Plain)

	snap, err := client.Channels()
	require.NoError(t, err)
	assert.Equal(t, adc.Snapshot{900, 0, 1300, 1260, 1320}, snap)
}

func TestNewLoopback_InvalidOptions(t *testing.T) {
	_, err := NewLoopback(time.Second, dispatch.WithVariant(config.VariantPlain))
	assert.Error(t, err)
}

func TestClient_Timeout(t *testing.T) {
	host, dev := net.Pipe()
	defer dev.Close()
	go io.Copy(io.Discard, dev)

	client := NewClient(host, 50*time.Millisecond)
	defer client.Close()

	_, err := client.Handshake()
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestClient_RemoteClosed(t *testing.T) {
	host, dev := net.Pipe()
	client := NewClient(host, time.Second)
	defer client.Close()

	require.NoError(t, dev.Close())

	_, err := client.Handshake()
	assert.Error(t, err)
}

func TestClient_CloseIdempotent(t *testing.T) {
	client, err := NewLoopback(time.Second, dispatch.WithCurves(newStore(t)))
	require.NoError(t, err)

	require.NoError(t, client.Close())
	assert.NoError(t, client.Close())
}

func TestDialWebsocket(t *testing.T) {
	store := newStore(t)
	srv := httptest.NewServer(transport.WebsocketHandler(func(tx transport.Transmitter) transport.Receiver {
		d, _ := dispatch.New(tx, dispatch.WithCurves(store))
		return d
	}))
	defer srv.Close()

	client, err := DialWebsocket("ws"+strings.TrimPrefix(srv.URL, "http"), time.Second)
	require.NoError(t, err)
	defer client.Close()

	info, err := client.Handshake()
	require.NoError(t, err)
	assert.Equal(t, curve.Names(), info.Curves)

	points, err := client.Points("L-R")
	require.NoError(t, err)
	assert.Equal(t, curve.Defaults()[curve.LeftRight], points)
}

func TestPoll(t *testing.T) {
	sampler := adc.NewSampler()
	sampler.Write(2, 2048)

	client, err := NewLoopback(time.Second,
		dispatch.WithVariant(config.VariantPlain),
		dispatch.WithSampler(sampler, adc.DefaultNoiseThreshold))
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	samples := Poll(ctx, client, 10*time.Millisecond)

	select {
	case s := <-samples:
		assert.Equal(t, uint16(2048), s.Channels[2])
		assert.False(t, s.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no sample received")
	}

	cancel()
	for range samples {
	}
}

func TestOpen_Loopback(t *testing.T) {
	tests := []struct {
		name    string
		variant config.Variant
		plain   bool
	}{
		{"curve", config.VariantCurve, false},
		{"plain", config.VariantPlain, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Device.Variant = tt.variant
			cfg.Flash.Image = ""

			client, err := Open(TargetLoopback, cfg)
			require.NoError(t, err)
			defer client.Close()

			info, err := client.Handshake()
			require.NoError(t, err)
			assert.Equal(t, tt.plain, info.Plain)
		})
	}
}

func TestOpen_BadImage(t *testing.T) {
	cfg := config.Default()
	cfg.Flash.Image = t.TempDir() + "/short.bin"
	require.NoError(t, os.WriteFile(cfg.Flash.Image, []byte{1, 2, 3}, 0644))

	_, err := OpenLoopback(cfg)
	assert.Error(t, err)
}

package device

import (
	"strings"

	"github.com/itohio/goadjuster/pkg/adc"
	"github.com/itohio/goadjuster/pkg/config"
	"github.com/itohio/goadjuster/pkg/curve"
	"github.com/itohio/goadjuster/pkg/dispatch"
	"github.com/itohio/goadjuster/pkg/flash"
)

// TargetLoopback names the in-process device accepted by Open.
const TargetLoopback = "loopback"

// Open connects target: a serial port, a ws:// or wss:// URL, or
// TargetLoopback.
func Open(target string, cfg *config.Config) (*Client, error) {
	switch {
	case target == TargetLoopback:
		return OpenLoopback(cfg)
	case strings.HasPrefix(target, "ws://"), strings.HasPrefix(target, "wss://"):
		return DialWebsocket(target, cfg.Client.Timeout)
	default:
		return Dial(target, cfg.Serial.BaudRate, cfg.Client.Timeout)
	}
}

// OpenLoopback serves the configured variant in process. Curves persist in the
// configured flash image, so an image can be edited without a board. The ADC
// holds one snapshot of the simulated source.
func OpenLoopback(cfg *config.Config) (*Client, error) {
	sampler := adc.NewSampler()
	src := adc.NewMock(&cfg.ADC.Mock)
	for ch := range adc.Channels {
		sampler.Write(ch, src.Read(ch))
	}

	opts := []dispatch.Option{
		dispatch.WithVariant(cfg.Device.Variant),
		dispatch.WithSampler(sampler, cfg.ADC.NoiseThreshold),
	}

	if cfg.Device.Variant == config.VariantCurve {
		store, err := openStore(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dispatch.WithCurves(store))
	}

	return NewLoopback(cfg.Client.Timeout, opts...)
}

func openStore(cfg *config.Config) (*curve.Store, error) {
	geom := curve.DefaultGeometry()

	mem := flash.NewMemory(geom)
	if cfg.Flash.Image != "" {
		var err error
		if mem, err = flash.LoadMemory(cfg.Flash.Image, geom); err != nil {
			return nil, err
		}
	}

	store, err := curve.NewStore(flash.NewAccessor(mem, geom), curve.DefaultLayout(),
		curve.WithProgramRetries(cfg.Flash.ProgramRetries))
	if err != nil {
		return nil, err
	}
	if err := store.Load(); err != nil {
		return nil, err
	}
	return store, nil
}

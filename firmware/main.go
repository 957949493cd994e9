// Command firmware runs the curve adjuster board as a host process: the
// flash sector lives in an image file, the ADC is simulated, and commands are
// served over a serial port and websocket.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itohio/goadjuster/pkg/adc"
	"github.com/itohio/goadjuster/pkg/config"
	"github.com/itohio/goadjuster/pkg/curve"
	"github.com/itohio/goadjuster/pkg/dispatch"
	"github.com/itohio/goadjuster/pkg/flash"
	"github.com/itohio/goadjuster/pkg/transport"
)

// shutdownSignals stop the board.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func main() {
	var (
		portFlag    = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag  = flag.String("config", "config.yaml", "Configuration file path")
		imageFlag   = flag.String("image", "", "Flash image file override")
		variantFlag = flag.String("variant", "", "Firmware variant override (curve or plain)")
		wsFlag      = flag.String("ws", "", "Websocket listen address override (e.g., :8080)")
		noSerial    = flag.Bool("no-serial", false, "Do not serve the serial port")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *imageFlag != "" {
		cfg.Flash.Image = *imageFlag
	}
	if *variantFlag != "" {
		cfg.Device.Variant = config.Variant(*variantFlag)
	}
	if *wsFlag != "" {
		cfg.Websocket.Listen = *wsFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	opts, err := setup(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize board: %v", err)
	}

	// Every connection gets its own dispatcher; they share the store and sampler.
	factory := func(tx transport.Transmitter) transport.Receiver {
		d, err := dispatch.New(tx, opts...)
		if err != nil {
			log.Fatalf("Failed to create dispatcher: %v", err)
		}
		return d
	}
	if _, err := dispatch.New(&transport.Recorder{}, opts...); err != nil {
		log.Fatalf("Invalid dispatcher configuration: %v", err)
	}

	served := 0
	errs := make(chan error, 2)

	if !*noSerial && cfg.Serial.Port != "" {
		baud := cfg.Serial.BaudRate
		if baud == 0 {
			baud = USB_BAUD_RATE
		}
		conn, err := transport.OpenSerial(cfg.Serial.Port, baud)
		if err != nil {
			log.Fatalf("Failed to open serial port: %v", err)
		}
		defer conn.Close()

		log.Printf("Serving %s variant on %s", cfg.Device.Variant, cfg.Serial.Port)
		served++
		go func() {
			errs <- conn.Serve(ctx, factory(conn))
		}()
	}

	if cfg.Websocket.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.Websocket.Path, transport.WebsocketHandler(factory))
		server := &http.Server{
			Addr:    cfg.Websocket.Listen,
			Handler: mux,
		}

		log.Printf("Serving %s variant on ws://%s%s", cfg.Device.Variant, cfg.Websocket.Listen, cfg.Websocket.Path)
		served++
		go func() {
			err := server.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				err = nil
			}
			errs <- err
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	if served == 0 {
		log.Fatalf("Nothing to serve: configure a serial port or a websocket listen address")
	}

	for range served {
		if err := <-errs; err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Transport stopped: %v", err)
		}
		stop()
	}
}

// setup brings up the flash, curve store and ADC the way the board does at
// reset, and returns the dispatcher options for the configured variant.
func setup(ctx context.Context, cfg *config.Config) ([]dispatch.Option, error) {
	sampler := adc.NewSampler()
	interval := cfg.ADC.Interval
	if interval < ADC_DMA_INTERVAL {
		interval = ADC_DMA_INTERVAL
	}
	go sampler.Run(ctx, adc.NewMock(&cfg.ADC.Mock), interval)
	log.Printf("ADC: %d channels, %d-bit, every %v", adc.Channels, ADC_RESOLUTION, interval)

	opts := []dispatch.Option{
		dispatch.WithVariant(cfg.Device.Variant),
		dispatch.WithSampler(sampler, cfg.ADC.NoiseThreshold),
	}
	if cfg.Device.Variant != config.VariantCurve {
		return opts, nil
	}

	geom := curve.DefaultGeometry()
	var mem *flash.Memory
	if cfg.Flash.Image != "" {
		var err error
		if mem, err = flash.LoadMemory(cfg.Flash.Image, geom); err != nil {
			return nil, err
		}
	} else {
		mem = flash.NewMemory(geom)
	}

	store, err := curve.NewStore(flash.NewAccessor(mem, geom), curve.DefaultLayout(),
		curve.WithProgramRetries(cfg.Flash.ProgramRetries))
	if err != nil {
		return nil, err
	}
	if err := store.Load(); err != nil {
		return nil, err
	}
	log.Printf("Flash: sector %d, image %q", FLASH_SECTOR, cfg.Flash.Image)

	return append(opts, dispatch.WithCurves(store)), nil
}

package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/abiosoft/ishell"

	"github.com/itohio/goadjuster/pkg/config"
	"github.com/itohio/goadjuster/pkg/device"
	"github.com/itohio/goadjuster/pkg/sample"
)

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

// Shell provides the ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Config *config.Config
	Target string // Connected on start when set

	Device device.Device
	Info   device.Info

	Offsets   sample.Offsets    // Zero readings of the connected device
	Deviation *sample.Deviation // Drift from the first reading of a monitor run
}

// NewShell creates a new shell.
func NewShell(cfg *config.Config, interactive, outputJSON bool) *Shell {
	s := &Shell{
		Interactive: interactive,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: cfg,

		Deviation: sample.NewDeviation(cfg.Pressure.Threshold),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Device == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// MustServeCurves wraps command func requires a curve device.
func MustServeCurves(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return MustBeConnected(func(c *ishell.Context) {
		if ShellFrom(c).Info.Plain {
			c.Err(fmt.Errorf("device does not serve curves"))
			return
		}
		fn(c)
	})
}

// MustServeData wraps command func requires a plain device.
func MustServeData(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return MustBeConnected(func(c *ishell.Context) {
		if !ShellFrom(c).Info.Plain {
			c.Err(fmt.Errorf("device does not serve ADC snapshots"))
			return
		}
		fn(c)
	})
}

// Connect opens target: a serial port, a ws:// URL or "loopback".
func (s *Shell) Connect(target string) error {
	dev, err := device.Open(target, s.Config)
	if err != nil {
		return err
	}

	info, err := dev.Handshake()
	if err != nil {
		dev.Close()
		return fmt.Errorf("handshake with %s failed: %w", target, err)
	}

	s.Disconnect()
	s.Device = dev
	s.Info = info
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", target))
	return nil
}

// Disconnect disconnects the current device.
func (s *Shell) Disconnect() {
	if s.Device != nil {
		if err := s.Device.Close(); err != nil {
			log.Printf("Error closing device: %v", err)
		}
		s.Device = nil
		s.Info = device.Info{}
		s.Offsets = sample.Offsets{}
		s.Deviation.Reset()
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Print writes v as JSON when requested, otherwise as text.
func (s *Shell) Print(c *ishell.Context, v any, text string) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Disconnect()

	if s.Target != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Target)
		}
		if err := s.Connect(s.Target); err != nil {
			log.Fatalf("connect %q failed: %v", s.Target, err)
		}
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

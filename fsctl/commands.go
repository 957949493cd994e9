package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/itohio/goadjuster/pkg/curve"
	"github.com/itohio/goadjuster/pkg/device"
	"github.com/itohio/goadjuster/pkg/sample"
	"github.com/itohio/goadjuster/pkg/telemetry"
)

const defaultMonitorDuration = 10 * time.Second

var commands = []*ishell.Cmd{
	&PortsCmd,
	&ConnectCmd,
	&DisconnectCmd,
	&CurvesCmd,
	&PointsCmd,
	&SetCmd,
	&PullCmd,
	&PushCmd,
	&DataCmd,
	&CalibrateCmd,
	&MonitorCmd,
}

// formatPoints renders a curve as (x, y) pairs.
func formatPoints(name string, p curve.Points) string {
	pairs := p.Pairs()
	parts := make([]string, len(pairs))
	for i, pair := range pairs {
		parts[i] = fmt.Sprintf("(%.2f, %.2f)", pair.X, pair.Y)
	}
	return fmt.Sprintf("%-5s %s", name, strings.Join(parts, " "))
}

var (
	// PortsCmd lists serial ports.
	PortsCmd = ishell.Cmd{
		Name:    "ports",
		Aliases: []string{"list", "l"},
		Help:    "list serial ports",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			ports, err := device.Ports()
			if err != nil {
				c.Err(err)
				return
			}
			if len(ports) == 0 {
				ports = []device.Port{}
			}
			names := make([]string, len(ports))
			for i, p := range ports {
				names[i] = p.Name
			}
			s.Print(c, ports, strings.Join(names, "\n"))
		},
	}

	// ConnectCmd connects a device.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "PORT|ws://HOST/PATH|loopback",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			target := s.Config.Serial.Port
			if len(c.Args) > 0 {
				target = c.Args[0]
			}
			if err := s.Connect(target); err != nil {
				c.Err(err)
				return
			}
			if s.Info.Plain {
				s.Print(c, s.Info, "Connected, plain device")
				return
			}
			s.Print(c, s.Info, "Connected, curves: "+strings.Join(s.Info.Curves, ", "))
		},
	}

	// DisconnectCmd disconnects the current device.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// CurvesCmd prints every curve.
	CurvesCmd = ishell.Cmd{
		Name: "curves",
		Help: "print every curve",
		Func: MustServeCurves(func(c *ishell.Context) {
			s := ShellFrom(c)
			f := NewCurveFile()
			var lines []string
			for _, name := range s.Info.Curves {
				p, err := s.Device.Points(name)
				if err != nil {
					c.Err(err)
					return
				}
				f.Set(name, p)
				lines = append(lines, formatPoints(name, p))
			}
			s.Print(c, f, strings.Join(lines, "\n"))
		}),
	}

	// PointsCmd prints one curve.
	PointsCmd = ishell.Cmd{
		Name:    "points",
		Aliases: []string{"p"},
		Help:    "NAME",
		Func: MustServeCurves(func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("curve name expected"))
				return
			}
			s := ShellFrom(c)
			p, err := s.Device.Points(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			s.Print(c, p, formatPoints(c.Args[0], p))
		}),
	}

	// SetCmd replaces one curve.
	SetCmd = ishell.Cmd{
		Name:    "set",
		Aliases: []string{"s"},
		Help:    "NAME X0 Y0 X1 Y1 X2 Y2 X3 Y3 X4 Y4",
		Func: MustServeCurves(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("curve name expected"))
				return
			}
			p, err := curve.ParsePoints(c.Args[1:])
			if err != nil {
				c.Err(err)
				return
			}
			if err := ShellFrom(c).Device.SetPoints(c.Args[0], p); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}

	// PullCmd saves every curve to a YAML file.
	PullCmd = ishell.Cmd{
		Name: "pull",
		Help: "FILE",
		Func: MustServeCurves(func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("file name expected"))
				return
			}
			s := ShellFrom(c)
			f := NewCurveFile()
			for _, name := range s.Info.Curves {
				p, err := s.Device.Points(name)
				if err != nil {
					c.Err(err)
					return
				}
				f.Set(name, p)
			}
			if err := f.Save(c.Args[0]); err != nil {
				c.Err(err)
				return
			}
			c.Printf("Saved %d curves to %s\n", len(f.Curves), c.Args[0])
		}),
	}

	// PushCmd writes the curves of a YAML file to the device.
	PushCmd = ishell.Cmd{
		Name: "push",
		Help: "FILE",
		Func: MustServeCurves(func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("file name expected"))
				return
			}
			f, err := LoadCurveFile(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			curves, err := f.Points()
			if err != nil {
				c.Err(err)
				return
			}

			n, err := pushCurves(ShellFrom(c).Device, curves)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("Wrote %d curves\n", n)
		}),
	}

	// DataCmd prints one ADC snapshot.
	DataCmd = ishell.Cmd{
		Name: "data",
		Help: "print one ADC snapshot",
		Func: MustServeData(func(c *ishell.Context) {
			s := ShellFrom(c)
			snap, err := s.Device.Channels()
			if err != nil {
				c.Err(err)
				return
			}
			parts := make([]string, len(snap))
			for i, v := range snap {
				parts[i] = fmt.Sprintf("CH%d: %4d", i, v)
			}
			s.Print(c, snap, strings.Join(parts, "  "))
		}),
	}

	// CalibrateCmd zeroes the pressure readings.
	CalibrateCmd = ishell.Cmd{
		Name:    "calibrate",
		Aliases: []string{"zero"},
		Help:    "[BATCH|clear]",
		Func: MustServeData(func(c *ishell.Context) {
			s := ShellFrom(c)
			batch := sample.DefaultCalibrationBatch
			if len(c.Args) > 0 {
				if c.Args[0] == "clear" {
					s.Offsets = sample.Offsets{}
					s.Deviation.Reset()
					c.Println("Offsets cleared")
					return
				}
				n, err := strconv.Atoi(c.Args[0])
				if err != nil || n <= 0 {
					c.Err(fmt.Errorf("invalid batch %q", c.Args[0]))
					return
				}
				batch = n
			}

			offsets, err := calibrate(s, batch)
			if err != nil {
				c.Err(err)
				return
			}
			s.Print(c, offsets, fmt.Sprintf("Offsets (MPa): %.3f %.3f %.3f %.3f", offsets[0], offsets[1], offsets[2], offsets[3]))
		}),
	}

	// MonitorCmd polls the device and prints pressure readings, publishing
	// them when a broker is configured. With FILE the readings are saved and
	// the drift of every sensor is judged at the end.
	MonitorCmd = ishell.Cmd{
		Name:    "monitor",
		Aliases: []string{"m"},
		Help:    "[DURATION [FILE]]",
		Func: MustServeData(func(c *ishell.Context) {
			s := ShellFrom(c)
			duration := defaultMonitorDuration
			if len(c.Args) > 0 {
				d, err := time.ParseDuration(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				duration = d
			}
			var file string
			if len(c.Args) > 1 {
				file = c.Args[1]
			}
			if err := monitor(c, s, duration, file); err != nil {
				c.Err(err)
			}
		}),
	}
)

func monitor(c *ishell.Context, s *Shell, duration time.Duration, file string) error {
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	cfg := s.Config
	s.Deviation.Reset()
	rec := sample.NewRecording(cfg.Pressure.Threshold)

	runLog := log.New(io.Discard, "", 0)
	if file != "" {
		l, closer, err := sample.OpenLog(file)
		if err != nil {
			return err
		}
		defer closer.Close()
		runLog = l
	}
	runLog.Printf("Check started, duration %v", duration)
	runLog.Printf("Threshold %.2f MPa", cfg.Pressure.Threshold)
	runLog.Printf("Offsets %v", s.Offsets)

	var publish chan sample.Pressure
	if cfg.MQTT.Broker != "" {
		pub, err := telemetry.New(&cfg.MQTT)
		if err != nil {
			return err
		}
		defer pub.Close()
		pub.WithDeviation(sample.NewDeviation(cfg.Pressure.Threshold))

		publish = make(chan sample.Pressure, 16)
		defer close(publish)
		go pub.Run(ctx, publish)
		c.Printf("Publishing to %s as %s\n", pub.Topic(), pub.ClientID())
	}

	measure(ctx, s, func(p sample.Pressure) {
		rec.Add(p)
		runLog.Printf("Reading %.3f", p.Values)

		delta, exceeded := s.Deviation.Check(p)
		s.Print(c, p, formatPressure(p, delta, exceeded))

		if publish != nil {
			select {
			case publish <- p:
			default:
			}
		}
	})

	results, err := rec.Results()
	if err != nil {
		runLog.Printf("Check failed: %v", err)
		return err
	}
	if file != "" {
		if err := rec.Save(file); err != nil {
			return err
		}
		runLog.Printf("Saved %d readings to %s", rec.Len(), file)
	}
	for _, r := range results {
		runLog.Printf("CH%d initial %.2f final %.2f delta %+.3f pass %v", r.Sensor, r.Initial, r.Final, r.Delta, r.Pass)
	}
	runLog.Printf("Check finished")

	s.Print(c, results, formatResults(results))
	return nil
}

func formatPressure(p sample.Pressure, delta [sample.Sensors]float64, exceeded [sample.Sensors]bool) string {
	var b strings.Builder
	b.WriteString(p.Timestamp.Format("15:04:05.000"))
	for i, v := range p.Values {
		status := "ok"
		if exceeded[i] {
			status = "LIMIT"
		}
		fmt.Fprintf(&b, "  CH%d %6.2f MPa (d=%.2f %s)", i+1, v, delta[i], status)
	}
	return b.String()
}

// pushCurves writes curves to dev in wire order and stops at the first failure.
func pushCurves(dev device.Device, curves map[curve.ID]curve.Points) (int, error) {
	n := 0
	for _, id := range curve.IDs() {
		p, ok := curves[id]
		if !ok {
			continue
		}
		if err := dev.SetPoints(id.String(), p); err != nil {
			return n, fmt.Errorf("%s: %w", id, err)
		}
		n++
	}
	return n, nil
}

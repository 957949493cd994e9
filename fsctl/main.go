// Command fsctl reads and writes the calibration curves of an adjuster and
// monitors its pressure transducers.
package main

import (
	"flag"
	"log"

	"github.com/itohio/goadjuster/pkg/config"
	"github.com/itohio/goadjuster/pkg/device"
)

func main() {
	var (
		portFlag     = flag.String("p", "", "Connect on start: serial port, ws:// URL or \"loopback\"")
		configFlag   = flag.String("config", "config.yaml", "Configuration file path")
		brokerFlag   = flag.String("broker", "", "MQTT broker URL override (e.g., mqtt://localhost:1883/goadjuster)")
		evalOnly     = flag.Bool("e", false, "Evaluation only, no interactive shell.")
		outputJSON   = flag.Bool("json", false, "Print output in JSON.")
		loopbackFlag = flag.Bool("loopback", false, "Connect to an in-process device backed by the configured flash image")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *brokerFlag != "" {
		cfg.MQTT.Broker = *brokerFlag
	}

	s := NewShell(cfg, !*evalOnly, *outputJSON)
	switch {
	case *loopbackFlag:
		s.Target = device.TargetLoopback
	case *portFlag != "":
		s.Target = *portFlag
	}

	s.Run(flag.Args()...)
}

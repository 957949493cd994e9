package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Variant names the firmware flavour served by the device.
type Variant string

const (
	// VariantCurve serves the calibration curve commands.
	VariantCurve Variant = "curve"
	// VariantPlain serves raw ADC snapshots.
	VariantPlain Variant = "plain"
)

// Config represents the application configuration.
type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	Device    DeviceConfig    `yaml:"device"`
	Flash     FlashConfig     `yaml:"flash"`
	ADC       ADCConfig       `yaml:"adc"`
	Pressure  PressureConfig  `yaml:"pressure"`
	Client    ClientConfig    `yaml:"client"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Websocket WebsocketConfig `yaml:"websocket"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// DeviceConfig selects what the simulated device serves.
type DeviceConfig struct {
	Variant Variant `yaml:"variant"`
}

// FlashConfig contains the simulated flash configuration.
type FlashConfig struct {
	Image          string `yaml:"image"`           // Flash image file ("" keeps flash in memory only)
	ProgramRetries int    `yaml:"program_retries"` // Erase+program retries after a failed program
}

// ADCConfig contains the sampling configuration.
type ADCConfig struct {
	Interval       time.Duration `yaml:"interval"`        // DMA refresh interval
	NoiseThreshold uint16        `yaml:"noise_threshold"` // Readings below are reported as 0
	Mock           ADCMockConfig `yaml:"mock"`
}

// ADCMockConfig contains simulated sensor configuration.
type ADCMockConfig struct {
	Levels    []uint16      `yaml:"levels"`    // Mean ADC counts per channel
	Amplitude float64       `yaml:"amplitude"` // Oscillation amplitude (counts)
	Period    time.Duration `yaml:"period"`    // Oscillation period
	Noise     float64       `yaml:"noise"`     // Noise level (counts)
}

// PressureConfig contains the transducer conversion parameters.
type PressureConfig struct {
	ADCMax      float64 `yaml:"adc_max"`      // Full scale ADC counts
	VRef        float64 `yaml:"vref"`         // ADC reference voltage (V)
	CurrentMax  float64 `yaml:"current_max"`  // Loop current at full scale (mA)
	PressureMax float64 `yaml:"pressure_max"` // Pressure at full scale (MPa)
	VoltageGate uint16  `yaml:"voltage_gate"` // Snapshots with CH0 above this are dropped
	Batch       int     `yaml:"batch"`        // Snapshots per median
	Threshold   float64 `yaml:"threshold"`    // Allowed drift from the first reading (MPa)
}

// ClientConfig contains host client parameters.
type ClientConfig struct {
	Timeout      time.Duration `yaml:"timeout"`       // Reply timeout
	PollInterval time.Duration `yaml:"poll_interval"` // ADC poll interval for monitoring
	RecordDir    string        `yaml:"record_dir"`    // Where the GUI keeps check recordings
}

// MQTTConfig contains telemetry publishing parameters.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`    // e.g. mqtt://localhost:1883/goadjuster ("" disables)
	ClientID string `yaml:"client_id"` // "" derives one from the machine id
	QoS      byte   `yaml:"qos"`
	Retained bool   `yaml:"retained"`
}

// WebsocketConfig contains the websocket listener configuration.
type WebsocketConfig struct {
	Listen string `yaml:"listen"` // e.g. :8080 ("" disables)
	Path   string `yaml:"path"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "COM3", // Default for Windows, should be "/dev/ttyACM0" on Linux/Mac
			BaudRate: 115200,
		},
		Device: DeviceConfig{
			Variant: VariantCurve,
		},
		Flash: FlashConfig{
			Image:          "flash.bin",
			ProgramRetries: 1,
		},
		ADC: ADCConfig{
			Interval:       time.Millisecond,
			NoiseThreshold: 100,
			Mock: ADCMockConfig{
				Levels:    []uint16{800, 1300, 1260, 1320, 1300},
				Amplitude: 40,
				Period:    5 * time.Second,
				Noise:     4,
			},
		},
		Pressure: PressureConfig{
			ADCMax:      4095,
			VRef:        3.0,
			CurrentMax:  20.0,
			PressureMax: 40.0,
			VoltageGate: 1000,
			Batch:       5,
			Threshold:   5.0,
		},
		Client: ClientConfig{
			Timeout:      3 * time.Second,
			PollInterval: 200 * time.Millisecond,
			RecordDir:    "rec",
		},
		MQTT: MQTTConfig{
			QoS: 0,
		},
		Websocket: WebsocketConfig{
			Path: "/fs",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.ensureDefaults(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults fills missing fields and rejects values that cannot work.
func (c *Config) ensureDefaults() error {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	switch c.Device.Variant {
	case "":
		c.Device.Variant = def.Device.Variant
	case VariantCurve, VariantPlain:
	default:
		return fmt.Errorf("unknown device variant %q", c.Device.Variant)
	}

	if c.Flash.ProgramRetries < 0 {
		c.Flash.ProgramRetries = 0
	}

	if c.ADC.Interval == 0 {
		c.ADC.Interval = def.ADC.Interval
	}
	if len(c.ADC.Mock.Levels) == 0 {
		c.ADC.Mock.Levels = def.ADC.Mock.Levels
	}

	if c.Pressure.ADCMax == 0 {
		c.Pressure.ADCMax = def.Pressure.ADCMax
	}
	if c.Pressure.VRef == 0 {
		c.Pressure.VRef = def.Pressure.VRef
	}
	if c.Pressure.CurrentMax == 0 {
		c.Pressure.CurrentMax = def.Pressure.CurrentMax
	}
	if c.Pressure.PressureMax == 0 {
		c.Pressure.PressureMax = def.Pressure.PressureMax
	}
	if c.Pressure.VoltageGate == 0 {
		c.Pressure.VoltageGate = def.Pressure.VoltageGate
	}
	if c.Pressure.Batch <= 0 {
		c.Pressure.Batch = def.Pressure.Batch
	}
	if c.Pressure.Threshold <= 0 {
		c.Pressure.Threshold = def.Pressure.Threshold
	}

	if c.Client.Timeout == 0 {
		c.Client.Timeout = def.Client.Timeout
	}
	if c.Client.PollInterval == 0 {
		c.Client.PollInterval = def.Client.PollInterval
	}
	if c.Client.RecordDir == "" {
		c.Client.RecordDir = def.Client.RecordDir
	}

	if c.Websocket.Path == "" {
		c.Websocket.Path = def.Websocket.Path
	}

	return nil
}

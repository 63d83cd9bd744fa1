// Package config loads usbtmcd's configuration: the HTTP listen
// address and the list of instruments to attach at startup, layered
// the way cmd/multiserver layers its YAML configuration with koanf.
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	yml "gopkg.in/yaml.v2"
)

// InstrumentSetup is the generalization of the familiar addr/URL/serial
// device-setup triplet for this domain: enough to open one USBTMC
// instrument by VID/PID and mount its HTTP surface at URL.
type InstrumentSetup struct {
	// VID is the USB vendor ID of the instrument, e.g. 0x1313 for Thorlabs.
	VID uint16 `yaml:"VID"`

	// PID is the USB product ID of the instrument.
	PID uint16 `yaml:"PID"`

	// URL is a label for the instrument, e.g. "/ldc4001", printed in the
	// attach log line. Routes are not mounted at URL: each instrument's
	// routes live under /instruments/<minor>, and the /endpoints graph is
	// keyed by that path.
	URL string `yaml:"URL"`
}

// Config is usbtmcd's top level configuration.
type Config struct {
	// Addr is the address to listen at, e.g. ":8080".
	Addr string `yaml:"Addr"`

	// Instruments lists every USBTMC instrument to attach at startup.
	Instruments []InstrumentSetup `yaml:"Instruments"`

	// DefaultTimeoutMs is applied to every session's TIMEOUT attribute
	// after attach, in milliseconds.
	DefaultTimeoutMs int32 `yaml:"DefaultTimeoutMs"`

	// Debug enables the usbtmc package's internal tracing.
	Debug bool `yaml:"Debug"`
}

// defaults holds the compiled-in configuration; DefaultTimeoutMs matches
// usbtmc.DefaultTimeout, the timeout a newly opened Session starts with.
// It is surfaced here so mkconf and a missing config file produce the
// same behavior.
func defaults() Config {
	return Config{
		Addr:             ":8080",
		DefaultTimeoutMs: 5000,
	}
}

// Loader layers configuration the way cmd/multiserver/main.go's
// setupconfig does: struct defaults, then an optional YAML file
// overlaying them. Keys are case-insensitive.
type Loader struct {
	k *koanf.Koanf
}

// NewLoader loads defaults and then path, if it exists. A missing file
// is not an error: defaults are used as-is, matching the "file
// missing, who cares" tolerance of cmd/multiserver's setupconfig.
func NewLoader(path string) (*Loader, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaults(), "yaml"), nil); err != nil {
		return nil, err
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !strings.Contains(err.Error(), "no such file") {
			return nil, err
		}
	}
	return &Loader{k: k}, nil
}

// Config unmarshals the loaded layers into a Config.
func (l *Loader) Config() (Config, error) {
	var c Config
	err := l.k.Unmarshal("", &c)
	return c, err
}

// WriteDefault writes the default configuration to path in YAML, for
// the mkconf subcommand.
func WriteDefault(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return yml.NewEncoder(f).Encode(defaults())
}

// Package config loads the node configuration from yaml or toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/coreman2200/bespeckle/internal/layout"
	"github.com/coreman2200/bespeckle/internal/render"
)

type SPI struct {
	Dev        string `yaml:"dev" toml:"dev"`           // e.g. /dev/spidev0.0, "" for the first port
	SpeedHz    int    `yaml:"speed_hz" toml:"speed_hz"` // 0 picks the driver default
	ColorOrder string `yaml:"color_order" toml:"color_order"`
}

type Listen struct {
	HTTP string `yaml:"http" toml:"http"` // e.g. :8080, "" disables
	UDP  string `yaml:"udp" toml:"udp"`   // e.g. :7777, "" disables
}

// Tempo drives the local metronome.
type Tempo struct {
	Enabled      bool    `yaml:"enabled" toml:"enabled"`
	BPM          float64 `yaml:"bpm" toml:"bpm"`
	Subdivisions int     `yaml:"subdivisions" toml:"subdivisions"`
}

type Logging struct {
	Level string `yaml:"level" toml:"level"`
}

type Config struct {
	Driver     string       `yaml:"driver" toml:"driver"` // "sim" | "spi" | "nrz" | "console" | "terminal"
	Strip      layout.Strip `yaml:"strip" toml:"strip"`
	Capacity   int          `yaml:"capacity" toml:"capacity"`
	FPS        int          `yaml:"fps" toml:"fps"`
	Brightness float64      `yaml:"brightness" toml:"brightness"` // 0..1, overrides params[3]
	Params     []int        `yaml:"params,flow" toml:"params"`
	Cues       string       `yaml:"cues,omitempty" toml:"cues,omitempty"` // show file played at startup

	SPI     SPI           `yaml:"spi" toml:"spi"`
	Listen  Listen        `yaml:"listen" toml:"listen"`
	Tempo   Tempo         `yaml:"tempo" toml:"tempo"`
	Logging Logging       `yaml:"logging" toml:"logging"`
	Power   render.Limits `yaml:"power" toml:"power"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Driver:     "sim",
		Strip:      layout.Strip{Length: 50},
		FPS:        60,
		Brightness: 1,
		Listen:     Listen{HTTP: ":8080", UDP: ":7777"},
		Tempo:      Tempo{BPM: 120, Subdivisions: 4},
		Logging:    Logging{Level: "info"},
	}
}

// Validate rejects values the node cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Strip.Length <= 0 {
		errs = append(errs, fmt.Errorf("strip.length must be positive, got %d", c.Strip.Length))
	}
	if c.FPS < 0 {
		errs = append(errs, fmt.Errorf("fps must not be negative, got %d", c.FPS))
	}
	if c.Brightness < 0 || c.Brightness > 1 {
		errs = append(errs, fmt.Errorf("brightness must be within [0,1], got %g", c.Brightness))
	}
	if len(c.Params) != 0 && len(c.Params) != 4 {
		errs = append(errs, fmt.Errorf("params needs 4 values, got %d", len(c.Params)))
	}
	for i, v := range c.Params {
		if v < 0 || v > 0xff {
			errs = append(errs, fmt.Errorf("params[%d] out of range: %d", i, v))
		}
	}
	if c.Tempo.Enabled && c.Tempo.BPM <= 0 {
		errs = append(errs, errors.New("tempo.bpm must be positive when tempo is enabled"))
	}
	if c.Tempo.Subdivisions < 0 || c.Tempo.Subdivisions > 240 {
		errs = append(errs, fmt.Errorf("tempo.subdivisions must be within [0,240], got %d", c.Tempo.Subdivisions))
	}
	return errors.Join(errs...)
}

// EngineParams returns the startup color-correction parameters with the
// brightness folded into the overall factor.
func (c *Config) EngineParams() [4]uint8 {
	p := [4]uint8{0xff, 0xff, 0xff, 0xff}
	for i, v := range c.Params {
		if i < len(p) {
			p[i] = uint8(v)
		}
	}
	if c.Brightness > 0 && c.Brightness < 1 {
		p[3] = uint8(float64(p[3]) * c.Brightness)
	}
	return p
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load reads path over the defaults. Files ending in .toml are toml, all
// others yaml.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if isTOML(path) {
		err = toml.Unmarshal(b, c)
	} else {
		err = yaml.Unmarshal(b, c)
	}
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

func Save(path string, c *Config) error {
	var (
		b   []byte
		err error
	)
	if isTOML(path) {
		b, err = toml.Marshal(c)
	} else {
		b, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Package config loads the YAML settings shared by the CLI and the server.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/cbegin/midiroll-go/internal/effects"
	"github.com/cbegin/midiroll-go/internal/keys"
)

const (
	EngineFM        = "fm"
	EngineSoundFont = "soundfont"

	DefaultDT   = 0.05
	DefaultAddr = ":8080"
)

var ErrInvalid = errors.New("invalid config")

var log = logrus.WithField("component", "config")

type Config struct {
	SampleRate        int        `yaml:"sample_rate"`
	DT                float64    `yaml:"dt"`
	Engine            string     `yaml:"engine"`
	SoundFont         string     `yaml:"soundfont"`
	InitialBufferTime float64    `yaml:"initial_buffer_time"`
	Reverb            Reverb     `yaml:"reverb"`
	Compressor        Compressor `yaml:"compressor"`
	EQ                EQ         `yaml:"eq"`
	LogLevel          string     `yaml:"log_level"`
	Server            Server     `yaml:"server"`
}

type Reverb struct {
	Enabled  bool    `yaml:"enabled"`
	RoomSize float32 `yaml:"room_size"`
	Feedback float32 `yaml:"feedback"`
	Wet      float32 `yaml:"wet"`
}

type Compressor struct {
	Enabled     bool    `yaml:"enabled"`
	ThresholdDB float32 `yaml:"threshold_db"`
	Ratio       float32 `yaml:"ratio"`
	AttackMs    float32 `yaml:"attack_ms"`
	ReleaseMs   float32 `yaml:"release_ms"`
	MakeupDB    float32 `yaml:"makeup_db"`
}

type EQ struct {
	Enabled  bool    `yaml:"enabled"`
	Low      float32 `yaml:"low"`
	Mid      float32 `yaml:"mid"`
	High     float32 `yaml:"high"`
	LowFreq  float32 `yaml:"low_freq"`
	HighFreq float32 `yaml:"high_freq"`
}

type Server struct {
	Addr           string        `yaml:"addr"`
	IdleRelease    time.Duration `yaml:"idle_release"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

func Default() Config {
	return Config{
		SampleRate: keys.SampleRate,
		DT:         DefaultDT,
		Engine:     EngineFM,
		Reverb: Reverb{
			RoomSize: 0.6,
			Feedback: 0.7,
			Wet:      0.2,
		},
		Compressor: Compressor{
			ThresholdDB: -18,
			Ratio:       3,
			AttackMs:    5,
			ReleaseMs:   120,
		},
		EQ: EQ{
			Low:      1,
			Mid:      1,
			High:     1,
			LowFreq:  250,
			HighFreq: 4000,
		},
		LogLevel: "info",
		Server: Server{
			Addr:           DefaultAddr,
			IdleRelease:    2 * time.Second,
			AllowedOrigins: []string{"*"},
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Debugf("no config at %s, using defaults", path)
		return cfg, nil
	}
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(ErrInvalid, "parse %s: %v", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return errors.Wrapf(ErrInvalid, "sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.DT <= 0 {
		return errors.Wrapf(ErrInvalid, "dt must be positive, got %g", c.DT)
	}
	if c.InitialBufferTime < 0 {
		return errors.Wrapf(ErrInvalid, "initial_buffer_time must be non-negative, got %g", c.InitialBufferTime)
	}
	switch c.Engine {
	case EngineFM:
	case EngineSoundFont:
		if c.SoundFont == "" {
			return errors.Wrap(ErrInvalid, "engine soundfont needs a soundfont path")
		}
	default:
		return errors.Wrapf(ErrInvalid, "unknown engine %q", c.Engine)
	}
	if c.Compressor.Enabled && c.Compressor.Ratio < 1 {
		return errors.Wrapf(ErrInvalid, "compressor ratio must be at least 1, got %g", c.Compressor.Ratio)
	}
	if c.EQ.Enabled && (c.EQ.LowFreq <= 0 || c.EQ.HighFreq <= c.EQ.LowFreq) {
		return errors.Wrapf(ErrInvalid, "eq crossovers %g/%g", c.EQ.LowFreq, c.EQ.HighFreq)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(ErrInvalid, "log_level: %v", err)
	}
	if c.Server.IdleRelease < 0 {
		return errors.Wrapf(ErrInvalid, "server.idle_release must be non-negative, got %s", c.Server.IdleRelease)
	}
	return nil
}

// Level returns the configured logrus level, defaulting to info.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Effects builds the post chain in EQ, compressor, reverb order. Disabled
// sections are skipped.
func (c Config) Effects() *effects.Chain {
	chain := effects.NewChain()
	if c.EQ.Enabled {
		chain.Add(effects.NewEQ3Band(c.SampleRate, c.EQ.Low, c.EQ.Mid, c.EQ.High, c.EQ.LowFreq, c.EQ.HighFreq))
	}
	if c.Compressor.Enabled {
		cp := c.Compressor
		chain.Add(effects.NewCompressor(c.SampleRate, cp.ThresholdDB, cp.Ratio, cp.AttackMs, cp.ReleaseMs, cp.MakeupDB))
	}
	if c.Reverb.Enabled {
		chain.Add(effects.NewReverb(c.SampleRate, c.Reverb.RoomSize, c.Reverb.Feedback, c.Reverb.Wet))
	}
	return chain
}

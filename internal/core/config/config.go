// Package config loads server configuration from YAML or JSON.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration. All fields carry both yaml and
// json tags so the same structure loads from either format.
type Config struct {
	Engine   Engine   `json:"engine" yaml:"engine"`
	Gameplay Gameplay `json:"gameplay" yaml:"gameplay"`
	Gateway  Gateway  `json:"gateway" yaml:"gateway"`
	Persist  Persist  `json:"persist" yaml:"persist"`
	Scenes   []Scene  `json:"scenes,omitempty" yaml:"scenes,omitempty"`

	// StartScene is loaded on boot when set; it must name one of Scenes.
	StartScene string `json:"start_scene,omitempty" yaml:"start_scene,omitempty"`

	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// Engine tunes the simulation core.
type Engine struct {
	TickRate          int           `json:"tick_rate" yaml:"tick_rate"`
	MaxEntities       int           `json:"max_entities" yaml:"max_entities"`
	MinActionInterval time.Duration `json:"min_action_interval" yaml:"min_action_interval"`
	ActionQueueSize   int           `json:"action_queue_size" yaml:"action_queue_size"`
	GameMode          string        `json:"game_mode,omitempty" yaml:"game_mode,omitempty"`
}

// Gameplay tunes the built-in bundle.
type Gameplay struct {
	Enabled         bool          `json:"enabled" yaml:"enabled"`
	MaxStepDistance float64       `json:"max_step_distance" yaml:"max_step_distance"`
	WorldBound      float64       `json:"world_bound" yaml:"world_bound"`
	RegenPerSecond  float64       `json:"regen_per_second" yaml:"regen_per_second"`
	PickupRange     float64       `json:"pickup_range" yaml:"pickup_range"`
	MoveCooldown    time.Duration `json:"move_cooldown" yaml:"move_cooldown"`
	AttackCooldown  time.Duration `json:"attack_cooldown" yaml:"attack_cooldown"`
}

// Gateway configures the network frontends.
type Gateway struct {
	Addr     string `json:"addr" yaml:"addr"`
	QUICAddr string `json:"quic_addr,omitempty" yaml:"quic_addr,omitempty"`
}

// Persist configures periodic world snapshots.
type Persist struct {
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	Path     string        `json:"path,omitempty" yaml:"path,omitempty"`
	Interval time.Duration `json:"interval,omitempty" yaml:"interval,omitempty"`
}

// Scene declares a scene registered on boot.
type Scene struct {
	ID       string         `json:"id" yaml:"id"`
	Name     string         `json:"name,omitempty" yaml:"name,omitempty"`
	Systems  []string       `json:"systems,omitempty" yaml:"systems,omitempty"`
	Settings map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Engine: Engine{
			TickRate:          20,
			MaxEntities:       10_000,
			MinActionInterval: 100 * time.Millisecond,
			ActionQueueSize:   1024,
		},
		Gameplay: Gameplay{
			Enabled:         true,
			MaxStepDistance: 5,
			WorldBound:      500,
			RegenPerSecond:  1,
			PickupRange:     3,
			MoveCooldown:    100 * time.Millisecond,
			AttackCooldown:  500 * time.Millisecond,
		},
		Gateway: Gateway{
			Addr: ":8080",
		},
		Persist: Persist{
			Path:     "world.json",
			Interval: 30 * time.Second,
		},
		LogLevel: "info",
	}
}

// LoadJSON loads config from a JSON reader on top of the defaults.
func LoadJSON(r io.Reader) (*Config, error) {
	c := Default()
	dec := json.NewDecoder(r)
	if err := dec.Decode(c); err != nil {
		return nil, err
	}
	return c, c.Validate()
}

// LoadYAML loads config from a YAML reader on top of the defaults.
func LoadYAML(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(c); err != nil {
		return nil, err
	}
	return c, c.Validate()
}

// LoadFile dispatches on the file extension. ".yaml"/".yml" load as YAML,
// everything else as JSON.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return LoadYAML(f)
	default:
		return LoadJSON(f)
	}
}

// Validate checks field consistency.
func (c *Config) Validate() error {
	if c.Engine.TickRate <= 0 {
		return fmt.Errorf("engine.tick_rate must be positive, got %d", c.Engine.TickRate)
	}
	if c.Engine.MaxEntities <= 0 {
		return fmt.Errorf("engine.max_entities must be positive, got %d", c.Engine.MaxEntities)
	}
	if c.Engine.MinActionInterval < 0 {
		return fmt.Errorf("engine.min_action_interval must not be negative")
	}
	if c.Gateway.Addr == "" {
		return fmt.Errorf("gateway.addr is required")
	}
	if c.Persist.Enabled {
		if c.Persist.Path == "" {
			return fmt.Errorf("persist.path is required when persist is enabled")
		}
		if c.Persist.Interval <= 0 {
			return fmt.Errorf("persist.interval must be positive when persist is enabled")
		}
	}
	seen := make(map[string]struct{}, len(c.Scenes))
	for _, sc := range c.Scenes {
		if sc.ID == "" {
			return fmt.Errorf("scene id is required")
		}
		if _, dup := seen[sc.ID]; dup {
			return fmt.Errorf("duplicate scene id %q", sc.ID)
		}
		seen[sc.ID] = struct{}{}
	}
	if c.StartScene != "" {
		if _, ok := seen[c.StartScene]; !ok {
			return fmt.Errorf("start_scene %q is not declared in scenes", c.StartScene)
		}
	}
	return nil
}

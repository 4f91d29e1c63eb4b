package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simforge/simforge/internal/core/config"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, config.Default().Validate())
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	src := `
engine:
  tick_rate: 60
  max_entities: 500
gateway:
  addr: ":9090"
scenes:
  - id: lobby
    name: Lobby
    systems: [gameplay:movement]
start_scene: lobby
log_level: debug
`
	c, err := config.LoadYAML(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, 60, c.Engine.TickRate)
	assert.Equal(t, 500, c.Engine.MaxEntities)
	assert.Equal(t, ":9090", c.Gateway.Addr)
	assert.Equal(t, "lobby", c.StartScene)
	assert.Equal(t, "debug", c.LogLevel)
	// untouched fields keep their defaults
	assert.Equal(t, 100*time.Millisecond, c.Engine.MinActionInterval)
	assert.True(t, c.Gameplay.Enabled)
}

func TestLoadJSON(t *testing.T) {
	src := `{"engine": {"tick_rate": 30, "max_entities": 100}, "gateway": {"addr": ":7000"}}`
	c, err := config.LoadJSON(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 30, c.Engine.TickRate)
	assert.Equal(t, ":7000", c.Gateway.Addr)
}

func TestLoadFileDispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "server.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("engine:\n  tick_rate: 45\n  max_entities: 10\n"), 0o644))
	c, err := config.LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 45, c.Engine.TickRate)

	jsonPath := filepath.Join(dir, "server.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"engine": {"tick_rate": 15, "max_entities": 10}}`), 0o644))
	c, err = config.LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 15, c.Engine.TickRate)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero tick rate", func(c *config.Config) { c.Engine.TickRate = 0 }},
		{"zero entity cap", func(c *config.Config) { c.Engine.MaxEntities = 0 }},
		{"missing gateway addr", func(c *config.Config) { c.Gateway.Addr = "" }},
		{"persist without path", func(c *config.Config) {
			c.Persist.Enabled = true
			c.Persist.Path = ""
		}},
		{"persist without interval", func(c *config.Config) {
			c.Persist.Enabled = true
			c.Persist.Interval = 0
		}},
		{"duplicate scene ids", func(c *config.Config) {
			c.Scenes = []config.Scene{{ID: "a"}, {ID: "a"}}
		}},
		{"unknown start scene", func(c *config.Config) { c.StartScene = "nowhere" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := config.Default()
			tc.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

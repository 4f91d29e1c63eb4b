package persist_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simforge/simforge/internal/core/engine"
	"github.com/simforge/simforge/internal/core/entity"
	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/internal/persist"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	e := engine.New(engine.Config{TickRate: 1, Logger: log.NewNop()})
	t.Cleanup(e.Close)

	player, err := e.CreateEntity(entity.KindPlayer, mgl64.Vec3{1, 2, 3})
	require.NoError(t, err)
	_, err = e.CreateEntity(entity.KindEnemy, mgl64.Vec3{4, 5, 6})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "world.json")
	saver := persist.NewSaver(e, path, time.Minute, log.NewNop())
	require.NoError(t, saver.Save())

	file, err := persist.Load(path)
	require.NoError(t, err)
	require.Len(t, file.Entities, 2)

	var found bool
	for _, v := range file.Entities {
		if v.ID == string(player.ID) {
			found = true
			assert.Equal(t, string(entity.KindPlayer), v.Kind)
			assert.Equal(t, [3]float64{1, 2, 3}, v.Position)
			require.NotNil(t, v.Health)
			assert.Equal(t, float64(100), *v.Health)
		}
	}
	assert.True(t, found, "player missing from snapshot")
}

func TestSaveReplacesAtomically(t *testing.T) {
	e := engine.New(engine.Config{TickRate: 1, Logger: log.NewNop()})
	t.Cleanup(e.Close)

	path := filepath.Join(t.TempDir(), "world.json")
	saver := persist.NewSaver(e, path, time.Minute, log.NewNop())

	require.NoError(t, saver.Save())
	first, err := persist.Load(path)
	require.NoError(t, err)

	_, err = e.CreateEntity(entity.KindItem, mgl64.Vec3{})
	require.NoError(t, err)
	require.NoError(t, saver.Save())

	second, err := persist.Load(path)
	require.NoError(t, err)
	assert.Len(t, first.Entities, 0)
	assert.Len(t, second.Entities, 1)
}

func TestStopWritesFinalSnapshot(t *testing.T) {
	e := engine.New(engine.Config{TickRate: 1, Logger: log.NewNop()})
	t.Cleanup(e.Close)

	path := filepath.Join(t.TempDir(), "world.json")
	saver := persist.NewSaver(e, path, time.Hour, log.NewNop())
	require.NoError(t, saver.Start())
	require.Error(t, saver.Start(), "second start should be refused")

	_, err := e.CreateEntity(entity.KindItem, mgl64.Vec3{})
	require.NoError(t, err)
	saver.Stop()

	file, err := persist.Load(path)
	require.NoError(t, err)
	assert.Len(t, file.Entities, 1)
}

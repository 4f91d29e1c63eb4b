package client_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simforge/simforge/internal/core/engine"
	"github.com/simforge/simforge/internal/core/gameplay"
	"github.com/simforge/simforge/internal/core/observability/log"
	"github.com/simforge/simforge/internal/server"
	"github.com/simforge/simforge/sdk/go/client"
)

func startGateway(t *testing.T) string {
	t.Helper()
	e := engine.New(engine.Config{
		TickRate:          1,
		MinActionInterval: time.Nanosecond,
		Logger:            log.NewNop(),
	})
	require.NoError(t, e.InstallPlugin(gameplay.Plugin(gameplay.DefaultTunables())))
	t.Cleanup(e.Close)

	srv := server.NewServer(e, server.Config{Logger: log.NewNop()})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestClientValidatesConfig(t *testing.T) {
	_, err := client.New(client.Config{})
	assert.ErrorIs(t, err, client.ErrInvalidConfig)
}

func TestClientConnectAndDo(t *testing.T) {
	addr := startGateway(t)

	c, err := client.New(client.Config{ServerAddr: addr, UserID: "alice"})
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	assert.NotEmpty(t, c.PlayerID())
	assert.ErrorIs(t, c.Connect(context.Background()), client.ErrAlreadyConnected)

	res, err := c.Do(context.Background(), gameplay.ActionMove, map[string]any{
		"direction": "forward",
		"distance":  float64(2),
	})
	require.NoError(t, err)
	assert.True(t, res.Success, res.Message)
	assert.Equal(t, "ok", res.Code)

	res, err = c.Do(context.Background(), "no-such-action", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "unknown_action", res.Code)
}

func TestClientEnqueue(t *testing.T) {
	addr := startGateway(t)

	c, err := client.New(client.Config{ServerAddr: addr, UserID: "bob"})
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Enqueue(context.Background(), gameplay.ActionMove, map[string]any{
		"direction": "forward",
	}))
}

func TestClientDoAfterClose(t *testing.T) {
	addr := startGateway(t)

	c, err := client.New(client.Config{ServerAddr: addr, UserID: "carol"})
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Close())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && c.IsConnected() {
		time.Sleep(10 * time.Millisecond)
	}
	_, err = c.Do(context.Background(), gameplay.ActionMove, nil)
	assert.Error(t, err)
}

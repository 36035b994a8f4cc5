// SPDX-License-Identifier: GPL-2.0-or-later

package host

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"netquake/client"
	"netquake/commandline"
	"netquake/config"
	"netquake/conlog"
	"netquake/cvar"
	"netquake/math/vec"
	"netquake/net"
	"netquake/protocol"
	"netquake/qtime"
	"netquake/sim"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frame = 100 * time.Millisecond

type testHost struct {
	*Host
	clock *qtime.Manual
	out   *strings.Builder
}

func testEnv(t *testing.T) Environment {
	return Environment{
		BaseDir:         "/quake",
		SaveDir:         t.TempDir(),
		MaxClients:      1,
		MaxClientsLimit: 4,
		Protocol:        protocol.FitzQuake,
		Net:             net.DefaultConfig(),
		SimLevels: map[string]sim.Level{
			"dm1": {Entities: []sim.Entity{{ClassName: "item_shells", Origin: vec.Vec3{200, 0, 0}}}},
		},
	}
}

func newTestHost(t *testing.T, env Environment) *testHost {
	t.Helper()
	out := &strings.Builder{}
	conlog.SetPrintf(func(format string, v ...any) {
		fmt.Fprintf(out, format, v...)
	})
	t.Cleanup(func() { conlog.SetPrintf(nil) })

	clock := &qtime.Manual{}
	h, err := New(env, clock)
	require.NoError(t, err)
	t.Cleanup(h.Shutdown)
	return &testHost{Host: h, clock: clock, out: out}
}

func (h *testHost) run(t *testing.T, frames int) {
	t.Helper()
	for i := 0; i < frames; i++ {
		h.clock.Advance(frame)
		require.True(t, h.Frame())
	}
}

func TestMapConnectsLocalClient(t *testing.T) {
	h := newTestHost(t, testEnv(t))
	h.AddText("map dm1\n")
	h.run(t, 12)

	require.True(t, h.Server().Active())
	assert.Equal(t, "dm1", h.Server().Name())
	c := h.Client()
	assert.Equal(t, client.Connected, c.State())
	assert.Equal(t, client.SignonStages, c.Signon())
	assert.Equal(t, "dm1", c.LevelName())
	assert.True(t, h.Server().Client(0).Spawned())
}

func TestChangeLevelKeepsClient(t *testing.T) {
	h := newTestHost(t, testEnv(t))
	h.AddText("map dm1\n")
	h.run(t, 12)

	h.AddText("changelevel e1m2\n")
	h.run(t, 12)
	assert.Equal(t, "e1m2", h.Server().Name())
	assert.Equal(t, "e1m2", h.Client().LevelName())
	assert.Equal(t, client.SignonStages, h.Client().Signon())
}

func TestDisconnect(t *testing.T) {
	h := newTestHost(t, testEnv(t))
	h.AddText("map dm1\n")
	h.run(t, 12)

	h.AddText("disconnect\n")
	h.run(t, 1)
	assert.False(t, h.Server().Active())
	assert.Equal(t, client.Disconnected, h.Client().State())
}

func TestFrameRespectsMaxFPS(t *testing.T) {
	h := newTestHost(t, testEnv(t))
	assert.False(t, h.Frame())
	h.clock.Advance(time.Millisecond)
	assert.False(t, h.Frame())
	h.clock.Advance(frame)
	assert.True(t, h.Frame())

	require.NoError(t, h.Cvars().Set("host_framerate", "0.05"))
	h.clock.Advance(frame)
	assert.True(t, h.Frame())
	assert.InDelta(t, 0.05, h.time.FrameTime(), 1e-9)
}

func TestConsoleInput(t *testing.T) {
	h := newTestHost(t, testEnv(t))
	lines := make(chan string, 2)
	lines <- "host_maxfps 100"
	lines <- "alias go \"host_timescale 2\""
	close(lines)
	h.SetConsole(lines)
	h.run(t, 1)

	cv, ok := h.Cvars().Get("host_maxfps")
	require.True(t, ok)
	assert.Equal(t, 100, cv.Int())

	h.AddText("go\n")
	h.run(t, 1)
	cv, _ = h.Cvars().Get("host_timescale")
	assert.Equal(t, float32(2), cv.Float32())
}

func TestReadConsole(t *testing.T) {
	var got []string
	for l := range ReadConsole(strings.NewReader("status\nmap e1m1\n")) {
		got = append(got, l)
	}
	assert.Equal(t, []string{"status", "map e1m1"}, got)
}

func TestPath(t *testing.T) {
	env := testEnv(t)
	env.Game = "rogue"
	h := newTestHost(t, env)
	h.AddText("path\n")
	h.run(t, 1)
	assert.Contains(t, h.out.String(), "Current search path:\n/quake/rogue\n/quake/id1\n")
}

func TestQuitStopsRun(t *testing.T) {
	h := newTestHost(t, testEnv(t))
	h.clock.Advance(time.Second)
	h.AddText("quit\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Run(ctx))
	assert.NoError(t, ctx.Err(), "returned because of quit")
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newTestHost(t, testEnv(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, h.Run(ctx))
}

func TestDedicatedHasNoClient(t *testing.T) {
	env := testEnv(t)
	env.Dedicated = true
	env.MaxClients = 4
	env.Net.Port = 0
	env.Net.BindAddress = "127.0.0.1"
	h := newTestHost(t, env)
	assert.Nil(t, h.Client())
	require.NoError(t, h.Start())
	assert.True(t, h.Net().Listening())

	// connect is a client command
	h.AddText("connect local\n")
	h.run(t, 1)
	assert.Zero(t, h.Net().ActiveSockets())
}

func TestStartupCvars(t *testing.T) {
	env := testEnv(t)
	env.HostName = "frag fest"
	env.Cvars = map[string]string{"sv_gravity": "600"}
	env.Developer = true
	h := newTestHost(t, env)
	t.Cleanup(func() { conlog.SetDeveloper(false) })

	cv, _ := h.Cvars().Get("hostname")
	assert.Equal(t, "frag fest", cv.String())
	assert.Equal(t, float32(600), h.Server().Gravity())

	env.Cvars = map[string]string{"no_such_cvar": "1"}
	_, err := New(env, &qtime.Manual{})
	assert.True(t, errors.Is(err, cvar.ErrNotFound))
}

func TestNewEnvironment(t *testing.T) {
	c, err := config.Load()
	require.NoError(t, err)
	dir := t.TempDir()

	env, err := NewEnvironment(c, &commandline.Flags{Port: 27001, Listen: 4, Game: "hipnotic", BaseDir: dir})
	require.NoError(t, err)
	assert.Equal(t, 27001, env.Net.Port)
	assert.Equal(t, 4, env.MaxClients)
	assert.Equal(t, 4, env.MaxClientsLimit)
	assert.False(t, env.Dedicated)
	assert.Equal(t, "start", env.Map)
	assert.Equal(t, protocol.FitzQuake, env.Protocol)
	assert.Equal(t, filepath.Join(dir, "hipnotic"), env.SaveDir)
	assert.Equal(t, []string{filepath.Join(dir, "hipnotic"), filepath.Join(dir, "id1")}, env.SearchPaths())
	assert.Contains(t, env.SimLevels, "start")

	c.Server.MaxPlayers = 6
	env, err = NewEnvironment(c, &commandline.Flags{BaseDir: dir, Map: "e1m1", Protocol: protocol.NetQuake})
	require.NoError(t, err)
	assert.Equal(t, 6, env.MaxClients)
	assert.Equal(t, 6, env.MaxClientsLimit)
	assert.Equal(t, "e1m1", env.Map)
	assert.Equal(t, protocol.NetQuake, env.Protocol)
	assert.Equal(t, filepath.Join(dir, "id1"), env.SaveDir)

	_, err = NewEnvironment(c, &commandline.Flags{BaseDir: dir, Protocol: 16})
	assert.Error(t, err)
}

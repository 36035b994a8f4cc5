// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"netquake/math/vec"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestDefault(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 26000, c.Net.Port)
	assert.Equal(t, 300*time.Second, c.Net.MessageTimeout)
	assert.Equal(t, "start", c.Server.Map)
	assert.Equal(t, 666, c.Server.Protocol)
	require.Contains(t, c.Game.Levels, "start")
	assert.Equal(t, "info_player_start", c.Game.Levels["start"].Entities[0].ClassName)
}

func TestOverride(t *testing.T) {
	first := writeFile(t, "first.yaml", `
server:
  hostname: "Hello, World!"
net:
  port: 27000
  messageTimeout: 30s
`)
	second := writeFile(t, "second.yaml", `
server:
  maxplayers: 8
game:
  levels:
    dm1:
      submodels: 3
      message: Place of Two Deaths
      entities:
        - classname: info_player_deathmatch
          origin: [64, 0, 24]
`)
	c, err := Load(first, second)
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!", c.Server.HostName)
	assert.Equal(t, 8, c.Server.MaxPlayers)
	assert.Equal(t, 27000, c.Net.Port)
	assert.Equal(t, 30*time.Second, c.Net.MessageTimeout)
	// untouched defaults remain
	assert.Equal(t, 20, c.Net.ControlBurst)
	assert.Contains(t, c.Game.Levels, "start")

	sl := c.SimLevels()["dm1"]
	require.Len(t, sl.Entities, 1)
	assert.Equal(t, vec.Vec3{64, 0, 24}, sl.Entities[0].Origin)

	l, err := c.Levels().Level("dm1")
	require.NoError(t, err)
	assert.Equal(t, 3, l.SubModels)
	assert.Equal(t, "Place of Two Deaths", l.Message)

	l, err = c.Levels().Level("e1m1")
	require.NoError(t, err)
	assert.Equal(t, "e1m1", l.Name)
	assert.Zero(t, l.SubModels)

	_, err = c.Levels().Level("../e1m1")
	assert.Error(t, err)
}

func TestInvalid(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
	}{
		{"port", "net:\n  port: 70000\n"},
		{"maxplayers", "server:\n  maxplayers: 17\n"},
		{"protocol", "server:\n  protocol: 16\n"},
		{"classname", "game:\n  levels:\n    dm1:\n      entities:\n        - origin: [0, 0, 0]\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "c.yaml", tc.content))
			assert.True(t, errors.Is(err, ErrInvalid), "%v", err)
		})
	}
}

func TestUnknownField(t *testing.T) {
	_, err := Load(writeFile(t, "c.yaml", "server:\n  colour: red\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEmptyFile(t *testing.T) {
	c, err := Load(writeFile(t, "c.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, 26000, c.Net.Port)
}

// SPDX-License-Identifier: GPL-2.0-or-later

package commandline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	f, err := Parse([]string{"--port", "27500", "--ip=127.0.0.1", "--dedicated", "12", "--game", "rogue", "--map", "e1m1", "--debug"})
	require.NoError(t, err)
	assert.Equal(t, 27500, f.Port)
	assert.Equal(t, "127.0.0.1", f.IP)
	assert.Equal(t, "rogue", f.Game)
	assert.Equal(t, "e1m1", f.Map)
	assert.True(t, f.Debug)
	assert.True(t, f.IsDedicated())
	n, limit := f.MaxClients()
	assert.Equal(t, 12, n)
	assert.Equal(t, 12, limit)
}

func TestMaxClients(t *testing.T) {
	tests := []struct {
		f     Flags
		n     int
		limit int
	}{
		{Flags{}, 1, 4},
		{Flags{Listen: 2}, 2, 4},
		{Flags{Listen: 6}, 6, 6},
		{Flags{Dedicated: 20}, 16, 16},
	}
	for _, tc := range tests {
		n, limit := tc.f.MaxClients()
		if n != tc.n || limit != tc.limit {
			t.Errorf("%+v: MaxClients() = %v, %v, want %v, %v", tc.f, n, limit, tc.n, tc.limit)
		}
	}
}

func TestConflict(t *testing.T) {
	_, err := Parse([]string{"--dedicated", "4", "--listen", "4"})
	assert.True(t, errors.Is(err, ErrConflict))

	_, err = Parse([]string{"--port", "-1"})
	assert.Error(t, err)

	_, err = Parse([]string{"--nosuchflag"})
	assert.Error(t, err)
}

func TestConfigFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	require.NoError(t, os.WriteFile(a, nil, 0644))
	require.NoError(t, os.WriteFile(b, nil, 0644))

	f, err := Parse([]string{"--config", a + "," + b})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, f.Config)

	_, err = Parse([]string{"--config", filepath.Join(dir, "missing.yaml")})
	assert.Error(t, err)
}

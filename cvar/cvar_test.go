// SPDX-License-Identifier: GPL-2.0-or-later

package cvar

import (
	"fmt"
	"testing"

	"netquake/cbuf"
	"netquake/cmd"
	"netquake/conlog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		kind Kind
		in   string
		want string
		err  bool
	}{
		{Number, "1.5", "1.5", false},
		{Number, " 20 ", "20", false},
		{Number, "abc", "", true},
		{Number, "1 2", "", true},
		{Vec3, "1 2 3", "1 2 3", false},
		{Vec3, "1 2", "", true},
		{Vec2, "0.25 4", "0.25 4", false},
		{Vec4, "1 2 3 4", "1 2 3 4", false},
		{Bool, "on", "1", false},
		{Bool, "0", "0", false},
		{Bool, "2", "1", false},
		{Bool, "maybe", "", true},
		{String, "  hello world ", "hello world", false},
		{Color, "2 0.5 -1", "1 0.5 0", false},
		{Color, "1", "", true},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("%s/%s", tc.kind, tc.in), func(t *testing.T) {
			v, err := Parse(tc.kind, tc.in)
			if tc.err {
				assert.ErrorIs(t, err, ErrBadValue)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.kind, v.Kind())
			assert.Equal(t, tc.want, v.String())
		})
	}
}

func TestColorDefaultsAlpha(t *testing.T) {
	v, err := Parse(Color, "0.1 0.2 0.3")
	require.NoError(t, err)
	assert.Equal(t, float32(1), v.Vec()[3])
}

func TestCallbackOnChange(t *testing.T) {
	r := NewRegistry()
	cv := r.MustCreate("hostname", String, "UNNAMED", SERVERINFO)
	calls := 0
	cv.SetCallback(func(*Cvar) { calls++ })
	require.NoError(t, cv.SetByString("quake"))
	require.NoError(t, cv.SetByString("quake"))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "quake", cv.String())
	assert.True(t, cv.ServerInfo())
}

func TestKindIsFixed(t *testing.T) {
	r := NewRegistry()
	cv := r.MustCreate("maxplayers", Number, "4", NONE)
	assert.ErrorIs(t, cv.Set(StringValue("x")), ErrBadValue)
	assert.ErrorIs(t, cv.SetByString("x"), ErrBadValue)
	assert.Equal(t, 4, cv.Int())
}

func TestReadOnly(t *testing.T) {
	r := NewRegistry()
	cv := r.MustCreate("version", String, "1.0", ROM)
	assert.ErrorIs(t, cv.SetByString("2.0"), ErrReadOnly)
	assert.NoError(t, cv.Reset())
	assert.Equal(t, "1.0", cv.String())
}

func TestCreateTwice(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create("a", NumberValue(1), NONE)
	require.NoError(t, err)
	_, err = r.Create("a", NumberValue(1), NONE)
	assert.ErrorIs(t, err, ErrDefined)
	assert.ErrorIs(t, r.Set("b", "1"), ErrNotFound)
}

func setup(t *testing.T) (*Registry, *cbuf.CommandBuffer, *[]string) {
	t.Helper()
	var out []string
	sink := func(format string, v ...any) { out = append(out, fmt.Sprintf(format, v...)) }
	conlog.SetPrintf(sink)
	conlog.SetSafePrintf(sink)
	t.Cleanup(func() {
		conlog.SetPrintf(nil)
		conlog.SetSafePrintf(nil)
	})
	r := NewRegistry()
	cmds := cmd.New()
	require.NoError(t, r.Register(cmds))
	cb := cbuf.New(cmds.Execute(), r.Execute())
	return r, cb, &out
}

func TestConsoleCommands(t *testing.T) {
	r, cb, out := setup(t)
	sv := r.MustCreate("sv_gravity", Number, "800", NOTIFY)
	fly := r.MustCreate("fly", Bool, "0", ARCHIVE)

	cb.AddText("sv_gravity 100; toggle fly; inc sv_gravity 5\n")
	cb.Execute()
	assert.Equal(t, float32(105), sv.Float32())
	assert.True(t, fly.Bool())

	cb.AddText("reset sv_gravity\nsv_gravity\n")
	cb.Execute()
	assert.Equal(t, "800", sv.String())
	assert.Equal(t, []string{"\"sv_gravity\" is \"800\"\n"}, *out)
}

func TestSetCreatesUserCvar(t *testing.T) {
	r, cb, out := setup(t)
	cb.AddText("set foo \"bar baz\"\nset cvarlist 1\nseta keep 1\n")
	cb.Execute()
	cv, ok := r.Get("foo")
	require.True(t, ok)
	assert.Equal(t, "bar baz", cv.String())
	assert.Equal(t, USERDEFINED, cv.Flags()&USERDEFINED)
	assert.Equal(t, []string{"conflict with command\n"}, *out)
	assert.Equal(t, "seta keep \"1\"\n", r.Archived())
}

func TestCycle(t *testing.T) {
	r, cb, _ := setup(t)
	cv := r.MustCreate("skill", Number, "1", NONE)
	cb.AddText("cycle skill 0 1 2\n")
	cb.Execute()
	assert.Equal(t, "2", cv.String())
	cb.AddText("cycle skill 0 1 2\n")
	cb.Execute()
	assert.Equal(t, "0", cv.String())
	cb.AddText("skill 7; cycle skill 0 1 2\n")
	cb.Execute()
	assert.Equal(t, "0", cv.String())
}

func TestCvarList(t *testing.T) {
	r, cb, out := setup(t)
	r.MustCreate("b", Number, "1", ARCHIVE|NOTIFY)
	r.MustCreate("a", String, "x", NONE)
	r.MustCreate("ab", String, "y", NONE)
	cb.AddText("cvarlist\n")
	cb.Execute()
	assert.Equal(t, []string{
		"   a \"x\"\n",
		"   ab \"y\"\n",
		"*s b \"1\"\n",
		"3 cvars\n",
	}, *out)
	*out = nil
	cb.AddText("cvarlist a\n")
	cb.Execute()
	assert.Equal(t, "2 cvars beginning with \"a\"\n", (*out)[2])
}

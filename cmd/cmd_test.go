// SPDX-License-Identifier: GPL-2.0-or-later

package cmd

import (
	"fmt"
	"testing"

	"netquake/cbuf"
	"netquake/conlog"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddTwice(t *testing.T) {
	c := New()
	require.NoError(t, c.Add("Foo", func(cbuf.Arguments) error { return nil }))
	assert.ErrorIs(t, c.Add("foo", func(cbuf.Arguments) error { return nil }), ErrDefined)
	assert.True(t, c.Exists("FOO"))
	assert.Equal(t, []string{"cmdlist", "foo"}, c.List())
}

func TestExecute(t *testing.T) {
	c := New()
	var got string
	c.Add("echo", func(a cbuf.Arguments) error {
		got = a.ArgumentString()
		return nil
	})
	c.Add("fail", func(a cbuf.Arguments) error {
		return errors.New("boom")
	})
	ex := c.Execute()

	ok, err := ex(nil, cbuf.Parse("ECHO hello there"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello there", got)

	ok, err = ex(nil, cbuf.Parse("unknown"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = ex(nil, cbuf.Parse("fail"))
	assert.EqualError(t, err, "fail: boom")
}

func TestCmdList(t *testing.T) {
	var out string
	conlog.SetSafePrintf(func(f string, a ...any) { out += fmt.Sprintf(f, a...) })
	defer conlog.SetSafePrintf(nil)

	c := New()
	c.Add("map", func(cbuf.Arguments) error { return nil })
	c.Add("maxplayers", func(cbuf.Arguments) error { return nil })
	c.Add("kick", func(cbuf.Arguments) error { return nil })
	c.Execute()(nil, cbuf.Parse("cmdlist ma"))
	assert.Equal(t, "  map\n  maxplayers\n2 commands beginning with \"ma\"\n", out)
}

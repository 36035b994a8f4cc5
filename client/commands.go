// SPDX-License-Identifier: GPL-2.0-or-later

package client

import (
	"fmt"

	"netquake/cbuf"
	"netquake/cmd"
	"netquake/conlog"
	clc "netquake/protocol/client"
)

// Register adds the client console commands to c.
func (c *Client) Register(cmds *cmd.Commands) error {
	forward := func(name string) cmd.QFunc {
		return func(a cbuf.Arguments) error {
			c.forwardToServer(name, a)
			return nil
		}
	}
	for _, entry := range []struct {
		name string
		f    cmd.QFunc
	}{
		{"cmd", c.executeOnServer},
		{"name", c.nameCmd},
		{"color", c.colorCmd},
		{"say", forward("say")},
		{"say_team", forward("say_team")},
		{"kill", forward("kill")},
		{"ping", forward("ping")},
	} {
		if err := cmds.Add(entry.name, entry.f); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) executeOnServer(a cbuf.Arguments) error {
	if c.state != Connected {
		conlog.Printf("Can't \"cmd\", not connected\n")
		return nil
	}
	if s := a.ArgumentString(); s != "" {
		c.out = append(c.out, clc.CmdString{Text: s})
	}
	return nil
}

func (c *Client) forwardToServer(name string, a cbuf.Arguments) {
	if c.state != Connected {
		conlog.Printf("Can't \"%s\", not connected\n", name)
		return
	}
	if s := a.ArgumentString(); s != "" {
		c.out = append(c.out, clc.CmdString{Text: name + " " + s})
	} else {
		c.out = append(c.out, clc.CmdString{Text: name})
	}
}

func (c *Client) nameCmd(a cbuf.Arguments) error {
	if len(a.Args()) < 2 {
		conlog.Printf("\"name\" is \"%s\"\n", c.name.String())
		return nil
	}
	n := a.ArgumentString()
	if len(n) > 15 {
		n = n[:15]
	}
	if n == c.name.String() {
		return nil
	}
	if err := c.name.SetByString(n); err != nil {
		return err
	}
	if c.state == Connected {
		c.out = append(c.out, clc.CmdString{Text: fmt.Sprintf("name \"%s\"", n)})
	}
	return nil
}

func (c *Client) colorCmd(a cbuf.Arguments) error {
	args := a.Args()[1:]
	if len(args) == 0 {
		v := c.color.Int()
		conlog.Printf("\"color\" is \"%d %d\"\n", v>>4, v&0x0f)
		conlog.Printf("color <0-13> [0-13]\n")
		return nil
	}
	top := args[0].Int()
	bottom := top
	if len(args) > 1 {
		bottom = args[1].Int()
	}
	top = min(max(top, 0), 13)
	bottom = min(max(bottom, 0), 13)
	if err := c.color.SetValue(float32(top<<4 | bottom)); err != nil {
		return err
	}
	if c.state == Connected {
		c.out = append(c.out, clc.CmdString{Text: fmt.Sprintf("color %d %d", top, bottom)})
	}
	return nil
}

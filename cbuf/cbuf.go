// SPDX-License-Identifier: GPL-2.0-or-later

// Package cbuf queues console text and executes it line by line through a
// chain of executors.
package cbuf

import (
	"strings"

	"netquake/conlog"
)

// maxText matches the size of the original fixed command buffer.
const maxText = 8192

type CommandBuffer struct {
	buf string
	// wait delays the following commands by one frame
	wait      bool
	executors executors
}

func New(e ...Efunc) *CommandBuffer {
	return &CommandBuffer{executors: e}
}

func (c *CommandBuffer) SetCommandExecutors(e []Efunc) {
	c.executors = e
}

func (c *CommandBuffer) AddText(text string) {
	if len(c.buf)+len(text) > maxText {
		conlog.Printf("Cbuf_AddText: overflow\n")
		return
	}
	c.buf += text
}

// InsertText adds text to be executed before the rest of the buffer.
func (c *CommandBuffer) InsertText(text string) {
	c.buf = text + "\n" + c.buf
}

func (c *CommandBuffer) Wait() {
	c.wait = true
}

func (c *CommandBuffer) Empty() bool {
	return len(c.buf) == 0
}

// nextLine removes the next command from the buffer. Commands end at a
// newline or at a ';' outside of quotes.
func (c *CommandBuffer) nextLine() string {
	quote := false
	i := 0
LineLoop:
	for ; i < len(c.buf); i++ {
		switch c.buf[i] {
		case '"':
			quote = !quote
		case ';':
			if !quote {
				break LineLoop
			}
		case '\n':
			break LineLoop
		}
	}
	line := c.buf[:i]
	if i < len(c.buf) {
		i++
	}
	c.buf = c.buf[i:]
	return line
}

// Execute runs buffered commands until the buffer is empty or a wait is hit.
func (c *CommandBuffer) Execute() {
	for len(c.buf) != 0 {
		line := c.nextLine()
		if err := c.ExecuteText(line); err != nil {
			conlog.Printf("%v\n", err)
		}
		if c.wait {
			// wait for the next frame to continue executing
			c.wait = false
			return
		}
	}
}

// ExecuteText executes a single line right away.
func (c *CommandBuffer) ExecuteText(line string) error {
	a := Parse(line)
	if args := a.Args(); len(args) == 1 && strings.ToLower(args[0].String()) == "wait" {
		c.wait = true
		return nil
	}
	return c.executors.execute(c, a)
}

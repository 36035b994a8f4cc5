// SPDX-License-Identifier: GPL-2.0-or-later

package cbuf

import (
	"strconv"
	"strings"
	"unicode"
)

type QArg struct {
	a string
}

func NewQArg(s string) QArg {
	return QArg{s}
}

func (a QArg) String() string {
	return a.a
}

func (a QArg) Int() int {
	r, err := strconv.ParseInt(a.a, 10, 0)
	if err != nil {
		return int(a.Float64())
	}
	return int(r)
}

func (a QArg) Float32() float32 {
	r, err := strconv.ParseFloat(a.a, 32)
	if err != nil {
		return 0
	}
	return float32(r)
}

func (a QArg) Float64() float64 {
	r, err := strconv.ParseFloat(a.a, 64)
	if err != nil {
		return 0
	}
	return r
}

func (a QArg) Bool() bool {
	switch a.a {
	case "1", "t", "T", "true", "TRUE", "True", "On", "ON", "on":
		return true
	default:
		return false
	}
}

type Arguments struct {
	// each arg on its own, args[0] is the command
	args []QArg
	// the whole trimmed line
	full string
}

func (c *Arguments) Argv(i int) QArg {
	if i < 0 || i >= len(c.args) {
		return QArg{""}
	}
	return c.args[i]
}

func (c *Arguments) Full() string {
	return c.full
}

func (c *Arguments) Args() []QArg {
	return c.args
}

// ArgumentString returns the line without the command name and without
// the quotes of a fully quoted remainder.
func (c *Arguments) ArgumentString() string {
	if len(c.args) < 2 {
		return ""
	}
	r := strings.TrimPrefix(c.full, c.args[0].String())
	r = strings.TrimLeftFunc(r, unicode.IsSpace)
	if len(r) > 1 && r[0] == '"' {
		r = strings.Trim(r, "\"\t\n\v\f\r ")
	}
	return r
}

// Message returns the message send to the target in argument 1.
// Expects the first two arguments to be cmd and target.
func (c *Arguments) Message() string {
	if len(c.args) < 3 {
		return ""
	}
	t := c.args[1].String()
	return c.full[strings.Index(c.full, t)+len(t)+1:]
}

// Parse splits a single command line into arguments. Quoted strings form
// one argument, '//' starts a comment reaching to the end of the line.
func Parse(s string) (args Arguments) {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	args.full = strings.TrimFunc(s, unicode.IsSpace)
	args.args = []QArg{}

	line := args.full
	for {
		line = strings.TrimLeft(line, " \t")
		switch {
		case line == "", strings.HasPrefix(line, "//"):
			return
		case line[0] == '"':
			end := strings.IndexByte(line[1:], '"')
			if end < 0 {
				// unterminated, take the rest
				args.args = append(args.args, QArg{line[1:]})
				return
			}
			args.args = append(args.args, QArg{line[1 : end+1]})
			line = line[end+2:]
		default:
			end := strings.IndexFunc(line, func(r rune) bool { return r <= ' ' })
			if end < 0 {
				end = len(line)
			}
			args.args = append(args.args, QArg{line[:end]})
			line = line[end:]
		}
	}
}

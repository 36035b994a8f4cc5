// SPDX-License-Identifier: GPL-2.0-or-later

package cvar

import (
	"strings"

	"netquake/cbuf"
	"netquake/cmd"
	"netquake/conlog"

	"github.com/rs/zerolog/log"
)

// Register adds the cvar console commands to c.
func (r *Registry) Register(c *cmd.Commands) error {
	r.cmds = c
	for _, entry := range []struct {
		name string
		f    cmd.QFunc
	}{
		{"cvarlist", r.list},
		{"cycle", r.cycle},
		{"inc", r.inc},
		{"reset", r.reset},
		{"resetall", r.resetAll},
		{"resetcfg", r.resetCfg},
		{"set", r.set},
		{"seta", r.seta},
		{"toggle", r.toggle},
	} {
		if err := c.Add(entry.name, entry.f); err != nil {
			return err
		}
	}
	return nil
}

// Execute returns an executor showing a cvar for "name" and setting it
// for "name value".
func (r *Registry) Execute() cbuf.Efunc {
	return func(_ *cbuf.CommandBuffer, a cbuf.Arguments) (bool, error) {
		args := a.Args()
		if len(args) == 0 {
			return false, nil
		}
		cv, ok := r.Get(args[0].String())
		if !ok {
			return false, nil
		}
		if len(args) == 1 {
			conlog.Printf("\"%s\" is \"%s\"\n", cv.Name(), cv.String())
			return true, nil
		}
		r.setFromConsole(cv, joinArgs(args[1:]))
		return true, nil
	}
}

func joinArgs(args []cbuf.QArg) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, " ")
}

func (r *Registry) setFromConsole(cv *Cvar, value string) {
	if err := cv.SetByString(value); err != nil {
		log.Debug().Err(err).Str("cvar", cv.Name()).Msg("set failed")
		conlog.Printf("%v\n", err)
	}
}

func (r *Registry) define(a cbuf.Arguments, usage string, flags Flag) {
	args := a.Args()[1:]
	if len(args) < 2 {
		conlog.Printf("%s <cvar> <value>\n", usage)
		return
	}
	name := args[0].String()
	if r.cmds != nil && r.cmds.Exists(name) {
		conlog.Printf("conflict with command\n")
		return
	}
	value := joinArgs(args[1:])
	if cv, ok := r.Get(name); ok {
		r.setFromConsole(cv, value)
		cv.flags |= flags
		return
	}
	// user defined variables are always strings
	cv, _ := r.Create(name, StringValue(value), USERDEFINED|flags)
	cv.defaultValue = StringValue("")
}

func (r *Registry) set(a cbuf.Arguments) error {
	r.define(a, "set", NONE)
	return nil
}

func (r *Registry) seta(a cbuf.Arguments) error {
	r.define(a, "seta", ARCHIVE)
	return nil
}

func (r *Registry) lookup(name, caller string) (*Cvar, bool) {
	cv, ok := r.Get(name)
	if !ok {
		log.Debug().Str("cvar", name).Msg("cvar not found")
		conlog.Printf("%s: variable %v not found\n", caller, name)
	}
	return cv, ok
}

func (r *Registry) toggle(a cbuf.Arguments) error {
	args := a.Args()[1:]
	if len(args) != 1 {
		conlog.Printf("toggle <cvar> : toggle cvar\n")
		return nil
	}
	if cv, ok := r.lookup(args[0].String(), "toggle"); ok {
		if err := cv.Toggle(); err != nil {
			conlog.Printf("%v\n", err)
		}
	}
	return nil
}

func (r *Registry) inc(a cbuf.Arguments) error {
	args := a.Args()[1:]
	var amount float32
	switch len(args) {
	case 1:
		amount = 1
	case 2:
		amount = args[1].Float32()
	default:
		conlog.Printf("inc <cvar> [amount] : increment cvar\n")
		return nil
	}
	if cv, ok := r.lookup(args[0].String(), "Cvar_SetValue"); ok {
		if err := cv.SetValue(cv.Float32() + amount); err != nil {
			conlog.Printf("%v\n", err)
		}
	}
	return nil
}

func (r *Registry) reset(a cbuf.Arguments) error {
	args := a.Args()[1:]
	if len(args) != 1 {
		conlog.Printf("reset <cvar> : reset cvar to default\n")
		return nil
	}
	if cv, ok := r.lookup(args[0].String(), "Cvar_Reset"); ok {
		_ = cv.Reset()
	}
	return nil
}

func (r *Registry) resetAll(_ cbuf.Arguments) error {
	for _, cv := range r.All() {
		_ = cv.Reset()
	}
	return nil
}

func (r *Registry) resetCfg(_ cbuf.Arguments) error {
	for _, cv := range r.All() {
		if cv.Archive() {
			_ = cv.Reset()
		}
	}
	return nil
}

func (r *Registry) list(a cbuf.Arguments) error {
	args := a.Args()
	prefix := ""
	if len(args) > 1 {
		prefix = args[1].String()
	}
	n := 0
	for _, v := range r.All() {
		if !strings.HasPrefix(v.Name(), prefix) {
			continue
		}
		n++
		archive, notify := " ", " "
		if v.Archive() {
			archive = "*"
		}
		if v.Notify() {
			notify = "s"
		}
		conlog.SafePrintf("%s%s %s \"%s\"\n", archive, notify, v.Name(), v.String())
	}
	if prefix != "" {
		conlog.SafePrintf("%v cvars beginning with \"%s\"\n", n, prefix)
		return nil
	}
	conlog.SafePrintf("%v cvars\n", n)
	return nil
}

func (r *Registry) cycle(a cbuf.Arguments) error {
	args := a.Args()[1:]
	if len(args) < 2 {
		conlog.Printf("cycle <cvar> <value list>: cycle cvar through a list of values\n")
		return nil
	}
	cv, ok := r.lookup(args[0].String(), "Cvar_Set")
	if !ok {
		return nil
	}
	values := args[1:]
	next := 0
	for i, v := range values {
		if v.String() == cv.String() {
			next = (i + 1) % len(values)
			break
		}
	}
	r.setFromConsole(cv, values[next].String())
	return nil
}

// Archived returns the "seta name value" lines of all archived cvars.
func (r *Registry) Archived() string {
	var b strings.Builder
	for _, cv := range r.All() {
		if cv.Archive() {
			b.WriteString("seta ")
			b.WriteString(cv.Name())
			b.WriteString(" \"")
			b.WriteString(cv.String())
			b.WriteString("\"\n")
		}
	}
	return b.String()
}

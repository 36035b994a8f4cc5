// SPDX-License-Identifier: GPL-2.0-or-later

// Package alias implements console command aliases.
package alias

import (
	"sort"
	"strings"

	"netquake/cbuf"
	"netquake/cmd"
	"netquake/conlog"
)

type Aliases struct {
	aliases map[string]string
}

func New() *Aliases {
	return &Aliases{aliases: make(map[string]string)}
}

// Register adds the alias, unalias and unaliasall commands.
func (al *Aliases) Register(c *cmd.Commands) error {
	if err := c.Add("alias", al.alias); err != nil {
		return err
	}
	if err := c.Add("unalias", al.unalias); err != nil {
		return err
	}
	return c.Add("unaliasall", al.unaliasAll)
}

func (al *Aliases) alias(a cbuf.Arguments) error {
	args := a.Args()[1:]
	switch len(args) {
	case 0:
		al.list()
	case 1:
		al.print(args[0].String())
	default:
		// the parts have '"' already removed
		parts := make([]string, 0, len(args)-1)
		for _, p := range args[1:] {
			parts = append(parts, p.String())
		}
		al.aliases[args[0].String()] = strings.TrimSpace(strings.Join(parts, " ")) + "\n"
	}
	return nil
}

func (al *Aliases) list() {
	if len(al.aliases) == 0 {
		conlog.SafePrintf("no alias commands found\n")
		return
	}
	names := make([]string, 0, len(al.aliases))
	for k := range al.aliases {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		// each alias value ends with a '\n'
		conlog.SafePrintf("  %s: %s", k, al.aliases[k])
	}
	conlog.SafePrintf("%v alias command(s)\n", len(al.aliases))
}

func (al *Aliases) print(name string) {
	if v, ok := al.aliases[name]; ok {
		conlog.Printf("  %s: %s", name, v)
	}
}

func (al *Aliases) unalias(a cbuf.Arguments) error {
	args := a.Args()[1:]
	if len(args) != 1 {
		conlog.Printf("unalias <name> : delete alias\n")
		return nil
	}
	name := args[0].String()
	if _, ok := al.aliases[name]; !ok {
		conlog.Printf("No alias named %s\n", name)
		return nil
	}
	delete(al.aliases, name)
	return nil
}

func (al *Aliases) unaliasAll(_ cbuf.Arguments) error {
	al.aliases = make(map[string]string)
	return nil
}

func (al *Aliases) Get(name string) (string, bool) {
	a, ok := al.aliases[name]
	return a, ok
}

// Execute returns an executor expanding aliases into the command buffer.
func (al *Aliases) Execute() cbuf.Efunc {
	return func(cb *cbuf.CommandBuffer, a cbuf.Arguments) (bool, error) {
		args := a.Args()
		if len(args) == 0 {
			return false, nil
		}
		v, ok := al.Get(args[0].String())
		if !ok {
			return false, nil
		}
		cb.InsertText(v)
		return true, nil
	}
}

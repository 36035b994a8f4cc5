// SPDX-License-Identifier: GPL-2.0-or-later

// Package cmd is the registry of named console commands.
package cmd

import (
	"sort"
	"strings"

	"netquake/cbuf"

	"github.com/pkg/errors"
)

var ErrDefined = errors.New("command already defined")

type QFunc func(a cbuf.Arguments) error

type Commands map[string]QFunc

// New returns a registry holding the cmdlist command.
func New() *Commands {
	c := make(Commands)
	c["cmdlist"] = c.printCmdList()
	return &c
}

func (c *Commands) Add(name string, f QFunc) error {
	ln := strings.ToLower(name)
	if _, ok := (*c)[ln]; ok {
		return errors.Wrapf(ErrDefined, "Cmd_AddCommand: %s", ln)
	}
	(*c)[ln] = f
	return nil
}

func (c *Commands) Exists(cmdName string) bool {
	name := strings.ToLower(cmdName)
	_, ok := (*c)[name]
	return ok
}

func (c *Commands) List() []string {
	cmds := make([]string, 0, len(*c))
	for cmd := range *c {
		cmds = append(cmds, cmd)
	}
	sort.Strings(cmds)
	return cmds
}

// Execute returns an executor running registered commands.
func (c *Commands) Execute() cbuf.Efunc {
	return func(_ *cbuf.CommandBuffer, a cbuf.Arguments) (bool, error) {
		n := a.Args()
		if len(n) == 0 {
			return false, nil
		}
		name := strings.ToLower(n[0].String())
		cmd, ok := (*c)[name]
		if !ok {
			return false, nil
		}
		if err := cmd(a); err != nil {
			return true, errors.Wrap(err, name)
		}
		return true, nil
	}
}

func Must(err error) {
	if err != nil {
		panic(err.Error())
	}
}

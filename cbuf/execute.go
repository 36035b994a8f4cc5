// SPDX-License-Identifier: GPL-2.0-or-later

package cbuf

import (
	"netquake/conlog"

	"github.com/rs/zerolog/log"
)

// Efunc reports whether it handled the command.
type Efunc func(*CommandBuffer, Arguments) (bool, error)

type executors []Efunc

func (ex executors) execute(c *CommandBuffer, a Arguments) error {
	args := a.Args()
	if len(args) == 0 {
		return nil // no tokens
	}
	for _, e := range ex {
		if ok, err := e(c, a); err != nil {
			return err
		} else if ok {
			return nil
		}
	}

	name := args[0].String()
	log.Debug().Str("cmd", name).Msg("unknown command")
	conlog.Printf("Unknown command \"%s\"\n", name)
	return nil
}

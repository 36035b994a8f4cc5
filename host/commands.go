// SPDX-License-Identifier: GPL-2.0-or-later

package host

import (
	"netquake/cbuf"
	"netquake/cmd"
	"netquake/conlog"
)

func (h *Host) register() error {
	for name, f := range map[string]cmd.QFunc{
		"connect":    h.connectCmd,
		"disconnect": h.disconnectCmd,
		"reconnect":  h.reconnectCmd,
		"path":       h.pathCmd,
		"quit":       h.quitCmd,
	} {
		if err := h.cmds.Add(name, f); err != nil {
			return err
		}
	}
	return nil
}

// connectCmd connects the local client to a server, a running server
// is shut down unless the target is the local one.
func (h *Host) connectCmd(a cbuf.Arguments) error {
	if h.client == nil {
		return nil
	}
	args := a.Args()
	if len(args) != 2 {
		conlog.Printf("usage: connect <server>\n")
		return nil
	}
	host := args[1].String()
	if host != "local" && host != "localhost" {
		h.server.Shutdown(false)
	}
	if err := h.client.Connect(h.ctx, host); err != nil {
		conlog.Printf("%v\n", err)
	}
	return nil
}

func (h *Host) disconnectCmd(_ cbuf.Arguments) error {
	if h.client != nil {
		h.client.Disconnect()
	}
	h.server.Shutdown(false)
	return nil
}

// reconnectCmd is sent by the server just before a level change.
func (h *Host) reconnectCmd(_ cbuf.Arguments) error {
	if h.client != nil {
		h.client.Reconnect()
	}
	return nil
}

func (h *Host) pathCmd(_ cbuf.Arguments) error {
	conlog.Printf("Current search path:\n")
	for _, p := range h.env.SearchPaths() {
		conlog.Printf("%s\n", p)
	}
	return nil
}

func (h *Host) quitCmd(_ cbuf.Arguments) error {
	h.quit = true
	return nil
}

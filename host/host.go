// SPDX-License-Identifier: GPL-2.0-or-later

// Package host ties the server and the local client to the command
// buffer and runs them from one cooperative main loop.
package host

import (
	"context"
	"time"

	"netquake/alias"
	"netquake/cbuf"
	"netquake/client"
	"netquake/cmd"
	"netquake/conlog"
	"netquake/cvar"
	"netquake/gametime"
	"netquake/net"
	"netquake/qtime"
	"netquake/server"
	"netquake/sim"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Host struct {
	env   Environment
	clock qtime.Clock
	time  *gametime.GameTime

	cvars   *cvar.Registry
	cmds    *cmd.Commands
	aliases *alias.Aliases
	cbuf    *cbuf.CommandBuffer
	console <-chan string

	net    *net.Net
	server *server.Server
	// client is nil on a dedicated server
	client *client.Client

	maxFPS         *cvar.Cvar
	timeScale      *cvar.Cvar
	frameRate      *cvar.Cvar
	ticRate        *cvar.Cvar
	developer      *cvar.Cvar
	messageTimeout *cvar.Cvar

	ctx  context.Context
	quit bool
}

// New sets up networking, the server and, unless dedicated, the local
// client.
func New(env Environment, clock qtime.Clock) (*Host, error) {
	h := &Host{
		env:     env,
		clock:   clock,
		time:    gametime.New(clock),
		cvars:   cvar.NewRegistry(),
		cmds:    cmd.New(),
		aliases: alias.New(),
		ctx:     context.Background(),
	}
	h.cbuf = cbuf.New(h.cmds.Execute(), h.aliases.Execute(), h.cvars.Execute())
	h.registerCvars()

	h.net = net.New(env.Net, clock)
	if err := h.messageTimeout.SetValue(float32(env.Net.MessageTimeout.Seconds())); err != nil {
		return nil, err
	}
	h.server = server.New(h.net, sim.New(env.SimLevels), h.cvars, server.Options{
		MaxClientsLimit: env.MaxClientsLimit,
		Dedicated:       env.Dedicated,
		Protocol:        env.Protocol,
		Levels:          env.Levels,
		SaveDir:         env.SaveDir,
	})
	if err := h.server.SetMaxClients(env.MaxClients); err != nil {
		return nil, err
	}
	h.server.SetHostCommand(h.cbuf.AddText)
	h.net.SetInfoProvider(h.server)
	if !env.Dedicated {
		h.client = client.New(h.net, h.cbuf, h.cvars)
	}

	for _, r := range []interface{ Register(*cmd.Commands) error }{
		h.server, h.cvars, h.aliases,
	} {
		if err := r.Register(h.cmds); err != nil {
			return nil, err
		}
	}
	if h.client != nil {
		if err := h.client.Register(h.cmds); err != nil {
			return nil, err
		}
	}
	if err := h.register(); err != nil {
		return nil, err
	}

	if env.HostName != "" {
		if err := h.cvars.Set("hostname", env.HostName); err != nil {
			return nil, err
		}
	}
	for name, value := range env.Cvars {
		if err := h.cvars.Set(name, value); err != nil {
			return nil, errors.Wrapf(err, "cvar %s", name)
		}
	}
	if env.Developer {
		if err := h.developer.SetValue(1); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Host) registerCvars() {
	r := h.cvars
	h.maxFPS = r.MustCreate("host_maxfps", cvar.Number, "72", cvar.ARCHIVE)
	h.timeScale = r.MustCreate("host_timescale", cvar.Number, "0", cvar.NONE)
	h.frameRate = r.MustCreate("host_framerate", cvar.Number, "0", cvar.NONE)
	h.ticRate = r.MustCreate("sys_ticrate", cvar.Number, "0.05", cvar.NONE)
	h.developer = r.MustCreate("developer", cvar.Bool, "0", cvar.NONE)
	h.developer.SetCallback(func(cv *cvar.Cvar) {
		conlog.SetDeveloper(cv.Bool())
	})
	h.messageTimeout = r.MustCreate("net_messagetimeout", cvar.Number, "300", cvar.NONE)
	h.messageTimeout.SetCallback(func(cv *cvar.Cvar) {
		h.net.SetMessageTimeout(time.Duration(cv.Float32() * float32(time.Second)))
	})
}

func (h *Host) Server() *server.Server             { return h.server }
func (h *Host) Client() *client.Client             { return h.client }
func (h *Host) Cvars() *cvar.Registry              { return h.cvars }
func (h *Host) CommandBuffer() *cbuf.CommandBuffer { return h.cbuf }
func (h *Host) Net() *net.Net                      { return h.net }
func (h *Host) Environment() Environment           { return h.env }

// SetConsole sets where typed console lines come from.
func (h *Host) SetConsole(lines <-chan string) {
	h.console = lines
}

// AddText queues console text.
func (h *Host) AddText(text string) {
	h.cbuf.AddText(text)
}

// Start begins accepting remote clients when more than one player is
// allowed and queues the initial map.
func (h *Host) Start() error {
	if h.env.Dedicated || h.server.MaxClients() > 1 {
		if err := h.net.Listen(true); err != nil {
			return err
		}
		log.Info().Int("port", h.net.Port()).Msg("listening")
	}
	if h.env.Map != "" {
		h.cbuf.AddText("map " + h.env.Map + "\n")
	}
	conlog.Printf("\n========= Quake Initialized =========\n\n")
	return nil
}

func (h *Host) rates() gametime.Rates {
	return gametime.Rates{
		MaxFPS:    float64(h.maxFPS.Float32()),
		TimeScale: float64(h.timeScale.Float32()),
		FrameRate: float64(h.frameRate.Float32()),
	}
}

// readConsole adds typed lines exactly as if they had been typed at the
// console.
func (h *Host) readConsole() {
	for {
		select {
		case s, ok := <-h.console:
			if !ok {
				h.console = nil
				return
			}
			h.cbuf.AddText(s + "\n")
		default:
			return
		}
	}
}

// Frame runs one tick. It reports false when it was skipped because it
// came too early for host_maxfps.
func (h *Host) Frame() bool {
	if !h.time.UpdateTime(h.rates()) {
		return false
	}
	frameTime := h.time.FrameTime()

	h.readConsole()
	h.cbuf.Execute()

	if h.client != nil {
		h.client.SetLocalServer(h.server.Active())
		if err := h.client.SendCmd(); err != nil {
			conlog.Printf("%v\n", err)
		}
	}

	h.server.Frame(time.Duration(frameTime * float64(time.Second)))

	if h.client != nil {
		if err := h.client.ReadFromServer(frameTime); err != nil {
			conlog.Printf("%v\n", err)
		}
	}
	h.time.FrameIncrease()
	return true
}

func (h *Host) wait() time.Duration {
	if h.env.Dedicated {
		return time.Duration(h.ticRate.Float32() * float32(time.Second))
	}
	return time.Millisecond
}

// Run starts the host and runs frames until ctx is done or quit was
// executed.
func (h *Host) Run(ctx context.Context) error {
	h.ctx = ctx
	if err := h.Start(); err != nil {
		return err
	}
	defer h.Shutdown()
	for {
		start := h.clock.Now()
		h.Frame()
		if h.quit {
			return nil
		}
		w := max(h.wait()-(h.clock.Now()-start), 0)
		t := time.NewTimer(w)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// Shutdown disconnects the client and every remote player.
func (h *Host) Shutdown() {
	if h.client != nil {
		h.client.Disconnect()
	}
	h.server.Shutdown(false)
	h.net.Shutdown()
}

// SPDX-License-Identifier: GPL-2.0-or-later

// Package net implements the NetQuake datagram protocol: reliable
// fragmented messages with acknowledgement and unreliable sequenced
// datagrams, over a loopback and a UDP driver.
package net

import (
	"context"
	"slices"
	"time"

	"netquake/qtime"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type Config struct {
	// BindAddress is the local ip the UDP driver binds to, empty for any.
	BindAddress    string
	Port           int
	MessageTimeout time.Duration
	// ControlRate limits control requests handled per remote address.
	ControlRate  rate.Limit
	ControlBurst int
}

func DefaultConfig() Config {
	return Config{
		Port:           DefaultPort,
		MessageTimeout: 300 * time.Second,
		ControlRate:    rate.Limit(10),
		ControlBurst:   20,
	}
}

type ServerInfo struct {
	Address    string
	HostName   string
	LevelName  string
	Players    int
	MaxPlayers int
	Protocol   int
}

type PlayerInfo struct {
	Name        string
	Colors      int
	Frags       int
	ConnectTime time.Duration
	Address     string
}

// InfoProvider answers the informational control requests.
type InfoProvider interface {
	ServerInfo() ServerInfo
	PlayerInfo(slot int) (PlayerInfo, bool)
	// NextRule returns the rule following prev in a stable order, the first
	// one for an empty prev.
	NextRule(prev string) (name, value string, ok bool)
}

// Net owns the drivers and the set of active sockets.
type Net struct {
	cfg   Config
	clock qtime.Clock
	info  InfoProvider

	loop *loopDriver
	udp  *udpDriver

	active         []*Socket
	maxConnections int
	listening      bool
}

func New(cfg Config, clock qtime.Clock) *Net {
	n := &Net{
		cfg:            cfg,
		clock:          clock,
		maxConnections: 1,
	}
	n.loop = newLoopDriver(n)
	n.udp = newUDPDriver(n)
	return n
}

func (n *Net) SetInfoProvider(p InfoProvider) {
	n.info = p
}

// SetMessageTimeout changes the timeout of sockets created from now on.
func (n *Net) SetMessageTimeout(d time.Duration) {
	n.cfg.MessageTimeout = d
}

// SetMaxConnections limits the number of accepted remote connections.
func (n *Net) SetMaxConnections(m int) {
	n.maxConnections = m
}

func (n *Net) Listening() bool {
	return n.listening
}

// Port returns the port the UDP control socket is bound to, 0 if not
// listening.
func (n *Net) Port() int {
	return n.udp.port()
}

// Listen enables or disables accepting remote connections.
func (n *Net) Listen(enable bool) error {
	if enable == n.listening {
		return nil
	}
	if err := n.udp.listen(enable); err != nil {
		return err
	}
	n.listening = enable
	return nil
}

func (n *Net) addSocket(s *Socket) {
	s.onClose = n.removeSocket
	n.active = append(n.active, s)
	log.Debug().Str("id", s.id.String()).Str("driver", s.driver).Str("addr", s.address).Msg("new socket")
}

func (n *Net) removeSocket(s *Socket) {
	n.active = slices.DeleteFunc(n.active, func(o *Socket) bool { return o == s })
}

// ActiveSockets returns the number of sockets not yet closed.
func (n *Net) ActiveSockets() int {
	return len(n.active)
}

func (n *Net) findSocket(driver, address string) *Socket {
	for _, s := range n.active {
		if s.driver == driver && s.address == address {
			return s
		}
	}
	return nil
}

// Connect establishes a connection to host, "local" selects loopback.
func (n *Net) Connect(ctx context.Context, host string) (*Socket, error) {
	if host == "local" || host == "localhost" {
		return n.loop.connect()
	}
	if host == "" {
		return nil, errors.Wrap(ErrUnknownHost, "empty host")
	}
	return n.udp.connect(ctx, host)
}

// CheckNewConnections returns a newly accepted socket or nil. It needs to
// be called from the main loop as it also answers control requests.
func (n *Net) CheckNewConnections() *Socket {
	if s := n.loop.checkNewConnections(); s != nil {
		return s
	}
	if !n.listening {
		return nil
	}
	return n.udp.checkNewConnections()
}

// QueryServerInfo asks a remote server for its info.
func (n *Net) QueryServerInfo(ctx context.Context, host string) (ServerInfo, error) {
	return n.udp.queryServerInfo(ctx, host)
}

// Shutdown closes every socket and stops listening.
func (n *Net) Shutdown() {
	for _, s := range slices.Clone(n.active) {
		s.Close()
	}
	n.active = nil
	if err := n.Listen(false); err != nil {
		log.Warn().Err(err).Msg("stop listening")
	}
}

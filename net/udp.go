// SPDX-License-Identifier: GPL-2.0-or-later

package net

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	connectAttempts = 3
	connectWait     = 2500 * time.Millisecond
	// acceptResendWindow is the age below which a repeated connect request
	// from a known address gets the accept resent instead of a new socket.
	acceptResendWindow = 2 * time.Second
	maxLimiters        = 1024
	packetQueue        = 256
	maxPacket          = 65535
)

type udpTransport struct {
	conn   *net.UDPConn
	remote *net.UDPAddr
	// port is the local port announced in the accept reply.
	port int
}

func (u *udpTransport) writePacket(p []byte) error {
	_, err := u.conn.WriteToUDP(p, u.remote)
	return err
}

func (u *udpTransport) close() error {
	return u.conn.Close()
}

// readPackets forwards every packet from remote until conn is closed.
func readPackets(conn *net.UDPConn, remote *net.UDPAddr, out chan<- []byte) {
	defer close(out)
	buf := make([]byte, maxPacket)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Debug().Err(err).Str("addr", remote.String()).Msg("udp read")
			}
			return
		}
		if !addr.IP.Equal(remote.IP) || addr.Port != remote.Port {
			continue
		}
		p := make([]byte, n)
		copy(p, buf[:n])
		select {
		case out <- p:
		default:
			log.Debug().Str("addr", remote.String()).Msg("inbound queue full, packet dropped")
		}
	}
}

type controlRequest struct {
	data []byte
	addr *net.UDPAddr
}

type udpDriver struct {
	n        *Net
	control  *net.UDPConn
	requests chan controlRequest
}

func newUDPDriver(n *Net) *udpDriver {
	return &udpDriver{n: n}
}

func (u *udpDriver) bindIP() net.IP {
	if u.n.cfg.BindAddress == "" {
		return nil
	}
	return net.ParseIP(u.n.cfg.BindAddress)
}

func (u *udpDriver) port() int {
	if u.control == nil {
		return 0
	}
	return u.control.LocalAddr().(*net.UDPAddr).Port
}

func (u *udpDriver) listen(enable bool) error {
	if !enable {
		if u.control != nil {
			u.control.Close()
			u.control = nil
		}
		return nil
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: u.bindIP(), Port: u.n.cfg.Port})
	if err != nil {
		return errors.Wrapf(err, "listen on port %d", u.n.cfg.Port)
	}
	u.control = conn
	u.requests = make(chan controlRequest, packetQueue)
	go u.readControl(conn, u.requests)
	log.Info().Str("addr", conn.LocalAddr().String()).Msg("UDP listening")
	return nil
}

// readControl queues control requests. Addresses exceeding their request
// rate are ignored.
func (u *udpDriver) readControl(conn *net.UDPConn, out chan<- controlRequest) {
	limiters := make(map[string]*rate.Limiter)
	buf := make([]byte, maxPacket)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Warn().Err(err).Msg("control read")
			}
			return
		}
		if n < NetHeaderSize+1 || buf[0]&0x80 == 0 {
			continue
		}
		key := addr.IP.String()
		l, ok := limiters[key]
		if !ok {
			if len(limiters) >= maxLimiters {
				limiters = make(map[string]*rate.Limiter)
			}
			l = rate.NewLimiter(u.n.cfg.ControlRate, u.n.cfg.ControlBurst)
			limiters[key] = l
		}
		if !l.Allow() {
			continue
		}
		p := make([]byte, n)
		copy(p, buf[:n])
		select {
		case out <- controlRequest{data: p, addr: addr}:
		default:
		}
	}
}

func (u *udpDriver) reply(addr *net.UDPAddr, p []byte, err error) {
	if err != nil {
		log.Debug().Err(err).Msg("build control reply")
		return
	}
	if _, err := u.control.WriteToUDP(p, addr); err != nil {
		log.Debug().Err(err).Str("addr", addr.String()).Msg("control reply")
	}
}

func (u *udpDriver) checkNewConnections() *Socket {
	if u.control == nil {
		return nil
	}
	for {
		select {
		case req := <-u.requests:
			if s := u.handleControl(req); s != nil {
				return s
			}
		default:
			return nil
		}
	}
}

func (u *udpDriver) handleControl(req controlRequest) *Socket {
	r, cmd, err := parseControl(req.data)
	if err != nil {
		return nil
	}
	info := u.n.info
	switch cmd {
	case CCREQ_SERVER_INFO:
		if ok, _ := checkGameName(r); !ok || info == nil {
			return nil
		}
		si := info.ServerInfo()
		si.Address = u.control.LocalAddr().String()
		p, err := serverInfoReply(si)
		u.reply(req.addr, p, err)
	case CCREQ_PLAYER_INFO:
		slot, err := r.ReadByte()
		if err != nil || info == nil {
			return nil
		}
		pi, ok := info.PlayerInfo(int(slot))
		if !ok {
			return nil
		}
		p, err := playerInfoReply(int(slot), pi)
		u.reply(req.addr, p, err)
	case CCREQ_RULE_INFO:
		prev, err := r.ReadString()
		if err != nil || info == nil {
			return nil
		}
		name, value, ok := info.NextRule(prev)
		if !ok {
			name, value = "", ""
		}
		p, err := ruleInfoReply(name, value)
		u.reply(req.addr, p, err)
	case CCREQ_CONNECT:
		return u.handleConnect(r, req.addr)
	}
	return nil
}

func (u *udpDriver) handleConnect(r *QReader, addr *net.UDPAddr) *Socket {
	ok, version := checkGameName(r)
	if !ok {
		return nil
	}
	if version != NetProtocolVersion {
		p, err := rejectReply("Incompatible version.\n")
		u.reply(addr, p, err)
		return nil
	}
	if s := u.n.findSocket("udp", addr.String()); s != nil {
		if u.n.clock.Now()-s.connectTime < acceptResendWindow {
			// the accept got lost, send it again
			p, err := acceptReply(s.conn.(*udpTransport).port)
			u.reply(addr, p, err)
			return nil
		}
		// assume a stale connection, the client has to retry
		log.Info().Str("addr", addr.String()).Msg("closing stale connection")
		s.Close()
		return nil
	}
	if u.remoteSockets() >= u.n.maxConnections {
		p, err := rejectReply("Server is full.\n")
		u.reply(addr, p, err)
		return nil
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: u.bindIP()})
	if err != nil {
		p, err := rejectReply("Server is full.\n")
		u.reply(addr, p, err)
		log.Warn().Err(err).Msg("open client socket")
		return nil
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port
	in := make(chan []byte, packetQueue)
	go readPackets(conn, addr, in)
	s := newSocket("udp", addr.String(), u.n.clock, u.n.cfg.MessageTimeout,
		&udpTransport{conn: conn, remote: addr, port: port}, in)
	u.n.addSocket(s)
	p, err := acceptReply(port)
	u.reply(addr, p, err)
	return s
}

func (u *udpDriver) remoteSockets() int {
	c := 0
	for _, s := range u.n.active {
		if t, ok := s.conn.(*udpTransport); ok && t.port != 0 {
			c++
		}
	}
	return c
}

func (u *udpDriver) resolve(host string) (*net.UDPAddr, error) {
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, strconv.Itoa(u.n.cfg.Port))
	}
	addr, err := net.ResolveUDPAddr("udp", host)
	if err != nil {
		return nil, errors.Wrapf(ErrUnknownHost, "%s: %v", host, err)
	}
	return addr, nil
}

// exchange sends request to addr and waits for a control reply whose
// command is one of want. It retries connectAttempts times.
func exchange(ctx context.Context, conn *net.UDPConn, addr *net.UDPAddr, request []byte, want ...byte) (*QReader, byte, error) {
	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Now()) })
	defer stop()
	buf := make([]byte, maxPacket)
	for attempt := 0; attempt < connectAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		if _, err := conn.WriteToUDP(request, addr); err != nil {
			return nil, 0, err
		}
		deadline := time.Now().Add(connectWait)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		conn.SetReadDeadline(deadline)
		for {
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				var ne net.Error
				if errors.As(err, &ne) && ne.Timeout() {
					break
				}
				return nil, 0, err
			}
			if !from.IP.Equal(addr.IP) {
				continue
			}
			_, cmd, err := parseControl(buf[:n])
			if err != nil {
				continue
			}
			for _, w := range want {
				if cmd == w {
					data := append([]byte(nil), buf[5:n]...)
					return NewQReader(data), cmd, nil
				}
			}
		}
		log.Debug().Int("attempt", attempt+1).Str("addr", addr.String()).Msg("no reply")
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	return nil, 0, errors.Wrap(ErrTimeout, "no response")
}

func (u *udpDriver) connect(ctx context.Context, host string) (*Socket, error) {
	addr, err := u.resolve(host)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: u.bindIP()})
	if err != nil {
		return nil, errors.Wrap(err, "open client socket")
	}
	req, err := connectRequest()
	if err != nil {
		conn.Close()
		return nil, err
	}
	r, cmd, err := exchange(ctx, conn, addr, req, CCREP_ACCEPT, CCREP_REJECT)
	if err != nil {
		conn.Close()
		if errors.Is(err, ErrTimeout) {
			return nil, &ConnectionError{Host: host, Reason: "no response"}
		}
		return nil, err
	}
	if cmd == CCREP_REJECT {
		conn.Close()
		reason, _ := r.ReadString()
		return nil, &ConnectionError{Host: host, Reason: reason}
	}
	port, err := r.ReadInt32()
	if err != nil {
		conn.Close()
		return nil, &ConnectionError{Host: host, Reason: "bad accept reply"}
	}
	remote := &net.UDPAddr{IP: addr.IP, Port: int(port), Zone: addr.Zone}
	conn.SetReadDeadline(time.Time{})
	in := make(chan []byte, packetQueue)
	go readPackets(conn, remote, in)
	s := newSocket("udp", remote.String(), u.n.clock, u.n.cfg.MessageTimeout,
		&udpTransport{conn: conn, remote: remote}, in)
	u.n.addSocket(s)
	log.Info().Str("addr", remote.String()).Msg("connection accepted")
	return s, nil
}

func (u *udpDriver) queryServerInfo(ctx context.Context, host string) (ServerInfo, error) {
	addr, err := u.resolve(host)
	if err != nil {
		return ServerInfo{}, err
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: u.bindIP()})
	if err != nil {
		return ServerInfo{}, err
	}
	defer conn.Close()
	req, err := serverInfoRequest()
	if err != nil {
		return ServerInfo{}, err
	}
	r, _, err := exchange(ctx, conn, addr, req, CCREP_SERVER_INFO)
	if err != nil {
		return ServerInfo{}, err
	}
	return parseServerInfoReply(r)
}

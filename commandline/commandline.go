// SPDX-License-Identifier: GPL-2.0-or-later

// Package commandline parses the process arguments.
package commandline

import (
	"os"

	"netquake/protocol"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
)

// Flags are the command line options. Zero values mean not set, the
// configuration file or the defaults decide.
type Flags struct {
	Port      int      `help:"UDP port to listen on." placeholder:"PORT"`
	IP        string   `name:"ip" help:"Local address to bind to." placeholder:"ADDR"`
	Dedicated int      `help:"Run as dedicated server for N players." placeholder:"N"`
	Listen    int      `help:"Run a listen server for N players." placeholder:"N"`
	Game      string   `help:"Game directory below the base directory."`
	BaseDir   string   `name:"basedir" help:"Base directory, defaults to the working directory." type:"path"`
	CacheDir  string   `name:"cachedir" help:"Directory for generated files." type:"path"`
	Protocol  int      `help:"15: NetQuake, 666: FitzQuake, 999: RMQ."`
	Map       string   `help:"Level to start."`
	Config    []string `help:"Configuration files, applied in order." sep:","`
	Debug     bool     `help:"Whether to enable debug logging."`
	Developer bool     `help:"Print developer messages to the console."`
}

var ErrConflict = errors.New("conflicting options")

// Parse parses args, without the program name.
func Parse(args []string, options ...kong.Option) (*Flags, error) {
	f := &Flags{}
	options = append([]kong.Option{
		kong.Name("netquake"),
		kong.Description("a NetQuake compatible server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
	}, options...)
	p, err := kong.New(f, options...)
	if err != nil {
		return nil, err
	}
	if _, err := p.Parse(args); err != nil {
		return nil, err
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Flags) validate() error {
	if f.Dedicated != 0 && f.Listen != 0 {
		return errors.Wrap(ErrConflict, "only one of --dedicated or --listen can be specified")
	}
	if f.Port < 0 || f.Port > 65535 {
		return errors.Errorf("port %d out of range", f.Port)
	}
	if f.Dedicated < 0 || f.Listen < 0 {
		return errors.New("number of players must not be negative")
	}
	for _, c := range f.Config {
		if _, err := os.Stat(c); err != nil {
			return errors.Wrap(err, "config")
		}
	}
	return nil
}

// IsDedicated reports whether no local client runs.
func (f *Flags) IsDedicated() bool {
	return f.Dedicated > 0
}

// MaxClients returns the number of players and the limit maxplayers can
// be raised to later.
func (f *Flags) MaxClients() (maxClients, limit int) {
	maxClients = 1
	switch {
	case f.Dedicated > 0:
		maxClients = f.Dedicated
	case f.Listen > 0:
		maxClients = f.Listen
	}
	maxClients = min(maxClients, protocol.MaxClients)
	limit = max(maxClients, 4)
	return maxClients, limit
}

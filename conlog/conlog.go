// SPDX-License-Identifier: GPL-2.0-or-later

// Package conlog routes console text. The default sinks forward to the
// zerolog global logger; a host with a real console replaces them.
package conlog

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

type PrintFunc func(string, ...any)

var (
	p         PrintFunc = logPrintf
	sp        PrintFunc = logPrintf
	developer atomic.Bool
)

func logPrintf(format string, v ...any) {
	s := strings.TrimRight(fmt.Sprintf(format, v...), "\n")
	if s == "" {
		return
	}
	log.Info().Str("src", "console").Msg(s)
}

func SetPrintf(f PrintFunc) {
	if f == nil {
		f = logPrintf
	}
	p = f
}

func SetSafePrintf(f PrintFunc) {
	if f == nil {
		f = logPrintf
	}
	sp = f
}

// SetDeveloper enables DPrintf output.
func SetDeveloper(b bool) {
	developer.Store(b)
}

func Printf(format string, v ...any) {
	p(format, v...)
}

// SafePrintf prints without triggering a screen update.
func SafePrintf(format string, v ...any) {
	sp(format, v...)
}

// DPrintf prints only in developer mode.
func DPrintf(format string, v ...any) {
	if !developer.Load() {
		log.Debug().Str("src", "console").Msg(strings.TrimRight(fmt.Sprintf(format, v...), "\n"))
		return
	}
	p(format, v...)
}

func Warning(format string, v ...any) {
	p("\x02Warning: "+format, v...)
}

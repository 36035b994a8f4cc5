// SPDX-License-Identifier: GPL-2.0-or-later

// Package cvar holds typed configuration variables settable from the
// console.
package cvar

import (
	"sort"

	"netquake/cmd"

	"github.com/pkg/errors"
)

type Flag uint64

const (
	// cvar flags bitfield
	NONE       Flag = 0
	ARCHIVE    Flag = 1
	NOTIFY     Flag = 1 << 1
	SERVERINFO Flag = 1 << 2
	USERINFO   Flag = 1 << 3
	ROM        Flag = 1 << 6
	// USERDEFINED is set for cvars created with set.
	USERDEFINED Flag = 1 << 17
)

var (
	ErrDefined  = errors.New("variable already defined")
	ErrReadOnly = errors.New("variable is read only")
	ErrNotFound = errors.New("variable not found")
)

type CallbackFunc func(cv *Cvar)

type Cvar struct {
	name         string
	flags        Flag
	value        Value
	defaultValue Value
	callback     CallbackFunc
}

func (cv *Cvar) Name() string {
	return cv.name
}

func (cv *Cvar) Flags() Flag {
	return cv.flags
}

func (cv *Cvar) Archive() bool {
	return cv.flags&ARCHIVE != 0
}

func (cv *Cvar) Notify() bool {
	return cv.flags&NOTIFY != 0
}

func (cv *Cvar) ServerInfo() bool {
	return cv.flags&SERVERINFO != 0
}

func (cv *Cvar) Kind() Kind {
	return cv.value.kind
}

func (cv *Cvar) SetCallback(cb CallbackFunc) {
	cv.callback = cb
}

func (cv *Cvar) Value() Value {
	return cv.value
}

func (cv *Cvar) Default() Value {
	return cv.defaultValue
}

func (cv *Cvar) String() string {
	return cv.value.String()
}

func (cv *Cvar) Float32() float32 {
	return cv.value.Float()
}

func (cv *Cvar) Int() int {
	return int(cv.value.Float())
}

func (cv *Cvar) Bool() bool {
	return cv.value.Bool()
}

// Set replaces the value. The kind of a cvar never changes.
func (cv *Cvar) Set(v Value) error {
	if cv.flags&ROM != 0 {
		return errors.Wrap(ErrReadOnly, cv.name)
	}
	if v.kind != cv.value.kind {
		return errors.Wrapf(ErrBadValue, "%s is a %s, not a %s", cv.name, cv.value.kind, v.kind)
	}
	changed := v != cv.value
	cv.value = v
	if changed && cv.callback != nil {
		cv.callback(cv)
	}
	return nil
}

func (cv *Cvar) SetByString(s string) error {
	v, err := Parse(cv.value.kind, s)
	if err != nil {
		return errors.Wrap(err, cv.name)
	}
	return cv.Set(v)
}

// SetValue sets a Number or Bool cvar.
func (cv *Cvar) SetValue(f float32) error {
	switch cv.value.kind {
	case Number:
		return cv.Set(NumberValue(f))
	case Bool:
		return cv.Set(BoolValue(f != 0))
	}
	return errors.Wrapf(ErrBadValue, "%s is a %s", cv.name, cv.value.kind)
}

func (cv *Cvar) Toggle() error {
	switch cv.value.kind {
	case Bool:
		return cv.Set(BoolValue(!cv.value.b))
	case Number:
		if cv.value.vec[0] == 1 {
			return cv.Set(NumberValue(0))
		}
		return cv.Set(NumberValue(1))
	}
	return errors.Wrapf(ErrBadValue, "%s can not be toggled", cv.name)
}

func (cv *Cvar) Reset() error {
	if cv.flags&ROM != 0 {
		return nil
	}
	return cv.Set(cv.defaultValue)
}

// Registry holds all cvars of one host.
type Registry struct {
	byName map[string]*Cvar
	cmds   *cmd.Commands
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Cvar)}
}

// Create registers a new cvar with default value def.
func (r *Registry) Create(name string, def Value, flags Flag) (*Cvar, error) {
	if _, ok := r.byName[name]; ok {
		return nil, errors.Wrapf(ErrDefined, "Can't register variable %s", name)
	}
	cv := &Cvar{
		name:         name,
		flags:        flags,
		value:        def,
		defaultValue: def,
	}
	r.byName[name] = cv
	return cv, nil
}

// MustCreate parses the default of the given kind and panics on error,
// intended for the fixed set of engine cvars.
func (r *Registry) MustCreate(name string, kind Kind, def string, flags Flag) *Cvar {
	v, err := Parse(kind, def)
	if err != nil {
		panic(err.Error())
	}
	cv, err := r.Create(name, v, flags)
	if err != nil {
		panic(err.Error())
	}
	return cv
}

func (r *Registry) Get(name string) (*Cvar, bool) {
	cv, ok := r.byName[name]
	return cv, ok
}

// All returns the cvars sorted by name.
func (r *Registry) All() []*Cvar {
	all := make([]*Cvar, 0, len(r.byName))
	for _, cv := range r.byName {
		all = append(all, cv)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].name < all[j].name })
	return all
}

// Set sets a registered cvar from console text.
func (r *Registry) Set(name, value string) error {
	cv, ok := r.byName[name]
	if !ok {
		return errors.Wrap(ErrNotFound, name)
	}
	return cv.SetByString(value)
}

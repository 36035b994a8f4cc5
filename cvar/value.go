// SPDX-License-Identifier: GPL-2.0-or-later

package cvar

import (
	"strconv"
	"strings"

	qmath "netquake/math"

	"github.com/pkg/errors"
)

type Kind int

const (
	Number Kind = iota
	Vec2
	Vec3
	Vec4
	Bool
	String
	Color
)

func (k Kind) String() string {
	switch k {
	case Number:
		return "number"
	case Vec2:
		return "vec2"
	case Vec3:
		return "vec3"
	case Vec4:
		return "vec4"
	case Bool:
		return "bool"
	case String:
		return "string"
	case Color:
		return "color"
	}
	return "unknown"
}

var ErrBadValue = errors.New("bad value")

// Value is one of the supported cvar kinds. Only the fields of its kind
// are meaningful.
type Value struct {
	kind Kind
	vec  [4]float32 // Number uses vec[0], Color is rgba
	n    int        // used components of vec
	b    bool
	s    string
}

func NumberValue(f float32) Value {
	return Value{kind: Number, vec: [4]float32{f}, n: 1}
}

func BoolValue(b bool) Value {
	return Value{kind: Bool, b: b}
}

func StringValue(s string) Value {
	return Value{kind: String, s: s}
}

func components(k Kind) int {
	switch k {
	case Vec2:
		return 2
	case Vec3:
		return 3
	case Vec4:
		return 4
	}
	return 1
}

func parseFloats(text string) ([]float32, error) {
	fields := strings.Fields(text)
	r := make([]float32, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, errors.Wrapf(ErrBadValue, "%q is not a number", f)
		}
		r = append(r, float32(v))
	}
	return r, nil
}

// Parse converts console text into a value of kind k.
func Parse(k Kind, text string) (Value, error) {
	text = strings.TrimSpace(text)
	v := Value{kind: k}
	switch k {
	case String:
		v.s = text
	case Bool:
		switch strings.ToLower(text) {
		case "1", "true", "on", "yes":
			v.b = true
		case "0", "false", "off", "no", "":
			v.b = false
		default:
			f, err := strconv.ParseFloat(text, 32)
			if err != nil {
				return Value{}, errors.Wrapf(ErrBadValue, "%q is not a boolean", text)
			}
			v.b = f != 0
		}
	case Number:
		fs, err := parseFloats(text)
		if err != nil {
			return Value{}, err
		}
		if len(fs) != 1 {
			return Value{}, errors.Wrapf(ErrBadValue, "%q is not a number", text)
		}
		v.vec[0], v.n = fs[0], 1
	case Vec2, Vec3, Vec4:
		fs, err := parseFloats(text)
		if err != nil {
			return Value{}, err
		}
		if len(fs) != components(k) {
			return Value{}, errors.Wrapf(ErrBadValue, "%s needs %d components, got %d", k, components(k), len(fs))
		}
		v.n = copy(v.vec[:], fs)
	case Color:
		fs, err := parseFloats(text)
		if err != nil {
			return Value{}, err
		}
		if len(fs) != 3 && len(fs) != 4 {
			return Value{}, errors.Wrapf(ErrBadValue, "color needs 3 or 4 components, got %d", len(fs))
		}
		v.vec = [4]float32{0, 0, 0, 1}
		for i, f := range fs {
			v.vec[i] = qmath.Clamp(0, f, 1)
		}
		v.n = len(fs)
	default:
		return Value{}, errors.Wrapf(ErrBadValue, "unknown kind %d", k)
	}
	return v, nil
}

func (v Value) Kind() Kind {
	return v.kind
}

func formatFloat(f float32) string {
	if float32(int(f)) == f {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(float64(f), 'f', -1, 32)
}

func (v Value) String() string {
	switch v.kind {
	case String:
		return v.s
	case Bool:
		if v.b {
			return "1"
		}
		return "0"
	}
	parts := make([]string, v.n)
	for i := range parts {
		parts[i] = formatFloat(v.vec[i])
	}
	return strings.Join(parts, " ")
}

// Float returns the numeric reading of v. Strings parse leniently to 0.
func (v Value) Float() float32 {
	switch v.kind {
	case Bool:
		if v.b {
			return 1
		}
		return 0
	case String:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v.s), 32)
		return float32(f)
	}
	return v.vec[0]
}

func (v Value) Bool() bool {
	switch v.kind {
	case Bool:
		return v.b
	case String:
		return v.s != "" && v.s != "0"
	}
	return v.vec[0] != 0
}

func (v Value) Vec() [4]float32 {
	return v.vec
}

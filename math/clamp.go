// SPDX-License-Identifier: GPL-2.0-or-later

package math

type Number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// Clamp returns val limited to [lo, hi].
func Clamp[K Number](lo, val, hi K) K {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

// SPDX-License-Identifier: GPL-2.0-or-later

package math

import "math"

// AngleMod changes an angle to be within 0-360 degrees
func AngleMod(a float64) float64 {
	return a - math.Floor(a/360)*360
}

// AngleDelta maps the difference of two angles into [-180,180].
func AngleDelta(d float32) float32 {
	if d > 180 {
		return d - 360
	}
	if d < -180 {
		return d + 360
	}
	return d
}

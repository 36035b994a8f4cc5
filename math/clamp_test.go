// SPDX-License-Identifier: GPL-2.0-or-later

package math

import (
	"testing"
)

func TestClamp(t *testing.T) {
	for _, tc := range []struct {
		lo, val, hi, want float64
	}{
		{1, 0, 10, 1},
		{1, 100, 10, 10},
		{1, 5, 10, 5},
		{0, 1, 1, 1},
		{0, 0, 1, 0},
		{0, 1.5, 1, 1},
	} {
		if got := Clamp(tc.lo, tc.val, tc.hi); got != tc.want {
			t.Errorf("Clamp(%v,%v,%v) = %v, want %v", tc.lo, tc.val, tc.hi, got, tc.want)
		}
	}
}

func TestClampInt(t *testing.T) {
	if got := Clamp(0, 700, 600); got != 600 {
		t.Errorf("Clamp(0,700,600) = %v", got)
	}
}

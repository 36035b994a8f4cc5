// SPDX-License-Identifier: GPL-2.0-or-later

package items

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRogueSuperHealthIsTopBit(t *testing.T) {
	assert.Equal(t, uint32(0x80000000), uint32(RogueSuperHealth))
	i := RogueShield | RogueSuperHealth
	assert.True(t, i.Has(RogueSuperHealth))
	assert.True(t, i.Has(RogueShield))
	assert.False(t, i.Has(RogueAntiGrav))
}

func TestWithSigils(t *testing.T) {
	i := Shotgun.WithSigils(0x5)
	assert.True(t, i.Has(Sigil1))
	assert.False(t, i.Has(Sigil2))
	assert.True(t, i.Has(Sigil3))
	assert.True(t, i.Has(Shotgun))
}

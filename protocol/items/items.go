// SPDX-License-Identifier: GPL-2.0-or-later

// Package items holds the item bit flags sent in client data.
// Flags are uint32 so that bit 31 is representable without overflow.
package items

type Items uint32

const (
	Shotgun         Items = 1 << 0
	SuperShotgun    Items = 1 << 1
	Nailgun         Items = 1 << 2
	SuperNailgun    Items = 1 << 3
	GrenadeLauncher Items = 1 << 4
	RocketLauncher  Items = 1 << 5
	Lightning       Items = 1 << 6
	SuperLightning  Items = 1 << 7
	Shells          Items = 1 << 8
	Nails           Items = 1 << 9
	Rockets         Items = 1 << 10
	Cells           Items = 1 << 11
	Axe             Items = 1 << 12
	Armor1          Items = 1 << 13
	Armor2          Items = 1 << 14
	Armor3          Items = 1 << 15
	SuperHealth     Items = 1 << 16
	Key1            Items = 1 << 17
	Key2            Items = 1 << 18
	Invisibility    Items = 1 << 19
	Invulnerability Items = 1 << 20
	Suit            Items = 1 << 21
	Quad            Items = 1 << 22
	Sigil1          Items = 1 << 28
	Sigil2          Items = 1 << 29
	Sigil3          Items = 1 << 30
	Sigil4          Items = 1 << 31
)

// Rogue mission pack items. They reuse the low bits differently and
// keep SuperHealth in the top bit.
const (
	RogueLavaNailgun      Items = 1 << 12
	RogueLavaSuperNailgun Items = 1 << 13
	RogueMultiGrenade     Items = 1 << 14
	RogueMultiRocket      Items = 1 << 15
	RoguePlasmaGun        Items = 1 << 16
	RogueArmor1           Items = 1 << 23
	RogueArmor2           Items = 1 << 24
	RogueArmor3           Items = 1 << 25
	RogueLavaShells       Items = 1 << 26
	RoguePlasma           Items = 1 << 27
	RogueMultiRockets     Items = 1 << 28
	RogueShield           Items = 1 << 29
	RogueAntiGrav         Items = 1 << 30
	RogueSuperHealth      Items = 1 << 31
)

func (i Items) Has(f Items) bool {
	return i&f != 0
}

// WithSigils mixes the server episode flags into the top bits, the
// way the status bar expects them.
func (i Items) WithSigils(serverFlags uint32) Items {
	return i | Items(serverFlags&0xf)<<28
}

// SPDX-License-Identifier: GPL-2.0-or-later

// Package stat names the slots of the client stat table the server
// updates with svc_updatestat and svc_clientdata.
package stat

const (
	Health = iota
	Frags
	Weapon
	Ammo
	Armor
	WeaponFrame
	Shells
	Nails
	Rockets
	Cells
	ActiveWeapon
	TotalSecrets
	TotalMonsters
	Secrets  // bumped by svc_foundsecret
	Monsters // bumped by svc_killedmonster
)

// MaxCl is the size of the stat table.
const MaxCl = 32
